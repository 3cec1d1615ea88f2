// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"io"
	"sync"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/rtpfmt"
	"github.com/q191201771/lalplay/pkg/rtsp"
	"github.com/q191201771/lalplay/pkg/upstream"
)

var _ rtsp.MediaSession = &StaticSession{}
var _ rtsp.MediaTrack = &StaticTrack{}

// StaticSession 信令交互已经在外部完成，会话参数直接来自配置
//
// 播放控制(Play, Pause, Seek, Stop)只是切换状态并通知listener
//
type StaticSession struct {
	config SessionConfig

	mu            sync.Mutex
	state         rtsp.SessionState
	listeners     []rtsp.ISessionListener
	trackTypes    []base.TrackType
	enabledStates []bool

	// tcp模式下，rtcp包通过这个writer以interleaved帧的形式发送
	reportWriter  io.Writer
	reportChannel int
	reportCount   int
}

func NewStaticSession(config SessionConfig) *StaticSession {
	return &StaticSession{
		config: config,
		state:  rtsp.SessionStateReady,
	}
}

// SetReportWriter
//
// @param channel: rtcp所在的interleaved channel
//
func (s *StaticSession) SetReportWriter(w io.Writer, channel int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportWriter = w
	s.reportChannel = channel
}

func (s *StaticSession) State() rtsp.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *StaticSession) IsNatRequired() bool {
	return s.config.NatRequired
}

func (s *StaticSession) IsRtcpSupported() bool {
	return s.config.RtcpSupported
}

func (s *StaticSession) IsRtcpMuxed() bool {
	return s.config.RtcpMuxed
}

func (s *StaticSession) AddListener(listener rtsp.ISessionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listeners {
		if l == listener {
			return
		}
	}
	s.listeners = append(s.listeners, listener)
}

func (s *StaticSession) RemoveListener(listener rtsp.ISessionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l == listener {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *StaticSession) OnSelectTracks(trackTypes []base.TrackType, enabledStates []bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackTypes = trackTypes
	s.enabledStates = enabledStates
	Log.Debugf("select tracks. types=%v, enabled=%v", trackTypes, enabledStates)
}

// EnabledStates 最近一次 OnSelectTracks 的结果
func (s *StaticSession) EnabledStates() ([]base.TrackType, []bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackTypes, s.enabledStates
}

func (s *StaticSession) OnOutgoingReport(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportCount++
	if s.reportWriter == nil {
		return
	}
	frame, err := upstream.PackInterleavedFrame(s.reportChannel, b)
	if err != nil {
		Log.Warnf("pack outgoing report failed. err=%+v", err)
		return
	}
	if _, err = s.reportWriter.Write(frame); err != nil {
		Log.Warnf("write outgoing report failed. err=%+v", err)
	}
}

func (s *StaticSession) ReportCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportCount
}

// ----- 播放控制 ----------------------------------------------------------------------------------------------------------

// Play 从暂停状态恢复时，通知listener
func (s *StaticSession) Play() {
	listeners, prev, ok := s.transfer(rtsp.SessionStatePlaying)
	if !ok || prev != rtsp.SessionStatePaused {
		return
	}
	for _, l := range listeners {
		l.OnResumePlayback()
	}
}

func (s *StaticSession) Pause() {
	listeners, prev, ok := s.transfer(rtsp.SessionStatePaused)
	if !ok || prev != rtsp.SessionStatePlaying {
		return
	}
	for _, l := range listeners {
		l.OnPausePlayback()
	}
}

// Seek 调用前，上层已经通过 rtsp.StreamWrapper.SeekToUs 设置了seek位置
func (s *StaticSession) Seek() {
	listeners, _, ok := s.transfer(rtsp.SessionStatePlaying)
	if !ok {
		return
	}
	for _, l := range listeners {
		l.OnSeekPlayback()
	}
}

func (s *StaticSession) Stop() {
	listeners, _, ok := s.transfer(rtsp.SessionStateStopped)
	if !ok {
		return
	}
	for _, l := range listeners {
		l.OnStopPlayback()
	}
}

// transfer 停止后不能再切换状态。回调listener时不能持有锁，listener可能在回调中RemoveListener
func (s *StaticSession) transfer(state rtsp.SessionState) (listeners []rtsp.ISessionListener, prev rtsp.SessionState, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.state
	if prev == rtsp.SessionStateStopped {
		return nil, prev, false
	}
	s.state = state
	Log.Debugf("session state %s -> %s", prev.ReadableString(), state.ReadableString())
	listeners = make([]rtsp.ISessionListener, len(s.listeners))
	copy(listeners, s.listeners)
	return listeners, prev, true
}

// ---------------------------------------------------------------------------------------------------------------------

// StaticTrack 配置中的一路媒体
type StaticTrack struct {
	url    string
	format rtsp.MediaFormat
	muxed  bool
}

// NewStaticTrack
//
// @param payloadFormat: 非rtp时可以为nil
//
func NewStaticTrack(config StreamConfig, payloadFormat *rtpfmt.PayloadFormat) *StaticTrack {
	return &StaticTrack{
		url: config.Url,
		format: rtsp.MediaFormat{
			Format:    payloadFormat,
			Transport: config.Transport(),
		},
		muxed: config.Muxed,
	}
}

func (t *StaticTrack) Url() string {
	return t.url
}

func (t *StaticTrack) Format() rtsp.MediaFormat {
	return t.format
}

func (t *StaticTrack) IsMuxed() bool {
	return t.muxed
}
