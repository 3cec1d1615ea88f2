// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtsp

import (
	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/rtpfmt"
	"github.com/q191201771/lalplay/pkg/upstream"
)

type SessionState int

const (
	SessionStateIdle SessionState = iota
	SessionStateInit
	SessionStateReady
	SessionStatePlaying
	SessionStatePaused
	SessionStateStopped
)

func (s SessionState) ReadableString() string {
	switch s {
	case SessionStateIdle:
		return "IDLE"
	case SessionStateInit:
		return "INIT"
	case SessionStateReady:
		return "READY"
	case SessionStatePlaying:
		return "PLAYING"
	case SessionStatePaused:
		return "PAUSED"
	case SessionStateStopped:
		return "STOPPED"
	}
	return "UNKNOWN"
}

// ISessionListener 会话层播放控制事件
type ISessionListener interface {
	OnPausePlayback()
	OnResumePlayback()
	OnSeekPlayback()
	OnStopPlayback()
}

// MediaSession rtsp信令层的会话，信令交互不在这个包里
type MediaSession interface {
	State() SessionState

	IsNatRequired() bool
	IsRtcpSupported() bool
	IsRtcpMuxed() bool

	AddListener(listener ISessionListener)
	RemoveListener(listener ISessionListener)

	// OnSelectTracks 上层选择track后，通知会话各个track是否被选中
	OnSelectTracks(trackTypes []base.TrackType, enabledStates []bool)

	// OnOutgoingReport 需要通过信令连接发送出去的rtcp包，比如interleaved模式下的RR
	upstream.OutgoingReportListener
}

type MediaFormat struct {
	Format    *rtpfmt.PayloadFormat
	Transport Transport
}

// MediaTrack sdp中的一路媒体，以及setup后的传输参数
type MediaTrack interface {
	Url() string
	Format() MediaFormat

	// IsMuxed rtp和rtcp使用同一个端口或channel
	IsMuxed() bool
}
