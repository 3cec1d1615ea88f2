// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/loader"
	"github.com/q191201771/lalplay/pkg/rtpfmt"
	"github.com/q191201771/lalplay/pkg/rtsp"
	"github.com/q191201771/lalplay/pkg/samplequeue"
	"github.com/q191201771/lalplay/pkg/upstream"
)

var _ rtsp.IStreamWrapperListener = &Player{}

// TrackStat 一路被选中的track的统计
type TrackStat struct {
	Group         int
	Format        *base.Format
	SampleCount   uint64
	KeyFrameCount uint64
	ByteCount     uint64
	LastTimeUs    int64
	EndOfStream   bool
}

// Player 拉取一路rtsp媒体track，并消费所有track的样本
//
// 生命周期: NewPlayer -> Start -> RunLoop -> Dispose
//
type Player struct {
	uniqueKey string
	config    *Config
	session   *StaticSession
	track     *StaticTrack
	handler   *loader.Handler
	wrapper   *rtsp.StreamWrapper

	errChan chan error

	mu           sync.Mutex
	streams      []rtsp.SampleStream
	stats        []TrackStat
	formatHolder samplequeue.FormatHolder
	buffer       samplequeue.DecoderInputBuffer
}

// NewPlayer
//
// @param payloadFormat: rtp时来自sdp，非rtp时为nil
//
func NewPlayer(config *Config, payloadFormat *rtpfmt.PayloadFormat, modOptions ...rtsp.ModStreamWrapperOption) *Player {
	uk := base.GenUkPlayer()
	p := &Player{
		uniqueKey: uk,
		config:    config,
		session:   NewStaticSession(config.Session),
		track:     NewStaticTrack(config.Stream, payloadFormat),
		handler:   loader.NewHandler(),
		errChan:   make(chan error, 1),
	}

	mods := []rtsp.ModStreamWrapperOption{
		func(option *rtsp.StreamWrapperOption) {
			option.MinLoadableRetryCount = config.Loader.MinRetryCount
			option.UdpReadTimeoutMs = config.Loader.UdpReadTimeoutMs
			option.TcpReadIntervalMs = config.Loader.TcpReadIntervalMs
			option.PunchCount = config.Loader.PunchCount
			option.MaxUdpPacketSize = config.Loader.MaxUdpPacketSize
			option.Handler = p.handler
		},
	}
	mods = append(mods, modOptions...)
	p.wrapper = rtsp.NewStreamWrapper(p.session, p.track, p, mods...)

	Log.Infof("[%s] lifecycle new player. wrapper=%s", uk, p.wrapper.UniqueKey())
	return p
}

func (p *Player) UniqueKey() string {
	return p.uniqueKey
}

func (p *Player) Session() *StaticSession {
	return p.session
}

func (p *Player) Wrapper() *rtsp.StreamWrapper {
	return p.wrapper
}

// Start tcp时数据通道已经存在，prepare后直接开始播放。udp在数据源打开后开始播放
func (p *Player) Start() {
	p.wrapper.SetInterleavedChannels(p.config.Stream.InterleavedChannels)
	p.wrapper.Prepare()

	if p.config.Stream.LowerTransport == rtsp.LowerTransportTcp {
		p.play()
	}
}

// RunLoop 阻塞直到ctx结束，或者加载失败
func (p *Player) RunLoop(ctx context.Context) error {
	drainTicker := time.NewTicker(time.Duration(drainIntervalMs) * time.Millisecond)
	defer drainTicker.Stop()
	statTicker := time.NewTicker(time.Duration(p.config.StatIntervalSec) * time.Second)
	defer statTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-p.errChan:
			return err
		case <-drainTicker.C:
			p.drain()
		case <-statTicker.C:
			p.logStat()
		}
	}
}

// FeedInterleaved tcp模式下，从<r>中读取interleaved帧交给wrapper，直到出错
//
// 非interleaved数据(rtsp信令)被逐字节跳过
//
func (p *Player) FeedInterleaved(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		frame, isInterleaved, err := upstream.ReadInterleavedFrame(br)
		if err != nil {
			return err
		}
		if !isInterleaved {
			if _, err = br.ReadByte(); err != nil {
				return err
			}
			continue
		}
		p.wrapper.OnInterleavedFrame(frame)
	}
}

// Seek 清空已缓存的样本，通知会话seek
func (p *Player) Seek(positionUs int64) {
	p.wrapper.SeekToUs(positionUs)
	p.session.Seek()
}

func (p *Player) Pause() {
	p.session.Pause()
}

func (p *Player) Resume() {
	p.session.Play()
}

// Stop 会话停止后wrapper随之释放
func (p *Player) Stop() {
	p.session.Stop()
}

func (p *Player) Dispose() {
	p.wrapper.Release()
	p.handler.RemoveAll()
	p.handler.Dispose()
	Log.Infof("[%s] lifecycle dispose player.", p.uniqueKey)
}

// Stats 所有被选中track的统计
func (p *Player) Stats() []TrackStat {
	p.mu.Lock()
	defer p.mu.Unlock()
	ret := make([]TrackStat, len(p.stats))
	copy(ret, p.stats)
	return ret
}

// ----- rtsp.IStreamWrapperListener -----------------------------------------------------------------------------------

func (p *Player) OnMediaStreamPrepareStarted(w *rtsp.StreamWrapper) {
	Log.Infof("[%s] prepare started. local port=%d", p.uniqueKey, w.LocalPort())
	p.play()
}

func (p *Player) OnMediaStreamPrepareFailure(w *rtsp.StreamWrapper) {
	err := w.MaybeThrowPrepareError()
	if err == nil {
		err = base.ErrPrepareFailure
	} else {
		err = fmt.Errorf("%w. err=%v", base.ErrPrepareFailure, err)
	}
	p.notifyErr(err)
}

func (p *Player) OnMediaStreamPrepareSuccess(w *rtsp.StreamWrapper) {
	if err := p.selectAllTracks(w); err != nil {
		Log.Errorf("[%s] select tracks failed. err=%+v", p.uniqueKey, err)
		p.notifyErr(err)
	}
}

func (p *Player) OnMediaStreamPlaybackFailure(w *rtsp.StreamWrapper) {
	p.notifyErr(base.ErrPlaybackFailure)
}

// ---------------------------------------------------------------------------------------------------------------------

func (p *Player) play() {
	p.session.Play()
	p.wrapper.Playback()
}

func (p *Player) selectAllTracks(w *rtsp.StreamWrapper) error {
	groups := w.TrackGroups()
	n := groups.Length()
	selections := make([]rtsp.TrackSelection, n)
	mayRetainFlags := make([]bool, n)
	streams := make([]rtsp.SampleStream, n)
	resetFlags := make([]bool, n)
	for i := 0; i < n; i++ {
		selections[i] = rtsp.NewFixedTrackSelection(groups.Get(i), 0)
	}
	if err := w.SelectTracks(selections, mayRetainFlags, streams, resetFlags, 0); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.streams = streams
	p.stats = make([]TrackStat, n)
	for i := range p.stats {
		p.stats[i] = TrackStat{Group: i, LastTimeUs: base.TimeUnset}
	}
	Log.Infof("[%s] select all tracks. groups=%s", p.uniqueKey, groups.String())
	return nil
}

// drain 取出所有已缓存的样本，然后丢弃已读部分
func (p *Player) drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.streams) == 0 {
		return
	}

	minTimeUs := int64(math.MaxInt64)
	for i, s := range p.streams {
		stat := &p.stats[i]
		p.drainStream(s, stat)
		if stat.LastTimeUs != base.TimeUnset && stat.LastTimeUs < minTimeUs {
			minTimeUs = stat.LastTimeUs
		}
	}
	if minTimeUs != math.MaxInt64 {
		p.wrapper.DiscardBuffer(minTimeUs, false)
	}
}

func (p *Player) drainStream(s rtsp.SampleStream, stat *TrackStat) {
	for !stat.EndOfStream {
		switch s.ReadData(&p.formatHolder, &p.buffer, false) {
		case samplequeue.ResultFormatRead:
			stat.Format = p.formatHolder.Format
			Log.Infof("[%s] track format. group=%d, format=%s", p.uniqueKey, stat.Group, stat.Format.DebugString())
		case samplequeue.ResultBufferRead:
			if p.buffer.IsEndOfStream() {
				stat.EndOfStream = true
				Log.Infof("[%s] track end of stream. group=%d", p.uniqueKey, stat.Group)
				return
			}
			stat.SampleCount++
			stat.ByteCount += uint64(len(p.buffer.Data))
			if p.buffer.Flags&samplequeue.FlagKeyFrame != 0 {
				stat.KeyFrameCount++
			}
			stat.LastTimeUs = p.buffer.TimeUs
		default:
			return
		}
	}
}

func (p *Player) logStat() {
	Log.Infof("[%s] stat. session=%s, buffered=%dus", p.uniqueKey, p.session.State().ReadableString(), p.wrapper.BufferedPositionUs())
	for _, stat := range p.Stats() {
		mime := ""
		if stat.Format != nil {
			mime = stat.Format.SampleMimeType
		}
		Log.Infof("[%s] stat. group=%d, mime=%s, samples=%d, keyframes=%d, bytes=%d, last=%dus",
			p.uniqueKey, stat.Group, mime, stat.SampleCount, stat.KeyFrameCount, stat.ByteCount, stat.LastTimeUs)
	}
}

func (p *Player) notifyErr(err error) {
	select {
	case p.errChan <- err:
	default:
	}
}
