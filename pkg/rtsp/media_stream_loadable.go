// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtsp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/extractor"
	"github.com/q191201771/lalplay/pkg/loader"
	"github.com/q191201771/lalplay/pkg/upstream"
	"github.com/q191201771/naza/pkg/nazaatomic"
)

var _ loader.Loadable = &mediaStreamLoadable{}

// streamStrategy udp和tcp两种传输方式的差异部分
type streamStrategy interface {
	// buildAndOpenDataSource 失败时返回nil
	buildAndOpenDataSource(l *mediaStreamLoadable) upstream.DataSource

	loadMedia(ctx context.Context, l *mediaStreamLoadable) error
}

type ssrcSetter interface {
	SetSsrc(ssrc uint32)
}

// mediaStreamLoadable 一次加载: 打开数据源，选择extractor，然后循环读取直到被取消，读完，或者出错
//
// opened为true后，才有可能回调播放失败。tcp的连接在加载之前就已经存在，所以一开始就是opened
//
type mediaStreamLoadable struct {
	w        *StreamWrapper
	strategy streamStrategy

	opened bool // 只在加载协程中读写

	loadCanceled nazaatomic.Bool
	pendingReset nazaatomic.Bool

	mu         sync.Mutex
	dataSource upstream.DataSource

	extractor    extractor.Extractor
	input        extractor.Input
	seekPosition extractor.PositionHolder
}

func newMediaStreamLoadable(w *StreamWrapper, strategy streamStrategy, opened bool) *mediaStreamLoadable {
	return &mediaStreamLoadable{
		w:        w,
		strategy: strategy,
		opened:   opened,
	}
}

// seekLoad 加载协程在下一次循环时seek到 StreamWrapper 的pending位置
func (l *mediaStreamLoadable) seekLoad() {
	l.pendingReset.Store(true)
}

// CancelLoad 关闭数据源，唤醒阻塞中的读取
func (l *mediaStreamLoadable) CancelLoad() {
	l.loadCanceled.Store(true)
	if ds := l.getDataSource(); ds != nil {
		_ = ds.Close()
	}
}

func (l *mediaStreamLoadable) Load(ctx context.Context) error {
	defer l.closeInternal()

	if err := l.openInternal(ctx); err != nil {
		return err
	}

	if err := l.strategy.loadMedia(ctx, l); err != nil {
		l.maybeFinishPlay()
		return err
	}
	return nil
}

func (l *mediaStreamLoadable) openInternal(ctx context.Context) error {
	ds := l.strategy.buildAndOpenDataSource(l)
	if ds == nil {
		l.opened = false
		l.maybeFailureOpen()
		return base.ErrRtspOpenDataSource
	}
	if !l.setDataSource(ds) {
		return base.ErrLoadCanceled
	}

	l.maybeFinishOpen()
	if !l.opened {
		l.maybeFailureOpen()
		return base.ErrLoadCanceled
	}

	// 等待Playback放行，此时服务端才开始发送数据
	if err := l.w.loadCondition.BlockWithContext(ctx); err != nil || l.loadCanceled.Load() {
		return base.ErrLoadCanceled
	}

	ext, err := l.createExtractor(ds)
	if err != nil {
		l.opened = false
		l.maybeFailureOpen()
		return err
	}
	l.extractor = ext
	ext.Init(l.w)
	return nil
}

func (l *mediaStreamLoadable) createExtractor(ds upstream.DataSource) (extractor.Extractor, error) {
	mf := l.w.track.Format()
	transport := mf.Transport

	if transport.IsRtp() {
		if ssrc, ok := transport.SsrcValue(); ok {
			if s, ok := ds.(ssrcSetter); ok {
				s.SetSsrc(ssrc)
			}
		}
		l.input = extractor.NewRtpExtractorInput(ds)
		if mf.Format.SampleMimeType() == base.MimeVideoMp2t {
			return extractor.NewRtpMp2tExtractor(), nil
		}
		return extractor.NewDefaultRtpExtractor(mf.Format, l.w.trackIdGenerator), nil
	}

	l.input = extractor.NewDefaultExtractorInput(ds, 0, base.NoValue)
	switch transport.TransportProtocol {
	case TransportProtocolMp2t:
		return extractor.NewTsExtractor(), nil
	case TransportProtocolRaw:
		return extractor.SelectExtractor(l.w.extractorsFactory.CreateExtractors(), l.input)
	}
	return nil, fmt.Errorf("%w. protocol=%s", base.ErrRtspUnsupportedTransport, transport.TransportProtocol)
}

func (l *mediaStreamLoadable) closeInternal() {
	if ds := l.getDataSource(); ds != nil {
		if err := ds.Close(); err != nil {
			Log.Debugf("[%s] close data source failed. err=%+v", l.w.uniqueKey, err)
		}
	}
	if l.extractor != nil {
		l.extractor.Release()
	}

	l.opened = false
	l.w.loadCondition.Open()
}

func (l *mediaStreamLoadable) readInternal() (int, error) {
	return l.extractor.Read(l.input, &l.seekPosition)
}

func (l *mediaStreamLoadable) seekInternal(timeUs int64) {
	l.extractor.Seek(base.PositionUnset, timeUs)
	l.pendingReset.Store(false)
}

// maybeSeek 内层读取循环退出后调用
func (l *mediaStreamLoadable) maybeSeek() {
	if !l.pendingReset.Load() {
		return
	}
	positionUs := l.w.pendingResetPositionUs.Load()
	if positionUs == base.TimeUnset {
		l.pendingReset.Store(false)
		return
	}
	Log.Debugf("[%s] seek load. position=%dus", l.w.uniqueKey, positionUs)
	l.seekInternal(positionUs)
	l.w.pendingResetPositionUs.Store(base.TimeUnset)
}

// shouldRead 内层循环的条件
func (l *mediaStreamLoadable) shouldRead(result int) bool {
	return result == extractor.ResultContinue && !l.loadCanceled.Load() && !l.pendingReset.Load()
}

func (l *mediaStreamLoadable) maybeFailureOpen() {
	if l.loadCanceled.Load() || l.opened {
		return
	}
	l.opened = false
	Log.Warnf("[%s] prepare failure.", l.w.uniqueKey)
	l.w.post(l.w.listener.OnMediaStreamPrepareFailure)
}

func (l *mediaStreamLoadable) maybeFinishOpen() {
	if l.loadCanceled.Load() || l.opened {
		return
	}
	l.opened = true
	l.w.post(l.w.listener.OnMediaStreamPrepareStarted)
}

func (l *mediaStreamLoadable) maybeFinishPlay() {
	if l.loadCanceled.Load() || !l.opened {
		return
	}
	l.opened = false
	Log.Warnf("[%s] playback failure.", l.w.uniqueKey)
	l.w.post(l.w.listener.OnMediaStreamPlaybackFailure)
}

// setDataSource 已经被取消时直接关闭，返回false
func (l *mediaStreamLoadable) setDataSource(ds upstream.DataSource) bool {
	l.mu.Lock()
	l.dataSource = ds
	l.mu.Unlock()
	if l.loadCanceled.Load() {
		_ = ds.Close()
		return false
	}
	return true
}

func (l *mediaStreamLoadable) getDataSource() upstream.DataSource {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dataSource
}

// ----- udp -----------------------------------------------------------------------------------------------------------

type udpStrategy struct{}

func (s *udpStrategy) buildAndOpenDataSource(l *mediaStreamLoadable) upstream.DataSource {
	w := l.w
	mf := w.track.Format()

	modOption := func(option *upstream.UdpDataSinkSourceOption) {
		option.MaxPacketSize = w.option.MaxUdpPacketSize
		option.ReadTimeoutMs = w.option.UdpReadTimeoutMs
		option.ConnPool = w.option.UdpConnPool
	}

	var ds interface {
		upstream.DataSource
		LocalPort() int
	}
	scheme := "udp"
	if mf.Transport.IsRtp() {
		flags := 0
		if w.session.IsRtcpSupported() {
			flags |= upstream.FlagEnableRtcpFeedback
		} else {
			flags |= upstream.FlagDisableRtcpPort
		}
		if w.track.IsMuxed() {
			flags |= upstream.FlagForceRtcpMultiplexing
		}
		ds = upstream.NewRtpDataSinkSource(mf.Format.ClockRate(), flags, modOption)
		scheme = "rtp"
	} else {
		ds = upstream.NewUdpDataSinkSource(modOption)
	}

	spec := upstream.NewDataSpec(fmt.Sprintf("%s://%s:0", scheme, ipv4AnyAddr), upstream.FlagForceBoundLocalAddress)
	if err := ds.Open(spec); err != nil {
		Log.Errorf("[%s] open udp data source failed. err=%+v", w.uniqueKey, err)
		return nil
	}
	w.setLocalPort(ds.LocalPort())
	Log.Infof("[%s] udp data source opened. local port=%d", w.uniqueKey, ds.LocalPort())
	return ds
}

// loadMedia 暂停状态下的读超时不算错误
func (s *udpStrategy) loadMedia(ctx context.Context, l *mediaStreamLoadable) error {
	result := extractor.ResultContinue
	for result == extractor.ResultContinue && !l.loadCanceled.Load() {
		for l.shouldRead(result) {
			r, err := l.readInternal()
			if err != nil {
				if errors.Is(err, base.ErrUdpTimeout) && l.w.session.State() == SessionStatePaused {
					continue
				}
				return err
			}
			result = r
		}
		l.maybeSeek()
	}
	return nil
}

// ----- tcp -----------------------------------------------------------------------------------------------------------

type tcpStrategy struct{}

func (s *tcpStrategy) buildAndOpenDataSource(l *mediaStreamLoadable) upstream.DataSource {
	w := l.w
	mf := w.track.Format()

	var ds *upstream.RtpInternalDataSource
	if mf.Transport.IsRtp() {
		w.samplesSink.Open(mf.Format.ClockRate())
		if w.session.IsRtcpSupported() {
			w.inReportSink.Open()
			w.outReportSink.Open()
			ds = upstream.NewRtpInternalDataSource(w.samplesSink, w.inReportSink, w.outReportSink)
		} else {
			ds = upstream.NewRtpInternalDataSource(w.samplesSink, nil, nil)
		}
	} else {
		// 非rtp时，interleaved数据直接是ts或者裸流
		w.samplesSink.Open(base.Mp2tClockRate)
		ds = upstream.NewRtpInternalDataSource(w.samplesSink, nil, nil)
	}

	if err := ds.Open(upstream.NewDataSpec(w.track.Url(), 0)); err != nil {
		Log.Errorf("[%s] open interleaved data source failed. err=%+v", w.uniqueKey, err)
		return nil
	}
	return ds
}

// loadMedia 数据由信令连接推送过来，每次读取之间sleep一下
func (s *tcpStrategy) loadMedia(ctx context.Context, l *mediaStreamLoadable) error {
	interval := time.Duration(l.w.option.TcpReadIntervalMs) * time.Millisecond

	result := extractor.ResultContinue
	for result == extractor.ResultContinue && !l.loadCanceled.Load() {
		for l.shouldRead(result) {
			r, err := l.readInternal()
			if err != nil {
				return err
			}
			result = r

			if interval > 0 {
				select {
				case <-time.After(interval):
				case <-ctx.Done():
					return nil
				}
			}
		}
		l.maybeSeek()
	}
	return nil
}
