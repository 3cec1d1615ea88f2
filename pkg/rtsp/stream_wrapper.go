// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtsp

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/extractor"
	"github.com/q191201771/lalplay/pkg/loader"
	"github.com/q191201771/lalplay/pkg/rtprtcp"
	"github.com/q191201771/lalplay/pkg/samplequeue"
	"github.com/q191201771/lalplay/pkg/upstream"
	"github.com/q191201771/naza/pkg/nazaatomic"
	"github.com/q191201771/naza/pkg/nazanet"
)

// IStreamWrapperListener 所有回调都在Handler协程中串行执行
type IStreamWrapperListener interface {
	// OnMediaStreamPrepareStarted 数据源已经打开，udp时可以通过 StreamWrapper.LocalPort 获取本地端口
	OnMediaStreamPrepareStarted(w *StreamWrapper)
	OnMediaStreamPrepareFailure(w *StreamWrapper)

	// OnMediaStreamPrepareSuccess 所有track的格式都已经确定，可以通过 StreamWrapper.TrackGroups 获取
	OnMediaStreamPrepareSuccess(w *StreamWrapper)
	OnMediaStreamPlaybackFailure(w *StreamWrapper)
}

type StreamWrapperOption struct {
	PositionUs            int64
	MinLoadableRetryCount int

	UdpReadTimeoutMs  int // udp读超时，暂停状态下超时不算错误
	TcpReadIntervalMs int // tcp模式下每次读取之间的间隔
	PunchCount        int // 需要nat穿透时，每种punch包发送的次数
	MaxUdpPacketSize  int

	// UdpConnPool 不为nil时，从池子中获取udp端口
	UdpConnPool *nazanet.AvailUdpConnPool

	// Handler 为nil时，内部创建一个，并在Release时销毁
	Handler *loader.Handler

	// ExtractorsFactory RAW协议时用于探测格式，为nil时使用 extractor.DefaultExtractorsFactory
	ExtractorsFactory extractor.ExtractorsFactory
}

var defaultStreamWrapperOption = StreamWrapperOption{
	PositionUs:            0,
	MinLoadableRetryCount: DefaultMinLoadableRetryCount,
	UdpReadTimeoutMs:      base.UdpReadTimeoutMs,
	TcpReadIntervalMs:     base.TcpReadIntervalMs,
	PunchCount:            base.PunchPacketSendTimes,
	MaxUdpPacketSize:      base.UdpMaxPacketSize,
}

type ModStreamWrapperOption func(option *StreamWrapperOption)

// StreamWrapper 一路rtsp媒体track的拉流加载
//
// 负责打开传输层，驱动extractor把数据解析到每个子流的样本队列中，并对外提供track选择，seek，缓冲位置等
//
type StreamWrapper struct {
	uniqueKey string
	option    StreamWrapperOption
	session   MediaSession
	track     MediaTrack
	listener  IStreamWrapperListener

	handler           *loader.Handler
	ownHandler        bool
	loadCondition     *loader.ConditionVariable
	trackIdGenerator  *extractor.TrackIdGenerator
	extractorsFactory extractor.ExtractorsFactory

	// tcp(interleaved)模式下的数据通道
	samplesSink   *upstream.RtpInternalSamplesSink
	inReportSink  *upstream.RtcpIncomingReportSink
	outReportSink *upstream.RtcpOutgoingReportSink

	// 加载协程在seek时读取
	pendingResetPositionUs nazaatomic.Int64

	mu       sync.Mutex
	ldr      *loader.Loader
	loadable *mediaStreamLoadable

	sampleQueues          []*samplequeue.SampleQueue
	sampleQueueTrackIds   []int
	sampleQueueTrackTypes []base.TrackType
	sampleQueuesBuilt     bool

	prepared        bool
	playback        bool
	released        bool
	loadingFinished bool

	trackGroups             TrackGroupArray
	trackGroupEnabledStates []bool
	enabledTrackCount       int

	lastSeekPositionUs int64

	localPort           int
	interleavedChannels []int

	// 重新prepare时，旧加载任务被取消不代表加载结束
	pendingResetLoadable bool
	// udp重新prepare后，在下一次ContinueLoading时才重新开始加载
	udpRestartPending bool
}

func NewStreamWrapper(session MediaSession, track MediaTrack, listener IStreamWrapperListener, modOptions ...ModStreamWrapperOption) *StreamWrapper {
	option := defaultStreamWrapperOption
	for _, fn := range modOptions {
		fn(&option)
	}

	uk := base.GenUkStreamWrapper()
	w := &StreamWrapper{
		uniqueKey:          uk,
		option:             option,
		session:            session,
		track:              track,
		listener:           listener,
		handler:            option.Handler,
		loadCondition:      loader.NewConditionVariable(),
		trackIdGenerator:   extractor.NewTrackIdGenerator(0, 1),
		extractorsFactory:  option.ExtractorsFactory,
		samplesSink:        upstream.NewRtpInternalSamplesSink(),
		inReportSink:       upstream.NewRtcpIncomingReportSink(),
		outReportSink:      upstream.NewRtcpOutgoingReportSink(),
		lastSeekPositionUs: option.PositionUs,
	}
	if w.handler == nil {
		w.handler = loader.NewHandler()
		w.ownHandler = true
	}
	if w.extractorsFactory == nil {
		w.extractorsFactory = extractor.NewDefaultExtractorsFactory()
	}
	w.ldr = loader.NewLoader("Loader:StreamWrapper", w.handler)
	w.pendingResetPositionUs.Store(base.TimeUnset)

	w.outReportSink.AddListener(session)
	session.AddListener(w)

	Log.Infof("[%s] lifecycle new stream wrapper. url=%s, transport=%s", uk, track.Url(), track.Format().Transport.String())
	return w
}

func (w *StreamWrapper) UniqueKey() string {
	return w.uniqueKey
}

func (w *StreamWrapper) MediaTrack() MediaTrack {
	return w.track
}

// SetInterleavedChannels tcp模式下setup协商出的channel，[0]为rtp，[1]为rtcp(可选)
func (w *StreamWrapper) SetInterleavedChannels(channels []int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.interleavedChannels = channels
}

// LocalPort udp模式下本地绑定的端口，数据源打开之前为0
func (w *StreamWrapper) LocalPort() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.localPort
}

func (w *StreamWrapper) TrackGroups() TrackGroupArray {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.trackGroups
}

// ----- 生命周期 ----------------------------------------------------------------------------------------------------------

// Prepare 第一次调用时开始加载
//
// 已经prepare过的话，取消当前的加载任务并创建新的，tcp立即开始加载，udp在下一次 ContinueLoading 时开始
//
func (w *StreamWrapper) Prepare() {
	transport := w.track.Format().Transport

	w.mu.Lock()
	if w.loadingFinished || w.released {
		w.mu.Unlock()
		return
	}
	if !w.prepared && !w.ldr.IsLoading() {
		w.startLoaderLocked(transport)
		w.mu.Unlock()
		return
	}
	if !w.prepared {
		w.mu.Unlock()
		return
	}

	Log.Infof("[%s] re-prepare, retire current loader.", w.uniqueKey)
	w.pendingResetLoadable = true
	old := w.ldr
	w.ldr = loader.NewLoader("Loader:StreamWrapper", w.handler)
	w.udpRestartPending = transport.IsUdp()
	w.mu.Unlock()

	// 取消时加载协程可能还在调用Track，所以不能持有锁
	if old.IsLoading() {
		old.CancelLoading()
	}
	old.Release()

	if !transport.IsUdp() {
		w.mu.Lock()
		if !w.released {
			w.startLoaderLocked(transport)
		}
		w.mu.Unlock()
	}
}

// Playback 需要nat穿透时先发送punch包，然后放行加载协程
func (w *StreamWrapper) Playback() {
	w.mu.Lock()
	if w.loadingFinished || !w.prepared || w.playback || w.released {
		w.mu.Unlock()
		return
	}
	l := w.loadable
	positionUs := w.lastSeekPositionUs
	w.mu.Unlock()

	if w.session.IsNatRequired() && l != nil {
		w.punch(l)
	}

	w.ContinueLoading(positionUs)
}

// Release 可重复调用
func (w *StreamWrapper) Release() {
	w.mu.Lock()
	if w.released {
		w.mu.Unlock()
		return
	}
	ldr := w.ldr
	w.mu.Unlock()

	if ldr.IsLoading() {
		ldr.CancelLoading()
	}
	ldr.Release()

	w.mu.Lock()
	// 没有prepare时，样本队列可能还在被加载协程写入
	if w.prepared {
		for _, q := range w.sampleQueues {
			q.DiscardToEnd()
		}
		w.prepared = false
		w.playback = false
	}
	w.released = true
	w.mu.Unlock()

	_ = w.inReportSink.Close()
	_ = w.samplesSink.Close()
	w.outReportSink.RemoveListener(w.session)
	_ = w.outReportSink.Close()
	w.session.RemoveListener(w)

	if w.ownHandler {
		w.handler.RemoveAll()
		w.handler.Dispose()
	}
	Log.Infof("[%s] lifecycle dispose stream wrapper.", w.uniqueKey)
}

// MaybeThrowPrepareError 加载失败次数超过 StreamWrapperOption.MinLoadableRetryCount 时返回错误
func (w *StreamWrapper) MaybeThrowPrepareError() error {
	return w.maybeThrowError()
}

func (w *StreamWrapper) maybeThrowError() error {
	w.mu.Lock()
	ldr := w.ldr
	w.mu.Unlock()
	return ldr.MaybeThrowError(w.option.MinLoadableRetryCount)
}

// OnInterleavedFrame tcp模式下，信令连接上收到的 `$` 数据，根据channel分发到rtp或者rtcp
func (w *StreamWrapper) OnInterleavedFrame(frame upstream.InterleavedFrame) {
	w.mu.Lock()
	ok := w.prepared && !w.loadingFinished && w.interleavedChannels != nil
	channels := w.interleavedChannels
	w.mu.Unlock()
	if !ok {
		return
	}

	if frame.Channel == channels[0] {
		if err := w.samplesSink.Write(frame.Data); err != nil {
			Log.Debugf("[%s] write samples sink failed. err=%+v", w.uniqueKey, err)
		}
	} else if len(channels) > 1 && frame.Channel == channels[1] {
		if err := w.inReportSink.Write(frame.Data); err != nil {
			Log.Debugf("[%s] write report sink failed. err=%+v", w.uniqueKey, err)
		}
	}
}

// ----- track选择 ---------------------------------------------------------------------------------------------------------

// SelectTracks
//
// 先取消不再需要的，再选择新的。<streams>中被取消的置为nil，新选择的创建 SampleStream 并设置<streamResetFlags>
//
// 每个selection必须只选择组内下标为0的一个track
//
func (w *StreamWrapper) SelectTracks(selections []TrackSelection, mayRetainStreamFlags []bool, streams []SampleStream, streamResetFlags []bool, positionUs int64) error {
	w.mu.Lock()
	if !w.prepared {
		w.mu.Unlock()
		Log.Assert(true, false, "select tracks before prepare")
		return fmt.Errorf("%w. select tracks before prepare", base.ErrContract)
	}

	for i := range selections {
		if streams[i] == nil || (selections[i] != nil && mayRetainStreamFlags[i]) {
			continue
		}
		s, ok := streams[i].(*wrapperSampleStream)
		if !ok || s.w != w {
			w.mu.Unlock()
			return fmt.Errorf("%w. stream not created by this wrapper", base.ErrContract)
		}
		if err := w.setTrackGroupEnabledStateLocked(s.group, false); err != nil {
			w.mu.Unlock()
			return err
		}
		streams[i] = nil
	}

	for i := range selections {
		if streams[i] != nil || selections[i] == nil {
			continue
		}
		selection := selections[i]
		if selection.Length() != 1 || selection.IndexInTrackGroup(0) != 0 {
			w.mu.Unlock()
			Log.Assert(true, false, "track selection must select index 0 of one group")
			return fmt.Errorf("%w. invalid track selection. length=%d", base.ErrContract, selection.Length())
		}
		group := w.trackGroups.IndexOf(selection.TrackGroup())
		if group < 0 {
			w.mu.Unlock()
			return fmt.Errorf("%w. track group not found", base.ErrContract)
		}
		if err := w.setTrackGroupEnabledStateLocked(group, true); err != nil {
			w.mu.Unlock()
			return err
		}
		streams[i] = &wrapperSampleStream{w: w, group: group}
		streamResetFlags[i] = true
	}

	trackTypes := make([]base.TrackType, len(w.sampleQueueTrackTypes))
	copy(trackTypes, w.sampleQueueTrackTypes)
	enabledStates := make([]bool, len(w.trackGroupEnabledStates))
	copy(enabledStates, w.trackGroupEnabledStates)
	w.mu.Unlock()

	w.session.OnSelectTracks(trackTypes, enabledStates)
	return nil
}

func (w *StreamWrapper) setTrackGroupEnabledStateLocked(group int, enabled bool) error {
	if group < 0 || group >= len(w.trackGroupEnabledStates) {
		return fmt.Errorf("%w. track group out of range. group=%d", base.ErrContract, group)
	}
	if w.trackGroupEnabledStates[group] == enabled {
		Log.Assert(!enabled, w.trackGroupEnabledStates[group], "track group enabled state not changed")
		return fmt.Errorf("%w. track group already in state. group=%d, enabled=%v", base.ErrContract, group, enabled)
	}
	w.trackGroupEnabledStates[group] = enabled
	if enabled {
		w.enabledTrackCount++
	} else {
		w.enabledTrackCount--
	}
	return nil
}

// ----- seek, 缓冲 ------------------------------------------------------------------------------------------------------

// SeekToUs 总是清空所有样本队列，并在加载协程中seek
//
// @return 样本队列是否被重置，总是true
//
func (w *StreamWrapper) SeekToUs(positionUs int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeekPositionUs = positionUs
	for _, q := range w.sampleQueues {
		q.DiscardToEnd()
	}
	w.pendingResetPositionUs.Store(positionUs)
	return true
}

func (w *StreamWrapper) DiscardBuffer(positionUs int64, toKeyframe bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, q := range w.sampleQueues {
		q.DiscardTo(positionUs, toKeyframe, w.trackGroupEnabledStates[i])
	}
}

func (w *StreamWrapper) DiscardBufferToEnd() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, q := range w.sampleQueues {
		q.DiscardToEnd()
	}
}

// ContinueLoading 已经prepare但还没有进入播放状态时，放行阻塞在条件变量上的加载协程
func (w *StreamWrapper) ContinueLoading(positionUs int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loadingFinished || !w.prepared || w.released {
		return false
	}

	if w.udpRestartPending && !w.ldr.IsLoading() {
		w.udpRestartPending = false
		w.startLoaderLocked(w.track.Format().Transport)
	}

	if w.ldr.IsLoading() && !w.playback {
		w.loadCondition.Open()
	}
	return true
}

func (w *StreamWrapper) NextLoadPositionUs() int64 {
	if w.isPendingReset() {
		return w.pendingResetPositionUs.Load()
	}
	w.mu.Lock()
	enabled := w.enabledTrackCount
	w.mu.Unlock()
	if enabled == 0 {
		return base.TimeEndOfSource
	}
	return w.BufferedPositionUs()
}

// BufferedPositionUs 所有被选中的track中，最小的已缓存时间戳
func (w *StreamWrapper) BufferedPositionUs() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loadingFinished {
		return base.TimeEndOfSource
	}
	if w.isPendingReset() {
		return w.pendingResetPositionUs.Load()
	}
	ret := int64(math.MaxInt64)
	for i, q := range w.sampleQueues {
		if !w.trackGroupEnabledStates[i] {
			continue
		}
		if v := q.LargestQueuedTimestampUs(); v < ret {
			ret = v
		}
	}
	return ret
}

func (w *StreamWrapper) ReevaluateBuffer(positionUs int64) {
}

func (w *StreamWrapper) isPendingReset() bool {
	return w.pendingResetPositionUs.Load() != base.TimeUnset
}

// ----- ISessionListener ----------------------------------------------------------------------------------------------

func (w *StreamWrapper) OnPausePlayback() {
	w.maybeSeekLoad()
}

func (w *StreamWrapper) OnResumePlayback() {
	w.maybeSeekLoad()
}

func (w *StreamWrapper) OnSeekPlayback() {
	w.maybeSeekLoad()
}

func (w *StreamWrapper) OnStopPlayback() {
	w.mu.Lock()
	if w.ldr.IsLoading() && w.playback && w.loadable != nil {
		w.loadable.CancelLoad()
	}
	w.mu.Unlock()

	w.Release()
}

func (w *StreamWrapper) maybeSeekLoad() {
	if !w.isPendingReset() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ldr.IsLoading() && w.playback && w.loadable != nil {
		w.loadable.seekLoad()
	}
}

// ----- loader.Callback -----------------------------------------------------------------------------------------------

func (w *StreamWrapper) OnLoadCompleted(loadable loader.Loadable, loadDurationMs int64) {
	Log.Infof("[%s] load completed. duration=%dms", w.uniqueKey, loadDurationMs)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadingFinished = true
	w.pendingResetLoadable = false
}

func (w *StreamWrapper) OnLoadCanceled(loadable loader.Loadable, loadDurationMs int64, released bool) {
	Log.Infof("[%s] load canceled. duration=%dms, released=%v", w.uniqueKey, loadDurationMs, released)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pendingResetLoadable {
		w.pendingResetLoadable = false
	} else {
		w.loadingFinished = true
	}
}

// OnLoadError 不重试，由上层重新Prepare
func (w *StreamWrapper) OnLoadError(loadable loader.Loadable, loadDurationMs int64, err error, errorCount int) loader.LoadErrorAction {
	Log.Warnf("[%s] load error. duration=%dms, count=%d, err=%+v", w.uniqueKey, loadDurationMs, errorCount, err)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadingFinished = true
	return loader.DontRetry
}

// ----- extractor.Output, 在加载协程中调用 ------------------------------------------------------------------------------

// Track 同一个id只创建一个样本队列
func (w *StreamWrapper) Track(id int, trackType base.TrackType) extractor.TrackOutput {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, trackId := range w.sampleQueueTrackIds {
		if trackId == id {
			return w.sampleQueues[i]
		}
	}

	q := samplequeue.NewSampleQueue(strconv.Itoa(id), trackType)
	q.SetUpstreamFormatChangeListener(w)
	w.sampleQueues = append(w.sampleQueues, q)
	w.sampleQueueTrackIds = append(w.sampleQueueTrackIds, id)
	w.sampleQueueTrackTypes = append(w.sampleQueueTrackTypes, trackType)
	w.trackGroupEnabledStates = append(w.trackGroupEnabledStates, false)
	Log.Debugf("[%s] new sample queue. id=%d, type=%s", w.uniqueKey, id, trackType.ReadableString())
	return q
}

func (w *StreamWrapper) EndTracks() {
	w.mu.Lock()
	w.sampleQueuesBuilt = true
	w.mu.Unlock()
	w.handler.Post(w.maybeFinishPrepare)
}

func (w *StreamWrapper) SeekMap(seekMap extractor.SeekMap) {
}

// OnUpstreamFormatChanged samplequeue.UpstreamFormatChangedListener
func (w *StreamWrapper) OnUpstreamFormatChanged(format base.Format) {
	w.handler.Post(w.maybeFinishPrepare)
}

// ----- SampleStream的实现 ------------------------------------------------------------------------------------------------

func (w *StreamWrapper) IsReady(group int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loadingFinished || w.sampleQueues[group].HasNextSample()
}

func (w *StreamWrapper) ReadData(group int, formatHolder *samplequeue.FormatHolder, buffer *samplequeue.DecoderInputBuffer, formatRequired bool) int {
	if w.isPendingReset() {
		return samplequeue.ResultNothingRead
	}
	w.mu.Lock()
	q := w.sampleQueues[group]
	finished := w.loadingFinished
	w.mu.Unlock()
	return q.Read(formatHolder, buffer, formatRequired, finished)
}

func (w *StreamWrapper) SkipData(group int, positionUs int64) int {
	if w.isPendingReset() {
		return 0
	}
	w.mu.Lock()
	q := w.sampleQueues[group]
	finished := w.loadingFinished
	w.mu.Unlock()
	if finished && positionUs > q.LargestQueuedTimestampUs() {
		return q.AdvanceToEnd()
	}
	return q.AdvanceTo(positionUs)
}

// ----- private -------------------------------------------------------------------------------------------------------

func (w *StreamWrapper) startLoaderLocked(transport Transport) {
	var strategy streamStrategy
	if transport.IsUdp() {
		strategy = &udpStrategy{}
	} else {
		strategy = &tcpStrategy{}
	}
	l := newMediaStreamLoadable(w, strategy, !transport.IsUdp())
	if err := w.ldr.StartLoading(l, w, w.option.MinLoadableRetryCount); err != nil {
		Log.Errorf("[%s] start loading failed. err=%+v", w.uniqueKey, err)
		return
	}
	w.loadable = l
	w.prepared = true
	Log.Debugf("[%s] start loading. lower transport=%s", w.uniqueKey, transport.LowerTransport)
}

// maybeFinishPrepare 在Handler协程中执行
func (w *StreamWrapper) maybeFinishPrepare() {
	w.mu.Lock()
	if w.released || !w.prepared || w.playback || !w.sampleQueuesBuilt {
		w.mu.Unlock()
		return
	}
	groups := make([]TrackGroup, len(w.sampleQueues))
	for i, q := range w.sampleQueues {
		f := q.UpstreamFormat()
		if f == nil {
			w.mu.Unlock()
			return
		}
		groups[i] = NewTrackGroup(*f)
	}

	w.loadCondition.Close()
	w.trackGroups = NewTrackGroupArray(groups...)
	w.playback = true
	trackGroups := w.trackGroups
	w.mu.Unlock()

	Log.Infof("[%s] prepare success. track groups=%s", w.uniqueKey, trackGroups.String())
	w.listener.OnMediaStreamPrepareSuccess(w)
}

func (w *StreamWrapper) setLocalPort(port int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.localPort = port
}

// post 投递给listener的回调，wrapper释放后不再回调
func (w *StreamWrapper) post(fn func(w *StreamWrapper)) {
	w.handler.Post(func() {
		w.mu.Lock()
		released := w.released
		w.mu.Unlock()
		if released {
			return
		}
		fn(w)
	})
}

// ----- nat穿透 ---------------------------------------------------------------------------------------------------------

func (w *StreamWrapper) punch(l *mediaStreamLoadable) {
	transport := w.track.Format().Transport
	if len(transport.ServerPort) == 0 {
		return
	}

	host := transport.Source
	if host == "" {
		host = transport.Destination
	}
	if host == "" {
		host = hostOfUrl(w.track.Url())
	}

	ds := l.getDataSource()
	if ds == nil {
		Log.Debugf("[%s] data source not opened yet, skip punch.", w.uniqueKey)
		return
	}
	for i := 0; i < w.option.PunchCount; i++ {
		if transport.IsRtp() {
			rds, ok := ds.(*upstream.RtpDataSinkSource)
			if !ok {
				return
			}
			w.logPunchErr(rds.WriteTo(rtprtcp.MakeRtpPunchPacket(0), host, transport.ServerPort[0]))
			if len(transport.ServerPort) == 2 && w.session.IsRtcpSupported() && !w.session.IsRtcpMuxed() {
				w.logPunchErr(rds.WriteRtcpTo(rtprtcp.MakeRtcpPunchPacket(0), host, transport.ServerPort[1]))
			}
		} else {
			uds, ok := ds.(*upstream.UdpDataSinkSource)
			if !ok {
				return
			}
			w.logPunchErr(uds.WriteTo(punchMessage, host, transport.ServerPort[0]))
		}
	}
}

func (w *StreamWrapper) logPunchErr(err error) {
	if err != nil {
		Log.Debugf("[%s] send punch packet failed. err=%+v", w.uniqueKey, err)
	}
}

func hostOfUrl(rawUrl string) string {
	ctx, err := base.ParseRtspUrl(rawUrl)
	if err != nil {
		return ""
	}
	return ctx.Host
}
