// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package extractor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strconv"

	ts "github.com/asticode/go-astits"
	"github.com/q191201771/lalplay/pkg/aac"
	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/h2645"
)

var _ Extractor = &TsExtractor{}

const (
	tsPacketSize = 188
	tsSyncByte   = 0x47

	// Sniff时检查的连续ts包的个数
	tsSniffPacketCount = 5

	ptsClockRate = base.Mp2tClockRate
)

// TsExtractor 解析mpegts字节流
type TsExtractor struct {
	core *tsDemuxCore
}

func NewTsExtractor() *TsExtractor {
	return &TsExtractor{
		core: newTsDemuxCore(),
	}
}

// Sniff 连续多个包的起始字节都是同步字节
func (e *TsExtractor) Sniff(input Input) (bool, error) {
	b := make([]byte, tsPacketSize*tsSniffPacketCount)
	if err := input.PeekFully(b); err != nil {
		return false, err
	}
	for i := 0; i < tsSniffPacketCount; i++ {
		if b[i*tsPacketSize] != tsSyncByte {
			return false, nil
		}
	}
	return true, nil
}

func (e *TsExtractor) Init(output Output) {
	e.core.init(output)
}

func (e *TsExtractor) Read(input Input, seekPosition *PositionHolder) (int, error) {
	e.core.maybeBindReader(input, func() io.Reader {
		return &inputReader{input: input}
	})
	return e.core.readOne()
}

func (e *TsExtractor) Seek(position int64, timeUs int64) {
	e.core.seek(timeUs)
}

func (e *TsExtractor) Release() {
	e.core.release()
}

// ----- tsDemuxCore ---------------------------------------------------------------------------------------------------

type errTaker interface {
	takeLastErr() error
}

type tsTrack struct {
	pid        uint16
	id         string
	streamType ts.StreamType
	mime       string
	out        TrackOutput
	formatSent bool
}

// tsDemuxCore 基于astits的ts解析，TsExtractor和RtpMp2tExtractor共用
type tsDemuxCore struct {
	ctx    context.Context
	cancel context.CancelFunc

	boundTo interface{}
	reader  io.Reader
	demuxer *ts.Demuxer

	output      Output
	pat         *ts.PATData
	pmts        map[uint16]*ts.PMTData
	tracks      map[uint16]*tsTrack
	tracksEnded bool

	ptsAdjuster ptsAdjuster
}

func newTsDemuxCore() *tsDemuxCore {
	ctx, cancel := context.WithCancel(context.Background())
	return &tsDemuxCore{
		ctx:    ctx,
		cancel: cancel,
		pmts:   make(map[uint16]*ts.PMTData),
		tracks: make(map[uint16]*tsTrack),
	}
}

func (c *tsDemuxCore) init(output Output) {
	c.output = output
}

// maybeBindReader demuxer从reader中拉取数据，输入对象变化时重新创建
func (c *tsDemuxCore) maybeBindReader(key interface{}, newReader func() io.Reader) {
	if c.demuxer != nil && c.boundTo == key {
		return
	}
	c.boundTo = key
	c.reader = newReader()
	c.demuxer = ts.NewDemuxer(c.ctx, bufio.NewReader(c.reader))
}

func (c *tsDemuxCore) readOne() (int, error) {
	d, err := c.demuxer.NextData()
	if err != nil {
		if errors.Is(err, ts.ErrNoMorePackets) {
			return ResultEndOfInput, nil
		}
		// demuxer内部的缓存状态已经不可信，下次Read时重新创建
		c.demuxer = nil

		// 优先返回数据源的原始错误，方便上层判断超时等情况
		if et, ok := c.reader.(errTaker); ok {
			if lastErr := et.takeLastErr(); lastErr != nil {
				if errors.Is(lastErr, base.ErrEndOfInput) {
					return ResultEndOfInput, nil
				}
				return ResultContinue, lastErr
			}
		}
		return ResultContinue, err
	}
	if d == nil {
		return ResultContinue, nil
	}

	switch {
	case d.PAT != nil:
		c.pat = d.PAT
	case d.PMT != nil:
		c.onPmt(d.PMT)
	case d.PES != nil:
		if d.FirstPacket != nil {
			c.onPes(d.FirstPacket.Header.PID, d.PES)
		}
	}
	return ResultContinue, nil
}

func (c *tsDemuxCore) onPmt(pmt *ts.PMTData) {
	c.pmts[pmt.ProgramNumber] = pmt
	if c.tracksEnded || c.pat == nil {
		return
	}
	for _, p := range c.pat.Programs {
		// program number 0 对应的是network pid
		if p.ProgramNumber == 0 {
			continue
		}
		if _, ok := c.pmts[p.ProgramNumber]; !ok {
			return
		}
	}

	for _, pm := range c.pmts {
		for _, es := range pm.ElementaryStreams {
			if _, ok := c.tracks[es.ElementaryPID]; ok {
				continue
			}
			var mime string
			switch es.StreamType {
			case ts.StreamTypeH264Video:
				mime = base.MimeVideoH264
			case ts.StreamTypeH265Video:
				mime = base.MimeVideoH265
			case ts.StreamTypeAACAudio:
				mime = base.MimeAudioAac
			default:
				Log.Debugf("ignore unsupported stream. pid=%d, streamType=%d", es.ElementaryPID, es.StreamType)
				continue
			}

			t := &tsTrack{
				pid:        es.ElementaryPID,
				id:         strconv.Itoa(int(es.ElementaryPID)),
				streamType: es.StreamType,
				mime:       mime,
			}
			t.out = c.output.Track(int(es.ElementaryPID), base.MimeTypeToTrackType(mime))
			// 视频的格式立即可知，音频需要等到第一个adts头
			if mime != base.MimeAudioAac {
				t.out.Format(base.NewFormat(t.id, mime))
				t.formatSent = true
			}
			c.tracks[es.ElementaryPID] = t
		}
	}

	c.tracksEnded = true
	c.output.EndTracks()
	c.output.SeekMap(NewUnseekable(base.TimeUnset))
}

func (c *tsDemuxCore) onPes(pid uint16, pes *ts.PESData) {
	t, ok := c.tracks[pid]
	if !ok {
		return
	}
	if pes.Header == nil || pes.Header.OptionalHeader == nil || pes.Header.OptionalHeader.PTS == nil {
		Log.Warnf("pes without pts, drop it. pid=%d", pid)
		return
	}
	timeUs := c.ptsAdjuster.adjust(pes.Header.OptionalHeader.PTS.Base)

	switch t.mime {
	case base.MimeAudioAac:
		c.onAdts(t, timeUs, pes.Data)
	default:
		flags := 0
		if containsKeyNalu(t.mime == base.MimeVideoH264, pes.Data) {
			flags |= SampleFlagKeyFrame
		}
		t.out.SampleData(pes.Data)
		t.out.SampleMetadata(timeUs, flags, len(pes.Data), 0)
	}
}

// 一个pes中可能包含多个adts帧
func (c *tsDemuxCore) onAdts(t *tsTrack, timeUs int64, data []byte) {
	var ctx aac.AdtsHeaderContext
	for i := 0; len(data) > 0; i++ {
		if err := ctx.Unpack(data); err != nil {
			Log.Warnf("unpack adts header failed. pid=%d, err=%+v", t.pid, err)
			return
		}
		frameLen := int(ctx.AdtsLength)
		headerLen := ctx.HeaderLength()
		if frameLen <= headerLen || frameLen > len(data) {
			Log.Warnf("invalid adts frame length. pid=%d, frameLen=%d, remain=%d", t.pid, frameLen, len(data))
			return
		}
		rate, err := ctx.AscCtx.GetSamplingFrequency()
		if err != nil {
			Log.Warnf("invalid adts sampling frequency. pid=%d, err=%+v", t.pid, err)
			return
		}

		if !t.formatSent {
			f := base.NewFormat(t.id, base.MimeAudioAac)
			f.SampleRate = rate
			if ch, err := ctx.AscCtx.GetChannelCount(); err == nil {
				f.ChannelCount = ch
			}
			f.InitializationData = [][]byte{ctx.AscCtx.Pack()}
			t.out.Format(f)
			t.formatSent = true
		}

		frame := data[headerLen:frameLen]
		t.out.SampleData(frame)
		t.out.SampleMetadata(timeUs+int64(i)*aacFrameDurationUs(rate), SampleFlagKeyFrame, len(frame), 0)
		data = data[frameLen:]
	}
}

func (c *tsDemuxCore) seek(timeUs int64) {
	c.ptsAdjuster.reset(timeUs)
}

func (c *tsDemuxCore) release() {
	c.cancel()
}

func aacFrameDurationUs(sampleRate int) int64 {
	if sampleRate <= 0 {
		return 0
	}
	return 1024 * 1000000 / int64(sampleRate)
}

// containsKeyNalu 遍历annexb格式的nalu，判断是否包含关键帧
func containsKeyNalu(isH264 bool, annexb []byte) bool {
	for i := 0; i+3 < len(annexb); i++ {
		if annexb[i] != 0 || annexb[i+1] != 0 || annexb[i+2] != 1 {
			continue
		}
		typ := h2645.ParseNaluType(isH264, annexb[i+3])
		if isH264 && typ == h2645.H264NaluTypeIdrSlice {
			return true
		}
		if !isH264 && h2645.H265IsIrapNalu(typ) {
			return true
		}
		i += 2
	}
	return false
}

// ptsAdjuster 将33位的pts转换为从<offsetUs>开始的微秒时间戳，处理回绕
type ptsAdjuster struct {
	inited   bool
	offsetUs int64
	last     int64
	extended int64
}

const ptsWrap = int64(1) << 33

func (a *ptsAdjuster) reset(offsetUs int64) {
	a.inited = false
	a.offsetUs = offsetUs
	a.extended = 0
}

func (a *ptsAdjuster) adjust(pts int64) int64 {
	if !a.inited {
		a.inited = true
		a.last = pts
		a.extended = 0
	} else {
		d := (pts - a.last) % ptsWrap
		if d > ptsWrap/2 {
			d -= ptsWrap
		} else if d < -ptsWrap/2 {
			d += ptsWrap
		}
		a.extended += d
		a.last = pts
	}
	return a.offsetUs + a.extended*1000000/ptsClockRate
}

