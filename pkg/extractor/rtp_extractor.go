// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package extractor

import (
	"errors"
	"strconv"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/h2645"
	"github.com/q191201771/lalplay/pkg/rtpfmt"
	"github.com/q191201771/lalplay/pkg/rtprtcp"
)

var _ Extractor = &DefaultRtpExtractor{}

// DefaultRtpExtractor 单路rtp流，根据协商好的负载格式解包
type DefaultRtpExtractor struct {
	payloadFormat    *rtpfmt.PayloadFormat
	trackIdGenerator *TrackIdGenerator

	output      TrackOutput
	unpacker    rtprtcp.IRtpUnpacker
	clockRate   int
	isAnnexbOut bool

	packet []byte

	tsAdjuster rtpTimestampAdjuster
}

func NewDefaultRtpExtractor(payloadFormat *rtpfmt.PayloadFormat, trackIdGenerator *TrackIdGenerator) *DefaultRtpExtractor {
	return &DefaultRtpExtractor{
		payloadFormat:    payloadFormat,
		trackIdGenerator: trackIdGenerator,
		packet:           make([]byte, readChunkSize),
	}
}

// Sniff rtp流不通过探测选择extractor
func (e *DefaultRtpExtractor) Sniff(input Input) (bool, error) {
	return false, nil
}

func (e *DefaultRtpExtractor) Init(output Output) {
	id := e.trackIdGenerator.GenerateNewId()
	mime := e.payloadFormat.SampleMimeType()
	trackType := base.MimeTypeToTrackType(mime)

	e.output = output.Track(id, trackType)
	e.clockRate = e.payloadFormat.ClockRate()
	e.isAnnexbOut = mime == base.MimeVideoH264 || mime == base.MimeVideoH265

	var err error
	e.unpacker, err = rtprtcp.DefaultRtpUnpackerFactory(mime, e.clockRate, e.onFrame, func(option *rtprtcp.UnpackerOption) {
		if v, err := strconv.Atoi(e.payloadFormat.Parameter(rtpfmt.ParamSizeLength)); err == nil {
			option.SizeLength = v
		}
		if v, err := strconv.Atoi(e.payloadFormat.Parameter(rtpfmt.ParamIndexLength)); err == nil {
			option.IndexLength = v
		}
	})
	if err != nil {
		Log.Warnf("create rtp unpacker failed, samples will be dropped. format=%s, err=%+v", e.payloadFormat.String(), err)
	}

	e.output.Format(e.payloadFormat.Format(e.trackIdGenerator.FormatId()))
	output.EndTracks()
	output.SeekMap(NewUnseekable(base.TimeUnset))
}

func (e *DefaultRtpExtractor) Read(input Input, seekPosition *PositionHolder) (int, error) {
	n, err := input.Read(e.packet)
	if err != nil {
		if errors.Is(err, base.ErrEndOfInput) {
			return ResultEndOfInput, nil
		}
		return ResultContinue, err
	}

	pkt, err := rtprtcp.ParseRtpPacket(e.packet[:n])
	if err != nil {
		Log.Warnf("parse rtp packet failed, drop it. len=%d, err=%+v", n, err)
		return ResultContinue, nil
	}
	if e.unpacker != nil {
		e.unpacker.Feed(pkt)
	}
	return ResultContinue, nil
}

func (e *DefaultRtpExtractor) Seek(position int64, timeUs int64) {
	if e.unpacker != nil {
		e.unpacker.Reset()
	}
	e.tsAdjuster.reset(timeUs)
}

func (e *DefaultRtpExtractor) Release() {
}

func (e *DefaultRtpExtractor) onFrame(frame rtprtcp.Frame) {
	timeUs := e.tsAdjuster.adjust(frame.Timestamp, e.clockRate)

	payload := frame.Payload
	if e.isAnnexbOut {
		b, err := h2645.Avcc2Annexb(payload)
		if err != nil {
			Log.Warnf("convert avcc to annexb failed. err=%+v", err)
			return
		}
		payload = b
	}

	flags := 0
	if frame.Key {
		flags |= SampleFlagKeyFrame
	}
	e.output.SampleData(payload)
	e.output.SampleMetadata(timeUs, flags, len(payload), 0)
}

// rtpTimestampAdjuster 将32位的rtp时间戳转换为从<offsetUs>开始的微秒时间戳，处理回绕
type rtpTimestampAdjuster struct {
	inited   bool
	offsetUs int64
	first    uint32
	last     uint32
	extended int64 // 相对first的累计值
}

func (a *rtpTimestampAdjuster) reset(offsetUs int64) {
	a.inited = false
	a.offsetUs = offsetUs
	a.extended = 0
}

func (a *rtpTimestampAdjuster) adjust(ts uint32, clockRate int) int64 {
	if !a.inited {
		a.inited = true
		a.first = ts
		a.last = ts
		a.extended = 0
	} else {
		// 使用有符号的差值，兼容小幅度的乱序
		a.extended += int64(int32(ts - a.last))
		a.last = ts
	}
	if clockRate <= 0 {
		return a.offsetUs
	}
	return a.offsetUs + a.extended*1000000/int64(clockRate)
}
