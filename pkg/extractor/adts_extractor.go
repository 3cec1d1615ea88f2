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
	"fmt"

	"github.com/q191201771/lalplay/pkg/aac"
	"github.com/q191201771/lalplay/pkg/base"
)

var _ Extractor = &AdtsExtractor{}

const adtsTrackId = 0

// AdtsExtractor 解析adts格式的aac裸流
//
// 时间戳由帧的个数推算，每帧1024个采样
//
type AdtsExtractor struct {
	output     Output
	track      TrackOutput
	formatSent bool

	header     []byte
	frameCount int64
	offsetUs   int64
}

func NewAdtsExtractor() *AdtsExtractor {
	return &AdtsExtractor{
		header: make([]byte, aac.AdtsHeaderLength+2),
	}
}

// Sniff 第一帧头合法，并且按帧长度跳过后是下一帧的同步字
func (e *AdtsExtractor) Sniff(input Input) (bool, error) {
	b := make([]byte, aac.AdtsHeaderLength)
	if err := input.PeekFully(b); err != nil {
		return false, err
	}
	ctx, err := aac.NewAdtsHeaderContext(b)
	if err != nil {
		return false, nil
	}
	frameLen := int(ctx.AdtsLength)
	if frameLen <= ctx.HeaderLength() {
		return false, nil
	}

	rest := make([]byte, frameLen-aac.AdtsHeaderLength+2)
	if err := input.PeekFully(rest); err != nil {
		return false, err
	}
	return aac.IsAdtsSyncWord(rest[len(rest)-2:]), nil
}

func (e *AdtsExtractor) Init(output Output) {
	e.output = output
	e.track = output.Track(adtsTrackId, base.TrackTypeAudio)
	output.EndTracks()
	output.SeekMap(NewUnseekable(base.TimeUnset))
}

func (e *AdtsExtractor) Read(input Input, seekPosition *PositionHolder) (int, error) {
	header := e.header[:aac.AdtsHeaderLength]
	if err := input.ReadFully(header); err != nil {
		if errors.Is(err, base.ErrEndOfInput) {
			return ResultEndOfInput, nil
		}
		return ResultContinue, err
	}

	var ctx aac.AdtsHeaderContext
	if err := ctx.Unpack(header); err != nil {
		return ResultContinue, fmt.Errorf("%w. invalid adts header. err=%+v", base.ErrExtractor, err)
	}
	headerLen := ctx.HeaderLength()
	if headerLen > aac.AdtsHeaderLength {
		// crc
		if err := input.SkipFully(headerLen - aac.AdtsHeaderLength); err != nil {
			return ResultContinue, err
		}
	}
	frameLen := int(ctx.AdtsLength) - headerLen
	if frameLen <= 0 {
		return ResultContinue, fmt.Errorf("%w. invalid adts frame length. length=%d", base.ErrExtractor, ctx.AdtsLength)
	}
	frame := make([]byte, frameLen)
	if err := input.ReadFully(frame); err != nil {
		if errors.Is(err, base.ErrEndOfInput) {
			return ResultEndOfInput, nil
		}
		return ResultContinue, err
	}

	rate, err := ctx.AscCtx.GetSamplingFrequency()
	if err != nil {
		return ResultContinue, err
	}
	if !e.formatSent {
		f := base.NewFormat(fmt.Sprintf("%d", adtsTrackId), base.MimeAudioAac)
		f.SampleRate = rate
		if ch, err := ctx.AscCtx.GetChannelCount(); err == nil {
			f.ChannelCount = ch
		}
		f.InitializationData = [][]byte{ctx.AscCtx.Pack()}
		e.track.Format(f)
		e.formatSent = true
	}

	timeUs := e.offsetUs + e.frameCount*aacFrameDurationUs(rate)
	e.frameCount++
	e.track.SampleData(frame)
	e.track.SampleMetadata(timeUs, SampleFlagKeyFrame, len(frame), 0)
	return ResultContinue, nil
}

func (e *AdtsExtractor) Seek(position int64, timeUs int64) {
	e.frameCount = 0
	e.offsetUs = timeUs
}

func (e *AdtsExtractor) Release() {
}
