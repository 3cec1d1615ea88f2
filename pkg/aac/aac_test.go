// Copyright 2019, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package aac_test

import (
	"testing"

	"github.com/q191201771/lalplay/pkg/aac"
	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/naza/pkg/assert"
)

func TestMakeAacLcAsc(t *testing.T) {
	asc, err := aac.MakeAacLcAsc(44100, 2)
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{0x12, 0x10}, asc)

	asc, err = aac.MakeAacLcAsc(48000, 1)
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{0x11, 0x88}, asc)

	_, err = aac.MakeAacLcAsc(44000, 2)
	assert.Equal(t, base.ErrSamplingFrequencyIndex, err)

	_, err = aac.MakeAacLcAsc(44100, 9)
	assert.Equal(t, base.ErrAac, err)
}

func TestParseAscRateAndChannels(t *testing.T) {
	rate, channels, err := aac.ParseAscRateAndChannels([]byte{0x12, 0x10})
	assert.Equal(t, nil, err)
	assert.Equal(t, 44100, rate)
	assert.Equal(t, 2, channels)

	rate, channels, err = aac.ParseAscRateAndChannels([]byte{0x14, 0x08})
	assert.Equal(t, nil, err)
	assert.Equal(t, 16000, rate)
	assert.Equal(t, 1, channels)

	// 显式采样率, aot=2, index=15, rate=44100(0x00AC44), channel=2
	// 00010 1111 000000001010110001000100 0010 000
	rate, channels, err = aac.ParseAscRateAndChannels([]byte{0x17, 0x80, 0x56, 0x22, 0x10})
	assert.Equal(t, nil, err)
	assert.Equal(t, 44100, rate)
	assert.Equal(t, 2, channels)

	_, _, err = aac.ParseAscRateAndChannels([]byte{0x12})
	assert.Equal(t, base.ErrShortBuffer, err)

	// 采样率下标为13，未定义
	_, _, err = aac.ParseAscRateAndChannels([]byte{0x16, 0x90})
	assert.Equal(t, base.ErrSamplingFrequencyIndex, err)
}

func TestAdtsHeader(t *testing.T) {
	ascCtx, err := aac.NewAscContext([]byte{0x12, 0x10})
	assert.Equal(t, nil, err)
	h := ascCtx.PackAdtsHeader(100)
	assert.Equal(t, aac.AdtsHeaderLength, len(h))
	assert.Equal(t, true, aac.IsAdtsSyncWord(h))

	ctx, err := aac.NewAdtsHeaderContext(h)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(2), ctx.AscCtx.AudioObjectType)
	assert.Equal(t, uint8(4), ctx.AscCtx.SamplingFrequencyIndex)
	assert.Equal(t, uint8(2), ctx.AscCtx.ChannelConfiguration)
	assert.Equal(t, uint16(107), ctx.AdtsLength)
	assert.Equal(t, aac.AdtsHeaderLength, ctx.HeaderLength())

	asc, err := aac.MakeAscWithAdtsHeader(h)
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{0x12, 0x10}, asc)

	_, err = aac.NewAdtsHeaderContext([]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	assert.Equal(t, base.ErrAac, err)
}
