// Copyright 2019, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package aac

import (
	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// AudioSpecificConfig(asc)
// e.g. rtsp sdp中fmtp的config字段, mp4 esds
//
// ADTS(Audio Data Transport Stream)
// e.g. es, ts
//

const (
	AdtsHeaderLength = 7

	AudioObjectTypeAacMain = 1
	AudioObjectTypeAacLc   = 2

	AscSamplingFrequencyIndex48000 = 3
	AscSamplingFrequencyIndex44100 = 4

	ascSamplingFrequencyIndexExplicit = 15
	ascAudioObjectTypeEscape          = 31
)

const (
	minAscLength = 2
)

// <ISO_IEC_14496-3.pdf>, <1.6.3.3 samplingFrequencyIndex>
var samplingFrequencyTable = []int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

// <ISO_IEC_14496-3.pdf>, <1.6.3.4 channelConfiguration>
// 下标为channelConfiguration，值为声道数，-1表示未定义
var channelCountTable = []int{
	0, 1, 2, 3, 4, 5, 6, 8, -1, -1, -1, 7, 8, -1, 8, -1,
}

// <ISO_IEC_14496-3.pdf>
// <1.6.2.1 AudioSpecificConfig>, <page 33/110>
// <1.5.1.1 Audio Object type definition>, <page 23/110>
// <1.6.3.3 samplingFrequencyIndex>, <page 35/110>
// <1.6.3.4 channelConfiguration>
// --------------------------------------------------------
// audio object type      [5b] 1=AAC MAIN  2=AAC LC   31=escape, 后续6b+32
// samplingFrequencyIndex [4b] 3=48000  4=44100  6=24000  5=32000  11=11025  15=后续24b为具体的采样率
// channelConfiguration   [4b] 1=center front speaker  2=left, right front speakers
type AscContext struct {
	AudioObjectType        uint8 // [5b]
	SamplingFrequencyIndex uint8 // [4b]
	ChannelConfiguration   uint8 // [4b]

	// SamplingFrequencyIndex为15时，由asc中的24b显式给出
	ExplicitSamplingFrequency int
}

func NewAscContext(asc []byte) (*AscContext, error) {
	var ascCtx AscContext
	if err := ascCtx.Unpack(asc); err != nil {
		return nil, err
	}
	return &ascCtx, nil
}

// Unpack
//
// @param asc: AAC Audio Specific Config，函数调用结束后，内部不持有该内存块
//
func (ascCtx *AscContext) Unpack(asc []byte) error {
	if len(asc) < minAscLength {
		Log.Warnf("aac asc length invalid. len=%d", len(asc))
		return base.ErrShortBuffer
	}

	var err error
	br := nazabits.NewBitReader(asc)
	if ascCtx.AudioObjectType, err = br.ReadBits8(5); err != nil {
		return nazaerrors.Wrap(err)
	}
	if ascCtx.AudioObjectType == ascAudioObjectTypeEscape {
		var ext uint8
		if ext, err = br.ReadBits8(6); err != nil {
			return nazaerrors.Wrap(err)
		}
		ascCtx.AudioObjectType = 32 + ext
	}
	if ascCtx.SamplingFrequencyIndex, err = br.ReadBits8(4); err != nil {
		return nazaerrors.Wrap(err)
	}
	if ascCtx.SamplingFrequencyIndex == ascSamplingFrequencyIndexExplicit {
		var v uint32
		if v, err = br.ReadBits32(24); err != nil {
			return nazaerrors.Wrap(err)
		}
		ascCtx.ExplicitSamplingFrequency = int(v)
	}
	if ascCtx.ChannelConfiguration, err = br.ReadBits8(4); err != nil {
		return nazaerrors.Wrap(err)
	}
	return nil
}

// Pack
//
// 注意，只支持2字节的asc，也即audio object type小于31，并且采样率在表中
//
// @return asc: 内存块为独立新申请；函数调用结束后，内部不持有该内存块
//
func (ascCtx *AscContext) Pack() (asc []byte) {
	asc = make([]byte, minAscLength)
	bw := nazabits.NewBitWriter(asc)
	bw.WriteBits8(5, ascCtx.AudioObjectType)
	bw.WriteBits8(4, ascCtx.SamplingFrequencyIndex)
	bw.WriteBits8(4, ascCtx.ChannelConfiguration)
	return
}

func (ascCtx *AscContext) GetSamplingFrequency() (int, error) {
	if ascCtx.SamplingFrequencyIndex == ascSamplingFrequencyIndexExplicit {
		return ascCtx.ExplicitSamplingFrequency, nil
	}
	if int(ascCtx.SamplingFrequencyIndex) >= len(samplingFrequencyTable) {
		Log.Errorf("GetSamplingFrequency failed. ascCtx=%+v", ascCtx)
		return -1, base.ErrSamplingFrequencyIndex
	}
	return samplingFrequencyTable[ascCtx.SamplingFrequencyIndex], nil
}

func (ascCtx *AscContext) GetChannelCount() (int, error) {
	if int(ascCtx.ChannelConfiguration) >= len(channelCountTable) || channelCountTable[ascCtx.ChannelConfiguration] < 0 {
		return -1, base.ErrAac
	}
	return channelCountTable[ascCtx.ChannelConfiguration], nil
}

// MakeAacLcAsc 通过采样率和声道数，构造AAC LC的asc
//
// @return asc: 2字节，内存块为独立新申请
//
func MakeAacLcAsc(sampleRate int, channelCount int) ([]byte, error) {
	sfi := -1
	for i, v := range samplingFrequencyTable {
		if v == sampleRate {
			sfi = i
			break
		}
	}
	if sfi == -1 {
		return nil, base.ErrSamplingFrequencyIndex
	}

	cc := -1
	for i, v := range channelCountTable {
		if v == channelCount {
			cc = i
			break
		}
	}
	if cc == -1 {
		return nil, base.ErrAac
	}

	ascCtx := AscContext{
		AudioObjectType:        AudioObjectTypeAacLc,
		SamplingFrequencyIndex: uint8(sfi),
		ChannelConfiguration:   uint8(cc),
	}
	return ascCtx.Pack(), nil
}

// ParseAscRateAndChannels 解析asc，返回采样率和声道数
func ParseAscRateAndChannels(asc []byte) (sampleRate int, channelCount int, err error) {
	var ascCtx AscContext
	if err = ascCtx.Unpack(asc); err != nil {
		return
	}
	if sampleRate, err = ascCtx.GetSamplingFrequency(); err != nil {
		return
	}
	channelCount, err = ascCtx.GetChannelCount()
	return
}

// ----- ADTS ----------------------------------------------------------------------------------------------------------

type AdtsHeaderContext struct {
	AscCtx AscContext

	ProtectionAbsent uint8
	AdtsLength       uint16 // 字段中的值，包含了adts header + adts frame
}

func NewAdtsHeaderContext(adtsHeader []byte) (*AdtsHeaderContext, error) {
	var ctx AdtsHeaderContext
	if err := ctx.Unpack(adtsHeader); err != nil {
		return nil, err
	}
	return &ctx, nil
}

// Unpack
//
// @param adtsHeader: 函数调用结束后，内部不持有该内存块
//
func (ctx *AdtsHeaderContext) Unpack(adtsHeader []byte) error {
	if len(adtsHeader) < AdtsHeaderLength {
		return base.ErrShortBuffer
	}
	if !IsAdtsSyncWord(adtsHeader) {
		return base.ErrAac
	}

	// <ISO_IEC_14496-3.pdf>
	// <1.A.2.2.1 Fixed Header of ADTS>, <page 75/110>
	// <1.A.2.2.2 Variable Header of ADTS>, <page 76/110>
	// ----------------------------------------------------
	// Syncword                 [12b] '1111 1111 1111'
	// ID                       [1b]  1=MPEG-2 AAC 0=MPEG-4
	// Layer                    [2b]
	// protection_absent        [1b]  1=no crc check
	// Profile_ObjectType       [2b]
	// sampling_frequency_index [4b]
	// private_bit              [1b]
	// channel_configuration    [3b]
	// origin/copy              [1b]
	// home                     [1b]
	// ------------------------------------
	// copyright_identification_bit   [1b]
	// copyright_identification_start [1b]
	// aac_frame_length               [13b]
	// adts_buffer_fullness           [11b]
	// no_raw_data_blocks_in_frame    [2b]
	br := nazabits.NewBitReader(adtsHeader)
	_ = br.SkipBits(15)
	ctx.ProtectionAbsent, _ = br.ReadBits8(1)
	v, _ := br.ReadBits8(2)
	ctx.AscCtx.AudioObjectType = v + 1
	ctx.AscCtx.SamplingFrequencyIndex, _ = br.ReadBits8(4)
	_ = br.SkipBits(1)
	ctx.AscCtx.ChannelConfiguration, _ = br.ReadBits8(3)
	_ = br.SkipBits(4)
	ctx.AdtsLength, _ = br.ReadBits16(13)
	return nil
}

// HeaderLength adts头的长度，protection_absent为0时，后面跟着2字节的crc
func (ctx *AdtsHeaderContext) HeaderLength() int {
	if ctx.ProtectionAbsent == 0 {
		return AdtsHeaderLength + 2
	}
	return AdtsHeaderLength
}

// PackAdtsHeader
//
// @param frameLength: raw aac frame的大小
//
// @return out: 内存块为独立新申请；函数调用结束后，内部不持有该内存块
//
func (ascCtx *AscContext) PackAdtsHeader(frameLength int) (out []byte) {
	out = make([]byte, AdtsHeaderLength)
	bw := nazabits.NewBitWriter(out)
	bw.WriteBits16(12, 0xFFF)
	// ID, Layer, protection_absent
	bw.WriteBits8(4, 0x1)
	bw.WriteBits8(2, ascCtx.AudioObjectType-1)
	bw.WriteBits8(4, ascCtx.SamplingFrequencyIndex)
	// private_bit
	bw.WriteBits8(1, 0)
	bw.WriteBits8(3, ascCtx.ChannelConfiguration)
	// origin/copy, home, copyright_identification_bit, copyright_identification_start
	bw.WriteBits8(4, 0)
	bw.WriteBits16(13, uint16(frameLength+AdtsHeaderLength))
	// adts_buffer_fullness
	bw.WriteBits16(11, 0x7FF)
	// no_raw_data_blocks_in_frame
	bw.WriteBits8(2, 0)
	return
}

func IsAdtsSyncWord(b []byte) bool {
	return len(b) >= 2 && b[0] == 0xFF && (b[1]&0xF6) == 0xF0
}

// MakeAscWithAdtsHeader
//
// @return asc: 内存块为独立新申请；函数调用结束后，内部不持有该内存块
//
func MakeAscWithAdtsHeader(adtsHeader []byte) (asc []byte, err error) {
	var ctx *AdtsHeaderContext
	if ctx, err = NewAdtsHeaderContext(adtsHeader); err != nil {
		return nil, err
	}
	return ctx.AscCtx.Pack(), nil
}
