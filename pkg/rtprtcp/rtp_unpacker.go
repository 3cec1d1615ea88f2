// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"fmt"

	"github.com/q191201771/lalplay/pkg/base"
)

// 传入RTP包，合成帧数据，并回调返回
// 一路音频或一路视频各对应一个对象

var (
	_ IRtpUnpacker         = &RtpUnpackContainer{}
	_ IRtpUnpackerProtocol = &RtpUnpackerAac{}
	_ IRtpUnpackerProtocol = &RtpUnpackerAvcHevc{}
	_ IRtpUnpackerProtocol = &RtpUnpackerRaw{}
)

type IRtpUnpacker interface {
	Feed(pkt RtpPacket)
	Reset()
}

type IRtpUnpackerProtocol interface {
	// CalcPositionIfNeeded 计算rtp包处于帧中的位置
	CalcPositionIfNeeded(pkt *RtpPacket)

	// TryUnpackOne 尝试合成一个完整帧
	//
	// 从当前队列的第一个包开始合成
	// 如果一个rtp包对应一个完整帧，则合成一帧
	// 如果一个rtp包对应多个完整帧，则合成多帧
	// 如果多个rtp包对应一个完整帧，则尝试合成一帧
	//
	// @return unpackedFlag 本次调用是否成功合成
	// @return unpackedSeq  如果成功合成，合成使用的最后一个seq号；如果失败，则为0
	TryUnpackOne(list *RtpPacketList) (unpackedFlag bool, unpackedSeq uint16)
}

// Frame 合成后的一帧数据
//
// Timestamp 为rtp包头中的时间戳，单位是clock rate，由调用方换算
// Payload   AAC是raw frame，一个Frame只包含一帧，引用的是接收到的rtp包的内存块
//           AVC或HEVC可能包含多个NAL(受STAP-A影响)，NAL前包含4字节的长度信息，是新申请的内存块
//           其他格式为rtp payload
//
type Frame struct {
	Timestamp uint32
	Payload   []byte
	Key       bool
}

type OnFrame func(frame Frame)

type UnpackerOption struct {
	MaxSize int

	// AAC的AU-header中size和index所占的位数，见rfc3640，通常来自sdp的fmtp
	SizeLength  int
	IndexLength int
}

var defaultUnpackerOption = UnpackerOption{
	MaxSize:     DefaultUnpackContainerMaxSize,
	SizeLength:  13,
	IndexLength: 3,
}

type ModUnpackerOption func(option *UnpackerOption)

// DefaultRtpUnpackerFactory 目前支持AVC，HEVC，AAC，以及一个rtp包对应一帧的格式(比如G711)
//
// 业务方也可以自己实现IRtpUnpackerProtocol，或者IRtpUnpacker
//
func DefaultRtpUnpackerFactory(sampleMimeType string, clockRate int, onFrame OnFrame, modOptions ...ModUnpackerOption) (IRtpUnpacker, error) {
	option := defaultUnpackerOption
	for _, fn := range modOptions {
		fn(&option)
	}

	var protocol IRtpUnpackerProtocol
	switch sampleMimeType {
	case base.MimeAudioAac:
		if clockRate <= 0 {
			return nil, fmt.Errorf("%w. invalid clock rate. clockRate=%d", base.ErrRtp, clockRate)
		}
		protocol = NewRtpUnpackerAac(clockRate, option.SizeLength, option.IndexLength, onFrame)
	case base.MimeVideoH264:
		protocol = NewRtpUnpackerAvcHevc(true, onFrame)
	case base.MimeVideoH265:
		protocol = NewRtpUnpackerAvcHevc(false, onFrame)
	case base.MimeAudioPcma, base.MimeAudioPcmu, base.MimeAudioMpeg, base.MimeAudioOpus, base.MimeAudioRaw,
		base.MimeAudioAc3, base.MimeVideoMp2t:
		protocol = NewRtpUnpackerRaw(onFrame)
	default:
		return nil, fmt.Errorf("%w. mime type not support yet. mime=%s", base.ErrRtp, sampleMimeType)
	}
	return NewRtpUnpackContainer(option.MaxSize, protocol), nil
}
