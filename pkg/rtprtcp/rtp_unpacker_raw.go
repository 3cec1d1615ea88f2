// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

type RtpUnpackerRaw struct {
	onFrame OnFrame
}

func NewRtpUnpackerRaw(onFrame OnFrame) *RtpUnpackerRaw {
	return &RtpUnpackerRaw{
		onFrame: onFrame,
	}
}

func (unpacker *RtpUnpackerRaw) CalcPositionIfNeeded(pkt *RtpPacket) {
	// noop
}

func (unpacker *RtpUnpackerRaw) TryUnpackOne(list *RtpPacketList) (unpackedFlag bool, unpackedSeq uint16) {
	if list.Head.Next == nil {
		return false, 0
	}

	// 一个rtp包为一帧数据(G711A/G711U)，或者一段ts流
	pkt := list.PopFirst()
	unpacker.onFrame(Frame{
		Timestamp: pkt.Header.Timestamp,
		Payload:   pkt.Body(),
		Key:       true,
	})
	return true, pkt.Header.Seq
}
