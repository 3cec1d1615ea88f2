// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

type RtpUnpackContainer struct {
	maxSize int

	unpackerProtocol IRtpUnpackerProtocol

	list RtpPacketList
}

func NewRtpUnpackContainer(maxSize int, unpackerProtocol IRtpUnpackerProtocol) *RtpUnpackContainer {
	return &RtpUnpackContainer{
		maxSize:          maxSize,
		unpackerProtocol: unpackerProtocol,
	}
}

// Feed 输入收到的rtp包
func (r *RtpUnpackContainer) Feed(pkt RtpPacket) {
	if r.list.IsStale(pkt.Header.Seq) {
		return
	}

	r.unpackerProtocol.CalcPositionIfNeeded(&pkt)
	r.list.Insert(pkt)

	// 尽可能多的合成顺序的帧
	count := 0
	for r.tryUnpackOneSequential() {
		count++
	}
	if count > 0 {
		return
	}

	// 缓存达到最大值
	if r.list.Size > r.maxSize {
		// 尝试合成一帧发生跳跃的帧
		if !r.tryUnpackOne() {
			// 合成失败了，丢弃一包过期数据
			r.list.PopFirst()
			return
		}
		for r.tryUnpackOneSequential() {
		}
	}
}

// Reset seek之后，之前缓存的包全部丢弃，序号重新开始
func (r *RtpUnpackContainer) Reset() {
	r.list.Reset()
}

func (r *RtpUnpackContainer) tryUnpackOneSequential() bool {
	if !r.list.IsFirstSequential() {
		return false
	}
	return r.tryUnpackOne()
}

func (r *RtpUnpackContainer) tryUnpackOne() bool {
	unpackedFlag, unpackedSeq := r.unpackerProtocol.TryUnpackOne(&r.list)
	if unpackedFlag {
		r.list.SetUnpackedSeq(unpackedSeq)
	}
	return unpackedFlag
}
