// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
)

// 通过收到的rtp包和rtcp sr包，产生rtcp rr包

// rr中累计丢包数只有24位
const maxTotalLost = 0x7FFFFF

type RrProducer struct {
	clockRate int

	mu         sync.Mutex
	senderSsrc uint32
	mediaSsrc  uint32

	maxSeq      int32
	baseSeq     int32
	cycles      uint32
	received    uint32
	extendedSeq uint32

	transit int64
	jitter  uint32

	expectedPrior uint32
	receivedPrior uint32
}

func NewRrProducer(clockRate int) *RrProducer {
	return &RrProducer{
		clockRate: clockRate,
		baseSeq:   -1,
		maxSeq:    -1,
		transit:   -1,
	}
}

// SetSenderSsrc 本端的ssrc
func (r *RrProducer) SetSenderSsrc(ssrc uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senderSsrc = ssrc
}

// FeedRtpPacket 每次收到rtp包，都将包头传入这个函数
func (r *RrProducer) FeedRtpPacket(h RtpHeader) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.received++
	r.mediaSsrc = h.Ssrc

	seq := h.Seq
	if r.baseSeq == -1 {
		r.baseSeq = int32(seq)
	}

	if r.maxSeq == -1 {
		r.maxSeq = int32(seq)
	} else if CompareSeq(seq, uint16(r.maxSeq)) > 0 {
		if seq < uint16(r.maxSeq) {
			r.cycles++
		}
		r.maxSeq = int32(seq)
	}

	r.extendedSeq = (r.cycles << 16) | uint32(r.maxSeq)
	r.updateJitter(h.Timestamp)
}

// Produce 收到sr包时，产生rr包
//
// @param lsr: 从sr包中获取，见func Sr.GetMiddleNtp
// @return:    rr包的二进制数据，还没有收到过rtp包时返回nil
//
func (r *RrProducer) Produce(lsr uint32) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.baseSeq == -1 {
		return nil
	}

	var lost uint32
	expected := r.extendedSeq - uint32(r.baseSeq) + 1
	if expected > r.received {
		lost = expected - r.received
	}
	if lost > maxTotalLost {
		lost = maxTotalLost
	}

	var fraction uint8
	expectedInterval := expected - r.expectedPrior
	r.expectedPrior = expected
	receivedInterval := r.received - r.receivedPrior
	r.receivedPrior = r.received
	if expectedInterval != 0 && expectedInterval > receivedInterval {
		lostInterval := expectedInterval - receivedInterval
		fraction = uint8((lostInterval << 8) / expectedInterval)
	}

	rr := rtcp.ReceiverReport{
		SSRC: r.senderSsrc,
		Reports: []rtcp.ReceptionReport{
			{
				SSRC:               r.mediaSsrc,
				FractionLost:       fraction,
				TotalLost:          lost,
				LastSequenceNumber: r.extendedSeq,
				Jitter:             r.getJitter(),
				LastSenderReport:   lsr,
			},
		},
	}
	b, err := rr.Marshal()
	if err != nil {
		Log.Errorf("marshal rr failed. err=%+v", err)
		return nil
	}
	return b
}

// @param timestamp 当前收到的rtp包头中的时间戳
func (r *RrProducer) updateJitter(timestamp uint32) {
	// rfc3550 A.8 Estimating the Interarrival Jitter

	if r.clockRate < 1000 {
		return
	}

	// 当前收到rtp包的本地物理时间
	arrival := time.Now().UnixNano() / 1e6

	// 物理时间和包时间的差值，都换算成包时间戳格式
	transit := arrival*(int64(r.clockRate)/1000) - int64(timestamp)

	// 第一次跳过
	if r.transit == -1 {
		r.transit = transit
		return
	}

	d := transit - r.transit
	r.transit = transit
	if d < 0 {
		d = -d
	}

	// 对应的get: return r.jitter >> 4
	r.jitter = r.jitter + uint32(d) - ((r.jitter + 8) >> 4)
}

func (r *RrProducer) getJitter() uint32 {
	return r.jitter >> 4
}
