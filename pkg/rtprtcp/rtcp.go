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
	"time"

	"github.com/pion/rtcp"
	"github.com/q191201771/lalplay/pkg/base"
)

// rfc3550 6.4.1 SR, 6.4.2 RR
//
// 只关心SR中的sender ssrc和ntp时间戳，RR由 RrProducer 生成

// (70 * 365 + 17) * 24 * 60 * 60
const ntpUnixOffsetSec uint64 = 2208988800

const (
	RtcpPacketTypeSr = 200 // 0xc8 Sender Report
	RtcpPacketTypeRr = 201 // 0xc9 Receiver Report
)

type Sr struct {
	SenderSsrc uint32
	Msw        uint32 // NTP timestamp, most significant word
	Lsw        uint32 // NTP timestamp, least significant word
	Timestamp  uint32
	PktCnt     uint32
	OctetCnt   uint32
}

// GetMiddleNtp ntp时间戳的中间32位，也即RR中的LSR字段
func (s *Sr) GetMiddleNtp() uint32 {
	return uint32(((uint64(s.Msw)<<32 | uint64(s.Lsw)) << 16) >> 32)
}

// WallClock 发送方打SR时的绝对时间
func (s *Sr) WallClock() time.Time {
	sec := uint64(s.Msw) - ntpUnixOffsetSec
	nsec := (uint64(s.Lsw) * 1e9) >> 32
	return time.Unix(int64(sec), int64(nsec))
}

// ParseSr 从rtcp复合包中找出sr
//
// @param b rtcp包，包含包头
//
// @return ok 复合包中没有sr时为false
//
func ParseSr(b []byte) (sr Sr, ok bool, err error) {
	pkts, err := rtcp.Unmarshal(b)
	if err != nil {
		return sr, false, fmt.Errorf("%w. err=%+v", base.ErrRtcp, err)
	}
	for _, pkt := range pkts {
		if s, isSr := pkt.(*rtcp.SenderReport); isSr {
			sr.SenderSsrc = s.SSRC
			sr.Msw = uint32(s.NTPTime >> 32)
			sr.Lsw = uint32(s.NTPTime)
			sr.Timestamp = s.RTPTime
			sr.PktCnt = s.PacketCount
			sr.OctetCnt = s.OctetCount
			return sr, true, nil
		}
	}
	return sr, false, nil
}

// MakeSr 主要用于测试
func MakeSr(sr Sr) ([]byte, error) {
	pkt := rtcp.SenderReport{
		SSRC:        sr.SenderSsrc,
		NTPTime:     uint64(sr.Msw)<<32 | uint64(sr.Lsw),
		RTPTime:     sr.Timestamp,
		PacketCount: sr.PktCnt,
		OctetCount:  sr.OctetCnt,
	}
	return pkt.Marshal()
}

// MakeRtcpPunchPacket 用于打洞的rr包，不包含report block
func MakeRtcpPunchPacket(ssrc uint32) []byte {
	pkt := rtcp.ReceiverReport{
		SSRC: ssrc,
	}
	b, err := pkt.Marshal()
	if err != nil {
		Log.Errorf("marshal rtcp punch packet failed. err=%+v", err)
		return nil
	}
	return b
}
