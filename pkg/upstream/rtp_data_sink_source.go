// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package upstream

import (
	"errors"
	"math/rand"
	"net"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/rtprtcp"
	"github.com/q191201771/naza/pkg/nazaatomic"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

var _ DataSource = &RtpDataSinkSource{}

const (
	// FlagEnableRtcpFeedback 收到sr时回复rr
	FlagEnableRtcpFeedback = 1

	// FlagForceRtcpMultiplexing rtp和rtcp使用同一个端口(rfc5761)
	FlagForceRtcpMultiplexing = 1 << 1

	// FlagDisableRtcpPort 非复用模式下也不绑定rtcp端口
	FlagDisableRtcpPort = 1 << 2
)

// RtpDataSinkSource 感知rtp的udp数据源
//
// Read每次返回一个rtp包，rtcp包以及ssrc不匹配的rtp包不会返回给调用方
// 非复用模式下，在rtp端口+1上绑定rtcp端口，内部协程读取。设置 FlagDisableRtcpPort 时不绑定
//
type RtpDataSinkSource struct {
	uniqueKey string
	clockRate int
	flags     int
	option    UdpDataSinkSourceOption

	rtp  *UdpDataSinkSource
	rtcp *UdpDataSinkSource

	ssrc       nazaatomic.Uint32
	ssrcSet    nazaatomic.Bool
	rrProducer *rtprtcp.RrProducer

	remain       []byte
	rtcpLoopDone chan struct{}

	droppedPacketCount nazaatomic.Uint64
	sentRrCount        nazaatomic.Uint64
}

func NewRtpDataSinkSource(clockRate int, flags int, modOptions ...ModUdpDataSinkSourceOption) *RtpDataSinkSource {
	option := defaultUdpDataSinkSourceOption()
	for _, fn := range modOptions {
		fn(&option)
	}
	uk := base.GenUkRtpSource()
	rrProducer := rtprtcp.NewRrProducer(clockRate)
	rrProducer.SetSenderSsrc(rand.Uint32())
	Log.Infof("[%s] lifecycle new rtp data source. clockRate=%d, flags=%d", uk, clockRate, flags)
	return &RtpDataSinkSource{
		uniqueKey:  uk,
		clockRate:  clockRate,
		flags:      flags,
		option:     option,
		rrProducer: rrProducer,
	}
}

func (s *RtpDataSinkSource) Open(spec DataSpec) error {
	host, port, err := spec.HostPort()
	if err != nil {
		return err
	}

	s.rtp = newUdpDataSinkSource(s.uniqueKey, s.option)
	if s.isMuxed() || s.flags&FlagDisableRtcpPort != 0 {
		return s.rtp.Open(spec)
	}

	if s.option.ConnPool != nil && port == 0 {
		// 申请两个连续的端口
		rtpConn, _, rtcpConn, _, err := s.option.ConnPool.Acquire2()
		if err != nil {
			return nazaerrors.Wrap(err)
		}
		if err = s.rtp.openWithConn(rtpConn); err != nil {
			_ = rtcpConn.Close()
			return err
		}
		s.rtcp = newUdpDataSinkSource(s.uniqueKey, s.option)
		if err = s.rtcp.openWithConn(rtcpConn); err != nil {
			s.rtcp = nil
			return nazaerrors.CombineErrors(err, s.rtp.Close())
		}
	} else {
		if err = s.rtp.Open(spec); err != nil {
			return err
		}
		if !spec.IsFlagSet(FlagForceBoundLocalAddress) {
			host = ""
		}
		rtcpConn, err := listenUdp(host, s.rtp.LocalPort()+1)
		if err != nil {
			// 没有rtcp不影响接收媒体数据
			Log.Warnf("[%s] bind rtcp port failed, rtcp disabled. port=%d, err=%+v", s.uniqueKey, s.rtp.LocalPort()+1, err)
			return nil
		}
		s.rtcp = newUdpDataSinkSource(s.uniqueKey, s.option)
		if err = s.rtcp.openWithConn(rtcpConn); err != nil {
			s.rtcp = nil
			Log.Warnf("[%s] open rtcp conn failed, rtcp disabled. err=%+v", s.uniqueKey, err)
			return nil
		}
	}

	s.rtcpLoopDone = make(chan struct{})
	go s.runRtcpLoop()
	return nil
}

// Read 每次返回一个完整的rtp包，<b>放不下时，剩余部分在下次Read时返回
func (s *RtpDataSinkSource) Read(b []byte) (int, error) {
	if s.rtp == nil {
		return 0, base.ErrUpstreamNotOpened
	}
	for len(s.remain) == 0 {
		packet, raddr, err := s.rtp.ReadPacket()
		if err != nil {
			return 0, err
		}
		if rtprtcp.IsRtcpPacket(packet) {
			s.onRtcp(packet, raddr, s.rtp)
			continue
		}

		pkt, err := rtprtcp.ParseRtpPacket(packet)
		if err != nil {
			s.droppedPacketCount.Increment()
			Log.Debugf("[%s] drop invalid rtp packet. len=%d, err=%+v", s.uniqueKey, len(packet), err)
			continue
		}
		if s.ssrcSet.Load() && pkt.Header.Ssrc != s.ssrc.Load() {
			s.droppedPacketCount.Increment()
			continue
		}
		s.rrProducer.FeedRtpPacket(pkt.Header)
		s.remain = pkt.Raw
	}
	n := copy(b, s.remain)
	s.remain = s.remain[n:]
	return n, nil
}

// SetSsrc 设置后，只接收该ssrc的rtp包
func (s *RtpDataSinkSource) SetSsrc(ssrc uint32) {
	s.ssrc.Store(ssrc)
	s.ssrcSet.Store(true)
}

// WriteTo 通过rtp端口发送
func (s *RtpDataSinkSource) WriteTo(b []byte, host string, port int) error {
	if s.rtp == nil {
		return base.ErrUpstreamNotOpened
	}
	return s.rtp.WriteTo(b, host, port)
}

// WriteRtcpTo 通过rtcp端口发送，复用模式下使用rtp端口
func (s *RtpDataSinkSource) WriteRtcpTo(b []byte, host string, port int) error {
	if s.rtcp != nil {
		return s.rtcp.WriteTo(b, host, port)
	}
	return s.WriteTo(b, host, port)
}

func (s *RtpDataSinkSource) LocalPort() int {
	if s.rtp == nil {
		return 0
	}
	return s.rtp.LocalPort()
}

func (s *RtpDataSinkSource) RtcpLocalPort() int {
	if s.rtcp == nil {
		return 0
	}
	return s.rtcp.LocalPort()
}

func (s *RtpDataSinkSource) DroppedPacketCount() uint64 {
	return s.droppedPacketCount.Load()
}

func (s *RtpDataSinkSource) SentRrCount() uint64 {
	return s.sentRrCount.Load()
}

func (s *RtpDataSinkSource) Close() error {
	var e1, e2 error
	if s.rtp != nil {
		e1 = s.rtp.Close()
	}
	if s.rtcp != nil {
		e2 = s.rtcp.Close()
		<-s.rtcpLoopDone
	}
	return nazaerrors.CombineErrors(e1, e2)
}

func (s *RtpDataSinkSource) isMuxed() bool {
	return s.flags&FlagForceRtcpMultiplexing != 0
}

func (s *RtpDataSinkSource) runRtcpLoop() {
	defer close(s.rtcpLoopDone)
	for {
		packet, raddr, err := s.rtcp.ReadPacket()
		if err != nil {
			if errors.Is(err, base.ErrUdpTimeout) {
				continue
			}
			if !errors.Is(err, base.ErrUpstreamClosed) {
				Log.Warnf("[%s] read rtcp failed. err=%+v", s.uniqueKey, err)
			}
			return
		}
		s.onRtcp(packet, raddr, s.rtcp)
	}
}

// onRtcp 收到sr后，通过收到sr的端口回复rr
func (s *RtpDataSinkSource) onRtcp(b []byte, raddr *net.UDPAddr, via *UdpDataSinkSource) {
	if s.flags&FlagEnableRtcpFeedback == 0 {
		return
	}
	sr, ok, err := rtprtcp.ParseSr(b)
	if err != nil || !ok {
		return
	}
	if s.ssrcSet.Load() && sr.SenderSsrc != s.ssrc.Load() {
		return
	}
	rr := s.rrProducer.Produce(sr.GetMiddleNtp())
	if rr == nil || raddr == nil {
		return
	}
	if err := via.WriteToAddr(rr, raddr); err != nil {
		Log.Warnf("[%s] write rr failed. err=%+v", s.uniqueKey, err)
		return
	}
	s.sentRrCount.Increment()
}
