// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package upstream

import (
	"time"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/rtprtcp"
	"github.com/q191201771/naza/pkg/nazaatomic"
)

var (
	_ DataSource         = &RtpInternalDataSource{}
	_ RtcpReportListener = &RtpInternalDataSource{}
)

// RtpInternalDataSource interleaved模式的数据源，数据来自RtpInternalSamplesSink
//
// 设置了report sink时，收到sr后产生rr，写入outgoing sink
//
type RtpInternalDataSource struct {
	uniqueKey string

	samples *RtpInternalSamplesSink
	in      *RtcpIncomingReportSink
	out     *RtcpOutgoingReportSink

	rrProducer *rtprtcp.RrProducer
	ssrc       nazaatomic.Uint32
	ssrcSet    nazaatomic.Bool
	closed     nazaatomic.Bool

	dump base.LogDump
}

// NewRtpInternalDataSource
//
// @param in, out: 不使用rtcp时传入nil
//
func NewRtpInternalDataSource(samples *RtpInternalSamplesSink, in *RtcpIncomingReportSink, out *RtcpOutgoingReportSink) *RtpInternalDataSource {
	uk := base.GenUkTcpSource()
	Log.Infof("[%s] lifecycle new interleaved data source. rtcp=%t", uk, in != nil && out != nil)
	return &RtpInternalDataSource{
		uniqueKey: uk,
		samples:   samples,
		in:        in,
		out:       out,
		dump:      base.NewLogDump(Log, uk, dumpPacketMaxNum),
	}
}

func (s *RtpInternalDataSource) Open(spec DataSpec) error {
	if !s.samples.IsOpened() {
		return base.ErrUpstreamNotOpened
	}
	if s.in != nil && s.out != nil {
		s.rrProducer = rtprtcp.NewRrProducer(s.samples.ClockRate())
		s.in.AddListener(s)
	}
	Log.Infof("[%s] interleaved data source opened. uri=%s", s.uniqueKey, spec.Uri)
	return nil
}

func (s *RtpInternalDataSource) Read(b []byte) (int, error) {
	for {
		n, err := s.samples.Read(b)
		if err != nil {
			return 0, err
		}
		if s.rrProducer == nil && !s.ssrcSet.Load() {
			return n, nil
		}

		pkt, err := rtprtcp.ParseRtpPacket(b[:n])
		if err != nil {
			// 负载不一定是rtp，比如mp2t over tcp
			return n, nil
		}
		if s.ssrcSet.Load() && pkt.Header.Ssrc != s.ssrc.Load() {
			continue
		}
		if s.rrProducer != nil {
			s.rrProducer.FeedRtpPacket(pkt.Header)
		}
		return n, nil
	}
}

func (s *RtpInternalDataSource) SetSsrc(ssrc uint32) {
	s.ssrc.Store(ssrc)
	s.ssrcSet.Store(true)
}

// OnRtcpReport 收到对端的rtcp包
func (s *RtpInternalDataSource) OnRtcpReport(b []byte) {
	if s.rrProducer == nil {
		return
	}
	sr, ok, err := rtprtcp.ParseSr(b)
	if err != nil || !ok {
		return
	}
	rr := s.rrProducer.Produce(sr.GetMiddleNtp())
	if rr == nil {
		return
	}
	if s.dump.ShouldDump() {
		s.dump.Outf("produce rr. senderSsrc=%d, senderTime=%s, len=%d", sr.SenderSsrc, sr.WallClock().Format(time.RFC3339Nano), len(rr))
	}
	_ = s.out.Write(rr)
}

// Close report sink由外部持有，这里只解除监听
func (s *RtpInternalDataSource) Close() error {
	if s.closed.Load() {
		return nil
	}
	s.closed.Store(true)
	if s.in != nil {
		s.in.RemoveListener(s)
	}
	Log.Infof("[%s] lifecycle dispose interleaved data source.", s.uniqueKey)
	return s.samples.Close()
}
