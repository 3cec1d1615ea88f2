// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package upstream_test

import (
	"bufio"
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/rtprtcp"
	"github.com/q191201771/lalplay/pkg/upstream"
	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazanet"
)

const loopbackUri = "udp://127.0.0.1:0"

func openLoopback(t *testing.T, readTimeoutMs int) *upstream.UdpDataSinkSource {
	s := upstream.NewUdpDataSinkSource(func(option *upstream.UdpDataSinkSourceOption) {
		option.ReadTimeoutMs = readTimeoutMs
	})
	err := s.Open(upstream.NewDataSpec(loopbackUri, upstream.FlagForceBoundLocalAddress))
	assert.Equal(t, nil, err)
	assert.Equal(t, true, s.LocalPort() > 0)
	return s
}

func makeRtp(t *testing.T, seq uint16, ssrc uint32, payload []byte) []byte {
	pkt, err := rtprtcp.MakeRtpPacket(rtprtcp.RtpHeader{PacketType: 96, Seq: seq, Timestamp: uint32(seq) * 3000, Ssrc: ssrc}, payload)
	assert.Equal(t, nil, err)
	return pkt.Raw
}

func TestUdpDataSinkSource(t *testing.T) {
	receiver := openLoopback(t, 100)
	sender := openLoopback(t, 100)
	defer sender.Close()

	err := sender.WriteTo([]byte("Dummy"), "127.0.0.1", receiver.LocalPort())
	assert.Equal(t, nil, err)

	// 分两次读完一个包
	b := make([]byte, 3)
	n, err := receiver.Read(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte("Dum"), b[:n])
	n, err = receiver.Read(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte("my"), b[:n])
	assert.Equal(t, uint64(1), receiver.ReadPacketCount())

	_, err = receiver.Read(b)
	assert.Equal(t, true, errors.Is(err, base.ErrUdpTimeout))

	assert.Equal(t, nil, receiver.Close())
	assert.Equal(t, nil, receiver.Close())
	_, err = receiver.Read(b)
	assert.Equal(t, base.ErrUpstreamClosed, err)
}

func TestUdpDataSinkSourceNotOpened(t *testing.T) {
	s := upstream.NewUdpDataSinkSource()
	_, err := s.Read(make([]byte, 8))
	assert.Equal(t, base.ErrUpstreamNotOpened, err)
	assert.Equal(t, nil, s.Close())
}

func TestCloseWakesBlockingRead(t *testing.T) {
	s := openLoopback(t, 10000)
	done := make(chan error, 1)
	go func() {
		_, err := s.Read(make([]byte, 8))
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	_ = s.Close()
	select {
	case err := <-done:
		assert.Equal(t, base.ErrUpstreamClosed, err)
	case <-time.After(2 * time.Second):
		t.Fatal("read not woken by close")
	}
}

func TestRtpDataSinkSourceMuxed(t *testing.T) {
	s := upstream.NewRtpDataSinkSource(90000, upstream.FlagEnableRtcpFeedback|upstream.FlagForceRtcpMultiplexing, func(option *upstream.UdpDataSinkSourceOption) {
		option.ReadTimeoutMs = 1000
	})
	err := s.Open(upstream.NewDataSpec("rtp://127.0.0.1:0", upstream.FlagForceBoundLocalAddress))
	assert.Equal(t, nil, err)
	defer s.Close()
	s.SetSsrc(1)
	assert.Equal(t, 0, s.RtcpLocalPort())

	sender := openLoopback(t, 1000)
	defer sender.Close()
	port := s.LocalPort()

	sr, err := rtprtcp.MakeSr(rtprtcp.Sr{SenderSsrc: 1, Msw: 3805600902, Lsw: 2181843386, Timestamp: 90000})
	assert.Equal(t, nil, err)

	assert.Equal(t, nil, sender.WriteTo(makeRtp(t, 1, 1, []byte{1}), "127.0.0.1", port))
	assert.Equal(t, nil, sender.WriteTo(sr, "127.0.0.1", port))
	assert.Equal(t, nil, sender.WriteTo(makeRtp(t, 2, 2, []byte{2}), "127.0.0.1", port))
	assert.Equal(t, nil, sender.WriteTo(makeRtp(t, 3, 1, []byte{3}), "127.0.0.1", port))

	b := make([]byte, 1500)
	n, err := s.Read(b)
	assert.Equal(t, nil, err)
	pkt, err := rtprtcp.ParseRtpPacket(b[:n])
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(1), pkt.Header.Seq)

	// sr被消费并回复rr，ssrc不匹配的包被丢弃
	n, err = s.Read(b)
	assert.Equal(t, nil, err)
	pkt, err = rtprtcp.ParseRtpPacket(b[:n])
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(3), pkt.Header.Seq)
	assert.Equal(t, []byte{3}, pkt.Body())
	assert.Equal(t, uint64(1), s.DroppedPacketCount())

	rr, _, err := sender.ReadPacket()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, rtprtcp.IsRtcpPacket(rr))
	assert.Equal(t, uint8(rtprtcp.RtcpPacketTypeRr), rr[1])
	assert.Equal(t, uint64(1), s.SentRrCount())
}

func TestRtpDataSinkSourceWithRtcpPort(t *testing.T) {
	pool := nazanet.NewAvailUdpConnPool(40000, 50000)
	s := upstream.NewRtpDataSinkSource(8000, upstream.FlagEnableRtcpFeedback, func(option *upstream.UdpDataSinkSourceOption) {
		option.ConnPool = pool
		option.ReadTimeoutMs = 100
	})
	err := s.Open(upstream.NewDataSpec("rtp://0.0.0.0:0", upstream.FlagForceBoundLocalAddress))
	assert.Equal(t, nil, err)
	assert.Equal(t, s.LocalPort()+1, s.RtcpLocalPort())

	sender := openLoopback(t, 1000)
	defer sender.Close()
	assert.Equal(t, nil, sender.WriteTo(makeRtp(t, 10, 5, []byte{1, 2}), "127.0.0.1", s.LocalPort()))

	b := make([]byte, 1500)
	n, err := s.Read(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, 14, n)

	// 通过rtcp端口收到sr，从rtcp端口回复rr
	sr, err := rtprtcp.MakeSr(rtprtcp.Sr{SenderSsrc: 5, Msw: 1, Lsw: 2})
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, sender.WriteTo(sr, "127.0.0.1", s.RtcpLocalPort()))
	rr, _, err := sender.ReadPacket()
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(rtprtcp.RtcpPacketTypeRr), rr[1])

	assert.Equal(t, nil, s.Close())
	assert.Equal(t, nil, s.Close())
}

func TestRtpDataSinkSourceWithoutRtcpPort(t *testing.T) {
	s := upstream.NewRtpDataSinkSource(8000, upstream.FlagDisableRtcpPort, func(option *upstream.UdpDataSinkSourceOption) {
		option.ReadTimeoutMs = 100
	})
	err := s.Open(upstream.NewDataSpec("rtp://127.0.0.1:0", upstream.FlagForceBoundLocalAddress))
	assert.Equal(t, nil, err)
	assert.Equal(t, true, s.LocalPort() > 0)
	assert.Equal(t, 0, s.RtcpLocalPort())

	sender := openLoopback(t, 1000)
	defer sender.Close()
	assert.Equal(t, nil, sender.WriteTo(makeRtp(t, 10, 5, []byte{1, 2}), "127.0.0.1", s.LocalPort()))
	b := make([]byte, 1500)
	n, err := s.Read(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, 14, n)

	assert.Equal(t, nil, s.Close())
}

func TestRtpInternalSamplesSink(t *testing.T) {
	sink := upstream.NewRtpInternalSamplesSink()
	assert.Equal(t, base.ErrUpstreamClosed, sink.Write([]byte{1}))

	old := upstream.SamplesSinkMaxPacketNum
	upstream.SamplesSinkMaxPacketNum = 2
	defer func() { upstream.SamplesSinkMaxPacketNum = old }()

	sink.Open(90000)
	assert.Equal(t, 90000, sink.ClockRate())
	src := []byte{1, 2}
	assert.Equal(t, nil, sink.Write(src))
	src[0] = 9 // 写入时已拷贝
	assert.Equal(t, nil, sink.Write([]byte{3}))
	assert.Equal(t, nil, sink.Write([]byte{4}))

	// 队列满时丢弃最老的包
	b := make([]byte, 16)
	n, err := sink.Read(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{3}, b[:n])
	n, err = sink.Read(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{4}, b[:n])

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := sink.Read(b)
		assert.Equal(t, base.ErrUpstreamClosed, err)
	}()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, nil, sink.Close())
	wg.Wait()

	// 重新打开后可以继续使用
	sink.Open(8000)
	assert.Equal(t, nil, sink.Write([]byte{5}))
	n, err = sink.Read(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{5}, b[:n])
}

type outgoingRecorder struct {
	mu      sync.Mutex
	reports [][]byte
}

func (r *outgoingRecorder) OnOutgoingReport(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, b)
}

func TestRtpInternalDataSource(t *testing.T) {
	samples := upstream.NewRtpInternalSamplesSink()
	in := upstream.NewRtcpIncomingReportSink()
	out := upstream.NewRtcpOutgoingReportSink()
	recorder := &outgoingRecorder{}
	out.AddListener(recorder)

	ds := upstream.NewRtpInternalDataSource(samples, in, out)
	assert.Equal(t, base.ErrUpstreamNotOpened, ds.Open(upstream.NewDataSpec("rtsp://127.0.0.1/live/trackID=0", 0)))

	samples.Open(90000)
	in.Open()
	out.Open()
	assert.Equal(t, nil, ds.Open(upstream.NewDataSpec("rtsp://127.0.0.1/live/trackID=0", 0)))
	ds.SetSsrc(7)

	assert.Equal(t, nil, samples.Write(makeRtp(t, 1, 8, []byte{1})))
	assert.Equal(t, nil, samples.Write(makeRtp(t, 2, 7, []byte{2})))
	b := make([]byte, 1500)
	n, err := ds.Read(b)
	assert.Equal(t, nil, err)
	pkt, err := rtprtcp.ParseRtpPacket(b[:n])
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(2), pkt.Header.Seq)

	sr, err := rtprtcp.MakeSr(rtprtcp.Sr{SenderSsrc: 7, Msw: 1, Lsw: 2})
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, in.Write(sr))
	assert.Equal(t, 1, len(recorder.reports))
	assert.Equal(t, uint8(rtprtcp.RtcpPacketTypeRr), recorder.reports[0][1])

	assert.Equal(t, nil, ds.Close())
	assert.Equal(t, nil, ds.Close())
	_, err = ds.Read(b)
	assert.Equal(t, base.ErrUpstreamClosed, err)

	// 解除监听后不再产生rr
	assert.Equal(t, nil, in.Write(sr))
	assert.Equal(t, 1, len(recorder.reports))

	out.RemoveListener(recorder)
	_ = in.Close()
	_ = out.Close()
	assert.Equal(t, base.ErrUpstreamClosed, out.Write([]byte{1}))
}

func TestInterleavedFrame(t *testing.T) {
	b, err := upstream.PackInterleavedFrame(1, []byte{0x80, 0xc8})
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{'$', 1, 0, 2, 0x80, 0xc8}, b)

	r := bufio.NewReader(bytes.NewReader(append(b, []byte("RTSP/1.0 200 OK\r\n")...)))
	frame, isInterleaved, err := upstream.ReadInterleavedFrame(r)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, isInterleaved)
	assert.Equal(t, 1, frame.Channel)
	assert.Equal(t, []byte{0x80, 0xc8}, frame.Data)

	_, isInterleaved, err = upstream.ReadInterleavedFrame(r)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, isInterleaved)
	line, _ := r.ReadString('\n')
	assert.Equal(t, "RTSP/1.0 200 OK\r\n", line)

	_, err = upstream.PackInterleavedFrame(0, make([]byte, 0x10000))
	assert.Equal(t, true, errors.Is(err, base.ErrInterleaved))
}

func TestDataSpec(t *testing.T) {
	spec := upstream.NewDataSpec("udp://0.0.0.0:0", upstream.FlagForceBoundLocalAddress)
	host, port, err := spec.HostPort()
	assert.Equal(t, nil, err)
	assert.Equal(t, "0.0.0.0", host)
	assert.Equal(t, 0, port)
	assert.Equal(t, true, spec.IsFlagSet(upstream.FlagForceBoundLocalAddress))

	_, _, err = upstream.NewDataSpec("udp://0.0.0.0:abc", 0).HostPort()
	assert.IsNotNil(t, err)
}
