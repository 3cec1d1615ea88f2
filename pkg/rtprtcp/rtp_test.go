// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp_test

import (
	"testing"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/rtprtcp"
	"github.com/q191201771/naza/pkg/assert"
)

func TestCompareSeq(t *testing.T) {
	assert.Equal(t, 0, rtprtcp.CompareSeq(0, 0))
	assert.Equal(t, 0, rtprtcp.CompareSeq(1024, 1024))
	assert.Equal(t, 0, rtprtcp.CompareSeq(65535, 65535))

	assert.Equal(t, 1, rtprtcp.CompareSeq(1, 0))
	assert.Equal(t, 1, rtprtcp.CompareSeq(16383, 0))

	assert.Equal(t, -1, rtprtcp.CompareSeq(65534, 0))
	assert.Equal(t, -1, rtprtcp.CompareSeq(65535, 0))
	assert.Equal(t, -1, rtprtcp.CompareSeq(65534, 1))
	assert.Equal(t, -1, rtprtcp.CompareSeq(65535, 1))

	assert.Equal(t, -1, rtprtcp.CompareSeq(0, 1))
	assert.Equal(t, -1, rtprtcp.CompareSeq(0, 16383))

	assert.Equal(t, 1, rtprtcp.CompareSeq(0, 65534))
	assert.Equal(t, 1, rtprtcp.CompareSeq(0, 65535))
	assert.Equal(t, 1, rtprtcp.CompareSeq(1, 65534))
	assert.Equal(t, 1, rtprtcp.CompareSeq(1, 65535))
}

func TestSubSeq(t *testing.T) {
	assert.Equal(t, 0, rtprtcp.SubSeq(0, 0))
	assert.Equal(t, 0, rtprtcp.SubSeq(1024, 1024))
	assert.Equal(t, 0, rtprtcp.SubSeq(65535, 65535))

	assert.Equal(t, 1, rtprtcp.SubSeq(1, 0))
	assert.Equal(t, 16383, rtprtcp.SubSeq(16383, 0))

	assert.Equal(t, -49152, rtprtcp.SubSeq(16384, 0))
	assert.Equal(t, -2, rtprtcp.SubSeq(65534, 0))
	assert.Equal(t, -1, rtprtcp.SubSeq(65535, 0))
	assert.Equal(t, -3, rtprtcp.SubSeq(65534, 1))
	assert.Equal(t, -2, rtprtcp.SubSeq(65535, 1))

	assert.Equal(t, -1, rtprtcp.SubSeq(0, 1))
	assert.Equal(t, -16383, rtprtcp.SubSeq(0, 16383))

	assert.Equal(t, 49152, rtprtcp.SubSeq(0, 16384))
	assert.Equal(t, 2, rtprtcp.SubSeq(0, 65534))
	assert.Equal(t, 1, rtprtcp.SubSeq(0, 65535))
	assert.Equal(t, 3, rtprtcp.SubSeq(1, 65534))
	assert.Equal(t, 2, rtprtcp.SubSeq(1, 65535))
}

func TestParseRtpPacket(t *testing.T) {
	pkt, err := rtprtcp.MakeRtpPacket(rtprtcp.RtpHeader{
		Mark:       true,
		PacketType: 96,
		Seq:        65535,
		Timestamp:  90000,
		Ssrc:       0x12345678,
	}, []byte{1, 2, 3})
	assert.Equal(t, nil, err)
	assert.Equal(t, 15, len(pkt.Raw))

	p, err := rtprtcp.ParseRtpPacket(pkt.Raw)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(2), p.Header.Version)
	assert.Equal(t, true, p.Header.Mark)
	assert.Equal(t, uint8(96), p.Header.PacketType)
	assert.Equal(t, uint16(65535), p.Header.Seq)
	assert.Equal(t, uint32(90000), p.Header.Timestamp)
	assert.Equal(t, uint32(0x12345678), p.Header.Ssrc)
	assert.Equal(t, []byte{1, 2, 3}, p.Body())

	// padding
	raw := append([]byte{}, pkt.Raw...)
	raw[0] |= 0x20
	raw = append(raw, 0, 0, 3)
	p, err = rtprtcp.ParseRtpPacket(raw)
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{1, 2, 3}, p.Body())

	_, err = rtprtcp.ParseRtpPacket(pkt.Raw[:8])
	assert.IsNotNil(t, err)

	punch := rtprtcp.MakeRtpPunchPacket(1)
	assert.Equal(t, rtprtcp.RtpFixedHeaderLength, len(punch))
	assert.Equal(t, false, rtprtcp.IsRtcpPacket(punch))
	assert.Equal(t, true, rtprtcp.IsRtcpPacket(rtprtcp.MakeRtcpPunchPacket(1)))
}

func makePacket(t *testing.T, seq uint16, ts uint32, payload []byte) rtprtcp.RtpPacket {
	pkt, err := rtprtcp.MakeRtpPacket(rtprtcp.RtpHeader{PacketType: 97, Seq: seq, Timestamp: ts, Ssrc: 1}, payload)
	assert.Equal(t, nil, err)
	p, err := rtprtcp.ParseRtpPacket(pkt.Raw)
	assert.Equal(t, nil, err)
	return p
}

func TestUnpackAac(t *testing.T) {
	var frames []rtprtcp.Frame
	unpacker, err := rtprtcp.DefaultRtpUnpackerFactory(base.MimeAudioAac, 44100, func(frame rtprtcp.Frame) {
		frames = append(frames, frame)
	})
	assert.Equal(t, nil, err)

	// 一个完整的au
	unpacker.Feed(makePacket(t, 1, 1000, []byte{0x00, 0x10, 0x00, 0x28, 1, 2, 3, 4, 5}))
	assert.Equal(t, 1, len(frames))
	assert.Equal(t, uint32(1000), frames[0].Timestamp)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, frames[0].Payload)

	// 两个完整的au
	unpacker.Feed(makePacket(t, 2, 2024, []byte{0x00, 0x20, 0x00, 0x18, 0x00, 0x10, 1, 2, 3, 4, 5}))
	assert.Equal(t, 3, len(frames))
	assert.Equal(t, []byte{1, 2, 3}, frames[1].Payload)
	assert.Equal(t, []byte{4, 5}, frames[2].Payload)
	assert.Equal(t, uint32(2024+1024), frames[2].Timestamp)

	// 分片，并且乱序到达
	unpacker.Feed(makePacket(t, 4, 4096, []byte{0x00, 0x10, 0x00, 0x30, 5, 6}))
	assert.Equal(t, 3, len(frames))
	unpacker.Feed(makePacket(t, 3, 4096, []byte{0x00, 0x10, 0x00, 0x30, 1, 2, 3, 4}))
	assert.Equal(t, 4, len(frames))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, frames[3].Payload)

	// 过期的包
	unpacker.Feed(makePacket(t, 2, 2024, []byte{0x00, 0x10, 0x00, 0x28, 1, 2, 3, 4, 5}))
	assert.Equal(t, 4, len(frames))
}

func TestUnpackAvc(t *testing.T) {
	var frames []rtprtcp.Frame
	unpacker, err := rtprtcp.DefaultRtpUnpackerFactory(base.MimeVideoH264, 90000, func(frame rtprtcp.Frame) {
		frames = append(frames, frame)
	})
	assert.Equal(t, nil, err)

	// STAP-A sps+pps
	unpacker.Feed(makePacket(t, 10, 3000, []byte{0x18, 0x00, 0x02, 0x67, 0x42, 0x00, 0x02, 0x68, 0xce}))
	assert.Equal(t, 1, len(frames))
	assert.Equal(t, []byte{0, 0, 0, 2, 0x67, 0x42, 0, 0, 0, 2, 0x68, 0xce}, frames[0].Payload)
	assert.Equal(t, true, frames[0].Key)

	// FU-A idr，乱序
	unpacker.Feed(makePacket(t, 13, 3000, []byte{0x7c, 0x45, 7, 8}))
	unpacker.Feed(makePacket(t, 11, 3000, []byte{0x7c, 0x85, 1, 2, 3}))
	assert.Equal(t, 1, len(frames))
	unpacker.Feed(makePacket(t, 12, 3000, []byte{0x7c, 0x05, 4, 5, 6}))
	assert.Equal(t, 2, len(frames))
	assert.Equal(t, []byte{0, 0, 0, 9, 0x65, 1, 2, 3, 4, 5, 6, 7, 8}, frames[1].Payload)
	assert.Equal(t, true, frames[1].Key)

	// single p slice
	unpacker.Feed(makePacket(t, 14, 6000, []byte{0x41, 9, 9}))
	assert.Equal(t, 3, len(frames))
	assert.Equal(t, []byte{0, 0, 0, 3, 0x41, 9, 9}, frames[2].Payload)
	assert.Equal(t, false, frames[2].Key)
	assert.Equal(t, uint32(6000), frames[2].Timestamp)
}

func TestUnpackRaw(t *testing.T) {
	var frames []rtprtcp.Frame
	unpacker, err := rtprtcp.DefaultRtpUnpackerFactory(base.MimeAudioPcma, 8000, func(frame rtprtcp.Frame) {
		frames = append(frames, frame)
	})
	assert.Equal(t, nil, err)
	unpacker.Feed(makePacket(t, 1, 160, []byte{1, 2}))
	unpacker.Feed(makePacket(t, 2, 320, []byte{3, 4}))
	assert.Equal(t, 2, len(frames))

	unpacker.Reset()
	unpacker.Feed(makePacket(t, 1, 160, []byte{1, 2}))
	assert.Equal(t, 3, len(frames))

	_, err = rtprtcp.DefaultRtpUnpackerFactory("video/unknown", 90000, nil)
	assert.IsNotNil(t, err)
}

func TestSrAndRr(t *testing.T) {
	b, err := rtprtcp.MakeSr(rtprtcp.Sr{
		SenderSsrc: 0xAABB,
		Msw:        3805600902,
		Lsw:        2181843386,
		Timestamp:  90000,
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, true, rtprtcp.IsRtcpPacket(b))

	sr, ok, err := rtprtcp.ParseSr(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)
	assert.Equal(t, uint32(0xAABB), sr.SenderSsrc)
	assert.Equal(t, uint32(90000), sr.Timestamp)

	assert.Equal(t, 2020, sr.WallClock().UTC().Year())

	_, ok, err = rtprtcp.ParseSr(rtprtcp.MakeRtcpPunchPacket(1))
	assert.Equal(t, nil, err)
	assert.Equal(t, false, ok)

	_, _, err = rtprtcp.ParseSr([]byte{0x80})
	assert.IsNotNil(t, err)

	producer := rtprtcp.NewRrProducer(90000)
	assert.Equal(t, 0, len(producer.Produce(sr.GetMiddleNtp())))
	producer.SetSenderSsrc(0x1)
	for _, seq := range []uint16{65534, 65535, 1, 2} {
		producer.FeedRtpPacket(rtprtcp.RtpHeader{Seq: seq, Timestamp: 3000, Ssrc: 0xAABB})
	}
	rr := producer.Produce(sr.GetMiddleNtp())
	// header 4 + ssrc 4 + report block 24
	assert.Equal(t, 32, len(rr))
	assert.Equal(t, uint8(rtprtcp.RtcpPacketTypeRr), rr[1])
	// 65534 65535 0(丢失) 1 2，扩展序号为 1<<16 | 2
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x02}, rr[16:20])
	// 累计丢包数为1
	assert.Equal(t, []byte{0x00, 0x00, 0x01}, rr[13:16])
}
