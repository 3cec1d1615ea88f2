// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"fmt"

	"github.com/pion/rtp"
	"github.com/q191201771/lalplay/pkg/base"
)

// -----------------------------------
// rfc3550 5.1 RTP Fixed Header Fields
// -----------------------------------
//
// 0                   1                   2                   3
// 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |V=2|P|X|  CC   |M|     PT      |       sequence number         |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                           timestamp                           |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |           synchronization source (SSRC) identifier            |
// +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
// |            contributing source (CSRC) identifiers             |
// |                             ....                              |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

const (
	RtpFixedHeaderLength = 12

	DefaultRtpVersion = 2
)

const (
	PositionTypeSingle    uint8 = 1
	PositionTypeFuaStart  uint8 = 2
	PositionTypeFuaMiddle uint8 = 3
	PositionTypeFuaEnd    uint8 = 4
	PositionTypeStapa     uint8 = 5
)

type RtpHeader struct {
	Version    uint8
	Padding    bool
	Extension  bool
	CsrcCount  uint8
	Mark       bool
	PacketType uint8
	Seq        uint16
	Timestamp  uint32
	Ssrc       uint32

	// payload在Raw中的区间，跳过了csrc、扩展头以及尾部的padding
	payloadOffset int
	payloadEnd    int
}

type RtpPacket struct {
	Header RtpHeader
	Raw    []byte // 包含header内存

	positionType uint8
}

func (pkt *RtpPacket) Body() []byte {
	return pkt.Raw[pkt.Header.payloadOffset:pkt.Header.payloadEnd]
}

// ParseRtpPacket 解析rtp包
//
// 函数调用结束后，不持有参数<b>的内存块
//
func ParseRtpPacket(b []byte) (pkt RtpPacket, err error) {
	var h rtp.Header
	n, err := h.Unmarshal(b)
	if err != nil {
		return pkt, fmt.Errorf("%w. err=%+v", base.ErrRtp, err)
	}
	if h.Version != DefaultRtpVersion {
		return pkt, fmt.Errorf("%w. version=%d", base.ErrRtp, h.Version)
	}

	end := len(b)
	if h.Padding {
		if end == n {
			return pkt, fmt.Errorf("%w. padding without payload", base.ErrRtp)
		}
		paddingSize := int(b[end-1])
		if paddingSize == 0 || end-paddingSize < n {
			return pkt, fmt.Errorf("%w. invalid padding size. size=%d", base.ErrRtp, paddingSize)
		}
		end -= paddingSize
	}

	pkt.Header = RtpHeader{
		Version:       h.Version,
		Padding:       h.Padding,
		Extension:     h.Extension,
		CsrcCount:     uint8(len(h.CSRC)),
		Mark:          h.Marker,
		PacketType:    h.PayloadType,
		Seq:           h.SequenceNumber,
		Timestamp:     h.Timestamp,
		Ssrc:          h.SSRC,
		payloadOffset: n,
		payloadEnd:    end,
	}
	pkt.Raw = make([]byte, len(b))
	copy(pkt.Raw, b)
	return pkt, nil
}

// MakeRtpPacket 打包一个只有固定头的rtp包
func MakeRtpPacket(h RtpHeader, payload []byte) (RtpPacket, error) {
	p := rtp.Packet{
		Header: rtp.Header{
			Version:        DefaultRtpVersion,
			Marker:         h.Mark,
			PayloadType:    h.PacketType,
			SequenceNumber: h.Seq,
			Timestamp:      h.Timestamp,
			SSRC:           h.Ssrc,
		},
		Payload: payload,
	}
	raw, err := p.Marshal()
	if err != nil {
		return RtpPacket{}, err
	}
	h.Version = DefaultRtpVersion
	h.Padding = false
	h.Extension = false
	h.CsrcCount = 0
	h.payloadOffset = RtpFixedHeaderLength
	h.payloadEnd = len(raw)
	return RtpPacket{Header: h, Raw: raw}, nil
}

// MakeRtpPunchPacket 用于打洞的空rtp包
func MakeRtpPunchPacket(ssrc uint32) []byte {
	pkt, _ := MakeRtpPacket(RtpHeader{Ssrc: ssrc}, nil)
	return pkt.Raw
}
