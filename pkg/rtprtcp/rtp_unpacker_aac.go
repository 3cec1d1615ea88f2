// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabits"
)

// AAC每帧固定1024个采样点
const aacSamplesPerFrame = 1024

type RtpUnpackerAac struct {
	clockRate   int
	sizeLength  int
	indexLength int
	onFrame     OnFrame
}

func NewRtpUnpackerAac(clockRate int, sizeLength int, indexLength int, onFrame OnFrame) *RtpUnpackerAac {
	return &RtpUnpackerAac{
		clockRate:   clockRate,
		sizeLength:  sizeLength,
		indexLength: indexLength,
		onFrame:     onFrame,
	}
}

func (unpacker *RtpUnpackerAac) CalcPositionIfNeeded(pkt *RtpPacket) {
	// noop
}

func (unpacker *RtpUnpackerAac) TryUnpackOne(list *RtpPacketList) (unpackedFlag bool, unpackedSeq uint16) {
	// rfc3640 2.11.  Global Structure of Payload Format
	//
	// +---------+-----------+-----------+---------------+
	// | RTP     | AU Header | Auxiliary | Access Unit   |
	// | Header  | Section   | Section   | Data Section  |
	// +---------+-----------+-----------+---------------+
	//
	//           <----------RTP Packet Payload----------->
	//
	// rfc3640 3.2.1.  The AU Header Section
	//
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+- .. -+-+-+-+-+-+-+-+-+-+
	// |AU-headers-length|AU-header|AU-header|      |AU-header|padding|
	// |                 |   (1)   |   (2)   |      |   (n)   | bits  |
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+- .. -+-+-+-+-+-+-+-+-+-+
	//
	// rfc3640 3.2.3.1.  Fragmentation
	//
	//   A packet SHALL carry either one or more complete Access Units, or a
	//   single fragment of an Access Unit.  Fragments of the same Access Unit
	//   have the same time stamp but different RTP sequence numbers.
	//

	p := list.Head.Next
	if p == nil {
		return false, 0
	}
	b := p.Packet.Body()

	aus, err := unpacker.parseAu(b)
	if err != nil {
		Log.Warnf("parse au failed, drop it. seq=%d, err=%+v", p.Packet.Header.Seq, err)
		list.PopFirst()
		return true, p.Packet.Header.Seq
	}

	if len(aus) == 1 {
		// 描述的音频帧完整的在当前的rtp packet中
		if int(aus[0].size) <= len(b)-int(aus[0].pos) {
			unpacker.onFrame(Frame{
				Timestamp: p.Packet.Header.Timestamp,
				Payload:   b[aus[0].pos : aus[0].pos+aus[0].size],
				Key:       true,
			})
			list.PopFirst()
			return true, p.Packet.Header.Seq
		}

		// fragmented
		// 注意，这里参考size和rtp包头中的timestamp，不参考rtp包头中的mark位
		totalSize := aus[0].size
		timestamp := p.Packet.Header.Timestamp

		as := [][]byte{b[aus[0].pos:]}
		cacheSize := uint32(len(b) - int(aus[0].pos))

		prev := p
		for p = p.Next; ; p = p.Next {
			if p == nil {
				return false, 0
			}
			if SubSeq(p.Packet.Header.Seq, prev.Packet.Header.Seq) != 1 {
				return false, 0
			}
			if p.Packet.Header.Timestamp != timestamp {
				Log.Errorf("fragments of the same access shall have the same timestamp. first=%d, curr=%d",
					timestamp, p.Packet.Header.Timestamp)
				return false, 0
			}

			// 非第一个fragment，也会包含au header，size应该和第一个fragment中的相等
			fb := p.Packet.Body()
			faus, err := unpacker.parseAu(fb)
			if err != nil || len(faus) != 1 {
				Log.Errorf("shall be a single fragment. len(aus)=%d, err=%+v", len(faus), err)
				return false, 0
			}
			if faus[0].size != totalSize {
				Log.Errorf("fragments of the same access shall have the same size. first=%d, curr=%d",
					totalSize, faus[0].size)
				return false, 0
			}

			cacheSize += uint32(len(fb) - int(faus[0].pos))
			as = append(as, fb[faus[0].pos:])
			if cacheSize < totalSize {
				prev = p
				continue
			}
			if cacheSize > totalSize {
				Log.Errorf("cache size bigger then total size. cacheSize=%d, totalSize=%d", cacheSize, totalSize)
				return false, 0
			}

			payload := make([]byte, 0, totalSize)
			for _, a := range as {
				payload = append(payload, a...)
			}
			unpacker.onFrame(Frame{
				Timestamp: timestamp,
				Payload:   payload,
				Key:       true,
			})
			list.PopUntil(p)
			return true, p.Packet.Header.Seq
		}
	}

	// 多个完整的access unit
	for i := range aus {
		unpacker.onFrame(Frame{
			Timestamp: p.Packet.Header.Timestamp + uint32(i*aacSamplesPerFrame),
			Payload:   b[aus[i].pos : aus[i].pos+aus[i].size],
			Key:       true,
		})
	}
	list.PopFirst()
	return true, p.Packet.Header.Seq
}

type au struct {
	size uint32 // 该音频帧的大小
	pos  uint32 // 相对rtp body的位置
}

func (unpacker *RtpUnpackerAac) parseAu(b []byte) (ret []au, err error) {
	if len(b) < 2 {
		return nil, base.ErrRtpRtcpShortBuffer
	}

	// AU Header Section，长度单位是bit
	auHeadersLengthBits := uint32(bele.BeUint16(b))
	auHeadersLength := (auHeadersLengthBits + 7) / 8
	if uint32(len(b)) < 2+auHeadersLength {
		return nil, base.ErrRtpRtcpShortBuffer
	}

	auHeaderBits := uint32(unpacker.sizeLength + unpacker.indexLength)
	if auHeaderBits == 0 {
		return nil, base.ErrRtp
	}
	nbAuHeaders := auHeadersLengthBits / auHeaderBits

	br := nazabits.NewBitReader(b[2 : 2+auHeadersLength])
	pau := 2 + auHeadersLength
	for i := uint32(0); i < nbAuHeaders; i++ {
		auSize, err := br.ReadBits32(uint(unpacker.sizeLength))
		if err != nil {
			return nil, err
		}
		// 注意，fragment时，auIndex并不可靠
		if _, err = br.ReadBits32(uint(unpacker.indexLength)); err != nil {
			return nil, err
		}

		ret = append(ret, au{
			size: auSize,
			pos:  pau,
		})
		pau += auSize
	}

	if nbAuHeaders == 0 {
		return nil, base.ErrRtp
	}
	if nbAuHeaders > 1 && pau != uint32(len(b)) {
		Log.Warnf("rtp packet size invalid. nbAuHeaders=%d, pau=%d, len(b)=%d", nbAuHeaders, pau, len(b))
		return nil, base.ErrRtp
	}
	return ret, nil
}
