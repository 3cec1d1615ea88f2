// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"github.com/q191201771/lalplay/pkg/h2645"
	"github.com/q191201771/naza/pkg/bele"
)

type RtpUnpackerAvcHevc struct {
	isH264  bool
	onFrame OnFrame
}

func NewRtpUnpackerAvcHevc(isH264 bool, onFrame OnFrame) *RtpUnpackerAvcHevc {
	return &RtpUnpackerAvcHevc{
		isH264:  isH264,
		onFrame: onFrame,
	}
}

func (unpacker *RtpUnpackerAvcHevc) CalcPositionIfNeeded(pkt *RtpPacket) {
	if unpacker.isH264 {
		calcPositionIfNeededAvc(pkt)
	} else {
		calcPositionIfNeededHevc(pkt)
	}
}

func (unpacker *RtpUnpackerAvcHevc) TryUnpackOne(list *RtpPacketList) (unpackedFlag bool, unpackedSeq uint16) {
	first := list.Head.Next
	if first == nil {
		return false, 0
	}

	switch first.Packet.positionType {
	case PositionTypeSingle:
		body := first.Packet.Body()
		payload := make([]byte, len(body)+4)
		bele.BePutUint32(payload, uint32(len(body)))
		copy(payload[4:], body)

		list.PopFirst()
		unpacker.onFrame(Frame{
			Timestamp: first.Packet.Header.Timestamp,
			Payload:   payload,
			Key:       unpacker.isKey(body[0]),
		})
		return true, first.Packet.Header.Seq

	case PositionTypeStapa:
		// 跳过首字节(h265为2字节)，并且将多nalu前的2字节长度，替换成4字节长度
		skip := 1
		if !unpacker.isH264 {
			skip = 2
		}
		buf := first.Packet.Body()[skip:]

		// 使用两次遍历，第一次遍历找出总大小，第二次逐个拷贝，使得内存块一次就申请好
		totalSize := 0
		for i := 0; i != len(buf); {
			if len(buf)-i < 2 {
				Log.Errorf("invalid STAP-A packet. seq=%d", first.Packet.Header.Seq)
				list.PopFirst()
				return true, first.Packet.Header.Seq
			}
			naluSize := int(bele.BeUint16(buf[i:]))
			if naluSize == 0 || len(buf)-i-2 < naluSize {
				Log.Errorf("invalid STAP-A packet. seq=%d, naluSize=%d", first.Packet.Header.Seq, naluSize)
				list.PopFirst()
				return true, first.Packet.Header.Seq
			}
			totalSize += 4 + naluSize
			i += 2 + naluSize
		}

		key := false
		payload := make([]byte, totalSize)
		j := 0
		for i := 0; i != len(buf); {
			naluSize := int(bele.BeUint16(buf[i:]))
			bele.BePutUint32(payload[j:], uint32(naluSize))
			copy(payload[j+4:], buf[i+2:i+2+naluSize])
			key = key || unpacker.isKey(buf[i+2])
			j += 4 + naluSize
			i += 2 + naluSize
		}

		list.PopFirst()
		unpacker.onFrame(Frame{
			Timestamp: first.Packet.Header.Timestamp,
			Payload:   payload,
			Key:       key,
		})
		return true, first.Packet.Header.Seq

	case PositionTypeFuaStart:
		prev := first
		p := first.Next
		for {
			if p == nil {
				return false, 0
			}
			if SubSeq(p.Packet.Header.Seq, prev.Packet.Header.Seq) != 1 {
				return false, 0
			}

			if p.Packet.positionType == PositionTypeFuaMiddle {
				prev = p
				p = p.Next
				continue
			}
			if p.Packet.positionType != PositionTypeFuaEnd {
				// 不应该出现其他类型
				Log.Errorf("invalid position type. position=%d", p.Packet.positionType)
				return false, 0
			}

			// 重建nalu header
			var naluHeader []byte
			firstBody := first.Packet.Body()
			if unpacker.isH264 {
				fuIndicator := firstBody[0]
				fuHeader := firstBody[1]
				naluHeader = []byte{(fuIndicator & 0xE0) | (fuHeader & 0x1F)}
			} else {
				fuType := firstBody[2] & 0x3f
				// 取payload header第一个字节的头尾各1位
				naluHeader = []byte{(firstBody[0] & 0x81) | (fuType << 1), firstBody[1]}
			}
			fuHeaderLen := len(naluHeader) + 1

			totalSize := 0
			for pp := first; ; pp = pp.Next {
				totalSize += len(pp.Packet.Body()) - fuHeaderLen
				if pp == p {
					break
				}
			}

			payload := make([]byte, 4+len(naluHeader)+totalSize)
			bele.BePutUint32(payload, uint32(len(naluHeader)+totalSize))
			copy(payload[4:], naluHeader)
			index := 4 + len(naluHeader)
			for pp := first; ; pp = pp.Next {
				index += copy(payload[index:], pp.Packet.Body()[fuHeaderLen:])
				if pp == p {
					break
				}
			}

			list.PopUntil(p)
			unpacker.onFrame(Frame{
				Timestamp: p.Packet.Header.Timestamp,
				Payload:   payload,
				Key:       unpacker.isKey(naluHeader[0]),
			})
			return true, p.Packet.Header.Seq
		}

	case PositionTypeFuaMiddle, PositionTypeFuaEnd:
		// 缺少起始分片，等待容器满了之后丢弃
	default:
		// 无法识别的包直接丢弃
		Log.Warnf("invalid position, drop it. pos=%d, seq=%d", first.Packet.positionType, first.Packet.Header.Seq)
		list.PopFirst()
		return true, first.Packet.Header.Seq
	}

	return false, 0
}

func (unpacker *RtpUnpackerAvcHevc) isKey(naluHeader byte) bool {
	return h2645.IsKeyNalu(unpacker.isH264, h2645.ParseNaluType(unpacker.isH264, naluHeader))
}

func calcPositionIfNeededAvc(pkt *RtpPacket) {
	b := pkt.Body()
	if len(b) == 0 {
		return
	}

	outerNaluType := h2645.ParseNaluType(true, b[0])
	switch {
	case outerNaluType == 0:
		Log.Errorf("unknown nalu type. outerNaluType=%d", outerNaluType)
	case outerNaluType <= NaluTypeAvcSingleMax:
		pkt.positionType = PositionTypeSingle
	case outerNaluType == NaluTypeAvcStapa:
		pkt.positionType = PositionTypeStapa
	case outerNaluType == NaluTypeAvcFua:
		// rfc3984 5.8.  Fragmentation Units (FUs)
		//
		// Fu header:
		// +---------------+
		// |0|1|2|3|4|5|6|7|
		// +-+-+-+-+-+-+-+-+
		// |S|E|R|  Type   |
		// +---------------+
		if len(b) < 3 {
			return
		}
		pkt.positionType = calcFuPosition(b[1])
	default:
		Log.Errorf("unknown nalu type. outerNaluType=%d", outerNaluType)
	}
}

func calcPositionIfNeededHevc(pkt *RtpPacket) {
	b := pkt.Body()
	if len(b) < 2 {
		return
	}

	outerNaluType := h2645.ParseNaluType(false, b[0])
	switch {
	case outerNaluType < NaluTypeHevcAp:
		pkt.positionType = PositionTypeSingle
	case outerNaluType == NaluTypeHevcAp:
		pkt.positionType = PositionTypeStapa
	case outerNaluType == NaluTypeHevcFua:
		// rfc7798 4.4.3.  Fragmentation Units
		//
		// +---------------+
		// |0|1|2|3|4|5|6|7|
		// +-+-+-+-+-+-+-+-+
		// |S|E|  FuType   |
		// +---------------+
		if len(b) < 4 {
			return
		}
		pkt.positionType = calcFuPosition(b[2])
	default:
		Log.Errorf("unknown nalu type. outerNaluType=%d, header=%+v, len=%d",
			outerNaluType, pkt.Header, len(pkt.Raw))
	}
}

func calcFuPosition(fuHeader byte) uint8 {
	if fuHeader&0x80 != 0 {
		return PositionTypeFuaStart
	}
	if fuHeader&0x40 != 0 {
		return PositionTypeFuaEnd
	}
	return PositionTypeFuaMiddle
}
