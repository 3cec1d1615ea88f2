// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

type RtpPacketListItem struct {
	Packet RtpPacket
	Next   *RtpPacketListItem
}

// RtpPacketList rtp packet的有序链表，前面的seq小于后面的seq
//
// 插入时绝大部分seq都在当前最大值附近，并且容器有最大值，所以用链表遍历即可。
// 当数据有序时，容器内缓存的是一帧的数据。
//
type RtpPacketList struct {
	Head RtpPacketListItem // 哨兵，自身不存放rtp包，第一个rtp包存在在head.next中
	Size int               // 实际元素个数

	unpackedFlag bool   // 是否成功合成过的标志
	unpackedSeq  uint16 // 成功合成的最后一个seq号，注意，主动丢弃的不算
}

// IsStale 是否过期
func (l *RtpPacketList) IsStale(seq uint16) bool {
	if !l.unpackedFlag {
		return false
	}
	return CompareSeq(seq, l.unpackedSeq) <= 0
}

// Insert 插入有序链表，并去重
func (l *RtpPacketList) Insert(pkt RtpPacket) {
	p := &l.Head
	for ; p.Next != nil; p = p.Next {
		switch CompareSeq(pkt.Header.Seq, p.Next.Packet.Header.Seq) {
		case 0:
			return
		case 1:
			// noop
		case -1:
			p.Next = &RtpPacketListItem{
				Packet: pkt,
				Next:   p.Next,
			}
			l.Size++
			return
		}
	}

	p.Next = &RtpPacketListItem{
		Packet: pkt,
	}
	l.Size++
}

// PopFirst 弹出第一个包。注意，调用方保证容器不为空时调用
func (l *RtpPacketList) PopFirst() RtpPacket {
	pkt := l.Head.Next.Packet
	l.Head.Next = l.Head.Next.Next
	l.Size--
	return pkt
}

// PopUntil 弹出从头部开始直到<last>(包含)的所有包
func (l *RtpPacketList) PopUntil(last *RtpPacketListItem) {
	for p := l.Head.Next; p != nil; p = p.Next {
		l.Size--
		if p == last {
			l.Head.Next = p.Next
			return
		}
	}
}

// IsFirstSequential 第一个包和最后一个合帧成功的包相比，是否是连续的
func (l *RtpPacketList) IsFirstSequential() bool {
	first := l.Head.Next
	if first == nil {
		return false
	}
	if !l.unpackedFlag {
		return true
	}
	return SubSeq(first.Packet.Header.Seq, l.unpackedSeq) == 1
}

// SetUnpackedSeq 设置最新的合成帧成功的包序号
func (l *RtpPacketList) SetUnpackedSeq(seq uint16) {
	l.unpackedFlag = true
	l.unpackedSeq = seq
}

func (l *RtpPacketList) Reset() {
	l.Head.Next = nil
	l.Size = 0
	l.unpackedFlag = false
	l.unpackedSeq = 0
}
