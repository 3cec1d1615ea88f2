// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package upstream

import (
	"bufio"
	"io"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

// rfc2326 10.12 Embedded (Interleaved) Binary Data

const (
	InterleavedMagic = '$'

	interleavedHeaderLength = 4
	interleavedMaxDataSize  = 0xFFFF
)

type InterleavedFrame struct {
	Channel int
	Data    []byte
}

// ReadInterleavedFrame
//
// @return isInterleaved: 下一个字节不是'$'时为false，此时不消费<r>中的数据，由调用方按rtsp信令读取
//
func ReadInterleavedFrame(r *bufio.Reader) (frame InterleavedFrame, isInterleaved bool, err error) {
	flag, err := r.ReadByte()
	if err != nil {
		return frame, false, err
	}

	if flag != InterleavedMagic {
		_ = r.UnreadByte()
		return frame, false, nil
	}

	header := make([]byte, interleavedHeaderLength-1)
	if _, err = io.ReadFull(r, header); err != nil {
		return frame, false, err
	}
	frame.Channel = int(header[0])
	length := int(bele.BeUint16(header[1:]))
	frame.Data = make([]byte, length)
	if _, err = io.ReadFull(r, frame.Data); err != nil {
		return frame, false, err
	}
	return frame, true, nil
}

func PackInterleavedFrame(channel int, data []byte) ([]byte, error) {
	if len(data) > interleavedMaxDataSize {
		return nil, base.NewErrInterleavedFrameTooLarge(len(data), interleavedMaxDataSize)
	}
	if channel < 0 || channel > 0xFF {
		return nil, base.ErrInterleaved
	}
	ret := make([]byte, interleavedHeaderLength+len(data))
	ret[0] = InterleavedMagic
	ret[1] = uint8(channel)
	bele.BePutUint16(ret[2:], uint16(len(data)))
	copy(ret[4:], data)
	return ret, nil
}
