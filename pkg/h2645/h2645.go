// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package h2645

import (
	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

// 无特殊说明的函数则同时支持h264和h265两种格式

var (
	NaluStartCode4 = []byte{0x0, 0x0, 0x0, 0x1}
)

const (
	H264NaluTypeSlice    uint8 = 1
	H264NaluTypeIdrSlice uint8 = 5
	H264NaluTypeSei      uint8 = 6
	H264NaluTypeSps      uint8 = 7
	H264NaluTypePps      uint8 = 8
	H264NaluTypeAud      uint8 = 9  // Access Unit Delimiter
	H264NaluTypeFd       uint8 = 12 // Filler Data
)

// ISO_IEC_23008-2_2013.pdf
// Table 7-1 – NAL unit type codes and NAL unit type classes
const (
	H265NaluTypeSliceTrailN uint8 = 0
	H265NaluTypeSliceTrailR uint8 = 1

	H265NaluTypeSliceBlaWlp       uint8 = 16 // 0x10
	H265NaluTypeSliceIdr          uint8 = 19 // 0x13
	H265NaluTypeSliceIdrNlp       uint8 = 20 // 0x14
	H265NaluTypeSliceCranut       uint8 = 21 // 0x15
	H265NaluTypeSliceRsvIrapVcl23 uint8 = 23 // 0x17

	H265NaluTypeVps       uint8 = 32 // 0x20
	H265NaluTypeSps       uint8 = 33 // 0x21
	H265NaluTypePps       uint8 = 34 // 0x22
	H265NaluTypeAud       uint8 = 35 // 0x23
	H265NaluTypeSei       uint8 = 39 // 0x27
	H265NaluTypeSeiSuffix uint8 = 40 // 0x28
)

// ParseNaluType
//
// @param v: nalu的第一个字节
//
func ParseNaluType(isH264 bool, v uint8) uint8 {
	if isH264 {
		// +---------------+
		// |0|1|2|3|4|5|6|7|
		// +-+-+-+-+-+-+-+-+
		// |F|NRI|  Type   |
		// +---------------+
		return v & 0x1f
	}
	// +---------------+---------------+
	// |0|1|2|3|4|5|6|7|0|1|2|3|4|5|6|7|
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	// |F|   Type    |  LayerId  | TID |
	// +-------------+-----------------+
	return (v & 0x7E) >> 1
}

func H265IsIrapNalu(typ uint8) bool {
	return typ >= H265NaluTypeSliceBlaWlp && typ <= H265NaluTypeSliceRsvIrapVcl23
}

// IsKeyNalu 关键帧，或者是关键帧前面的参数集
func IsKeyNalu(isH264 bool, typ uint8) bool {
	if isH264 {
		return typ == H264NaluTypeIdrSlice || typ == H264NaluTypeSps || typ == H264NaluTypePps
	}
	return H265IsIrapNalu(typ) || typ == H265NaluTypeVps || typ == H265NaluTypeSps || typ == H265NaluTypePps
}

// IterateNaluAvcc 遍历Avcc格式的nalu流，每个nalu前面有4字节的长度
func IterateNaluAvcc(nals []byte, handler func(nal []byte)) error {
	for i := 0; i != len(nals); {
		if len(nals)-i < 4 {
			return base.ErrShortBuffer
		}
		naluLen := int(bele.BeUint32(nals[i:]))
		i += 4
		if naluLen > len(nals)-i {
			return base.ErrShortBuffer
		}
		handler(nals[i : i+naluLen])
		i += naluLen
	}
	return nil
}

func JoinNaluAvcc(naluList ...[]byte) []byte {
	n := len(naluList)
	if n == 0 {
		return nil
	}
	n *= 4
	for _, item := range naluList {
		n += len(item)
	}
	ret := make([]byte, n)

	pos := 0
	for _, item := range naluList {
		bele.BePutUint32(ret[pos:], uint32(len(item)))
		pos += 4
		copy(ret[pos:], item)
		pos += len(item)
	}

	return ret
}

// Avcc2Annexb 将4字节长度前缀替换成起始码
func Avcc2Annexb(nals []byte) ([]byte, error) {
	ret := make([]byte, 0, len(nals))
	err := IterateNaluAvcc(nals, func(nal []byte) {
		ret = append(ret, NaluStartCode4...)
		ret = append(ret, nal...)
	})
	return ret, err
}
