// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package h2645_test

import (
	"testing"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/h2645"
	"github.com/q191201771/naza/pkg/assert"
)

func TestParseNaluType(t *testing.T) {
	assert.Equal(t, h2645.H264NaluTypeSps, h2645.ParseNaluType(true, 0x67))
	assert.Equal(t, h2645.H264NaluTypeIdrSlice, h2645.ParseNaluType(true, 0x65))
	assert.Equal(t, h2645.H265NaluTypeVps, h2645.ParseNaluType(false, 0x40))
	assert.Equal(t, h2645.H265NaluTypeSliceIdr, h2645.ParseNaluType(false, 0x26))

	assert.Equal(t, true, h2645.IsKeyNalu(true, 5))
	assert.Equal(t, false, h2645.IsKeyNalu(true, 1))
	assert.Equal(t, true, h2645.IsKeyNalu(false, 19))
	assert.Equal(t, false, h2645.IsKeyNalu(false, 1))
}

func TestAvcc(t *testing.T) {
	b := h2645.JoinNaluAvcc([]byte{0x67, 1, 2}, []byte{0x68, 3})
	assert.Equal(t, []byte{0, 0, 0, 3, 0x67, 1, 2, 0, 0, 0, 2, 0x68, 3}, b)

	var nals [][]byte
	err := h2645.IterateNaluAvcc(b, func(nal []byte) {
		nals = append(nals, nal)
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(nals))
	assert.Equal(t, []byte{0x68, 3}, nals[1])

	annexb, err := h2645.Avcc2Annexb(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{0, 0, 0, 1, 0x67, 1, 2, 0, 0, 0, 1, 0x68, 3}, annexb)

	err = h2645.IterateNaluAvcc(b[:6], func(nal []byte) {})
	assert.Equal(t, base.ErrShortBuffer, err)
}
