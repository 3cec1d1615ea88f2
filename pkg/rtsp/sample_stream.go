// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtsp

import "github.com/q191201771/lalplay/pkg/samplequeue"

// SampleStream 上层读取一个被选中的track group的样本
type SampleStream interface {
	IsReady() bool
	MaybeThrowError() error

	// ReadData
	//
	// @return samplequeue.ResultNothingRead, samplequeue.ResultFormatRead, samplequeue.ResultBufferRead
	//
	ReadData(formatHolder *samplequeue.FormatHolder, buffer *samplequeue.DecoderInputBuffer, formatRequired bool) int

	// SkipData 跳到<positionUs>，返回跳过的样本数
	SkipData(positionUs int64) int
}

type wrapperSampleStream struct {
	w     *StreamWrapper
	group int
}

func (s *wrapperSampleStream) IsReady() bool {
	return s.w.IsReady(s.group)
}

func (s *wrapperSampleStream) MaybeThrowError() error {
	return s.w.maybeThrowError()
}

func (s *wrapperSampleStream) ReadData(formatHolder *samplequeue.FormatHolder, buffer *samplequeue.DecoderInputBuffer, formatRequired bool) int {
	return s.w.ReadData(s.group, formatHolder, buffer, formatRequired)
}

func (s *wrapperSampleStream) SkipData(positionUs int64) int {
	return s.w.SkipData(s.group, positionUs)
}

// Group 对应的track group下标
func (s *wrapperSampleStream) Group() int {
	return s.group
}
