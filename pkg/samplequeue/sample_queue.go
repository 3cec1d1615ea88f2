// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package samplequeue

import (
	"math"
	"sync"

	"github.com/q191201771/lalplay/pkg/base"
)

type UpstreamFormatChangedListener interface {
	OnUpstreamFormatChanged(format base.Format)
}

type Sample struct {
	TimeUs int64
	Flags  int
	Data   []byte

	format *base.Format
}

func (s *Sample) IsKeyFrame() bool {
	return s.Flags&FlagKeyFrame != 0
}

type FormatHolder struct {
	Format *base.Format
}

// DecoderInputBuffer Read时传出的样本
type DecoderInputBuffer struct {
	TimeUs int64
	Flags  int
	Data   []byte
}

func (b *DecoderInputBuffer) IsEndOfStream() bool {
	return b.Flags&FlagEndOfStream != 0
}

// SampleQueue 一路track的样本队列
//
// 写入方是extractor所在的加载协程，读取方是播放器所在的协程，内部加锁
//
type SampleQueue struct {
	id        string
	trackType base.TrackType

	mu       sync.Mutex
	listener UpstreamFormatChangedListener

	upstreamFormat   *base.Format
	downstreamFormat *base.Format

	// 还没有提交的样本数据，见SampleMetadata
	pending []byte

	samples       []Sample
	readPosition  int   // 相对samples的下标
	absoluteFirst int64 // samples[0]的绝对序号，用于统计
	largestQueued int64
}

func NewSampleQueue(id string, trackType base.TrackType) *SampleQueue {
	return &SampleQueue{
		id:            id,
		trackType:     trackType,
		largestQueued: math.MinInt64,
	}
}

func (q *SampleQueue) Id() string {
	return q.id
}

func (q *SampleQueue) TrackType() base.TrackType {
	return q.trackType
}

func (q *SampleQueue) SetUpstreamFormatChangeListener(listener UpstreamFormatChangedListener) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listener = listener
}

// ----- 写入，由extractor调用 -------------------------------------------------------------------------------------------

// Format 设置上游格式，格式发生变化时回调listener
func (q *SampleQueue) Format(format base.Format) {
	q.mu.Lock()
	if q.upstreamFormat != nil && q.upstreamFormat.Equal(&format) {
		q.mu.Unlock()
		return
	}
	f := format
	q.upstreamFormat = &f
	listener := q.listener
	q.mu.Unlock()

	if listener != nil {
		listener.OnUpstreamFormatChanged(format)
	}
}

// SampleData 追加样本数据，直到SampleMetadata时才形成完整的样本
func (q *SampleQueue) SampleData(b []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, b...)
}

// SampleMetadata 提交一个样本
//
// @param size:   样本大小
// @param offset: 样本结束位置距离已追加数据尾部的字节数，这部分数据属于下一个样本
//
func (q *SampleQueue) SampleMetadata(timeUs int64, flags int, size int, offset int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	end := len(q.pending) - offset
	start := end - size
	if start < 0 || end < start {
		Log.Errorf("[%s] invalid sample metadata. size=%d, offset=%d, pending=%d", q.id, size, offset, len(q.pending))
		q.pending = q.pending[:0]
		return
	}

	data := make([]byte, size)
	copy(data, q.pending[start:end])
	q.pending = append(q.pending[:0], q.pending[end:]...)

	q.samples = append(q.samples, Sample{
		TimeUs: timeUs,
		Flags:  flags,
		Data:   data,
		format: q.upstreamFormat,
	})
	if timeUs > q.largestQueued {
		q.largestQueued = timeUs
	}
}

// ----- 读取，由播放器调用 ----------------------------------------------------------------------------------------------

// Read 读取一个样本或者格式
//
// @param formatRequired: 为true时，总是返回格式
// @param loadingFinished: 为true并且没有样本可读时，返回end of stream
//
// @return ResultNothingRead, ResultFormatRead, ResultBufferRead
//
func (q *SampleQueue) Read(formatHolder *FormatHolder, buffer *DecoderInputBuffer, formatRequired bool, loadingFinished bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.readPosition >= len(q.samples) {
		if formatRequired && q.upstreamFormat != nil {
			return q.readFormat(formatHolder, q.upstreamFormat)
		}
		if loadingFinished {
			buffer.Flags = FlagEndOfStream
			buffer.Data = nil
			return ResultBufferRead
		}
		if q.upstreamFormat != nil && q.upstreamFormat != q.downstreamFormat {
			return q.readFormat(formatHolder, q.upstreamFormat)
		}
		return ResultNothingRead
	}

	s := &q.samples[q.readPosition]
	if formatRequired || s.format != q.downstreamFormat {
		if s.format == nil {
			return ResultNothingRead
		}
		return q.readFormat(formatHolder, s.format)
	}

	buffer.TimeUs = s.TimeUs
	buffer.Flags = s.Flags
	buffer.Data = s.Data
	q.readPosition++
	return ResultBufferRead
}

func (q *SampleQueue) readFormat(formatHolder *FormatHolder, format *base.Format) int {
	formatHolder.Format = format
	q.downstreamFormat = format
	return ResultFormatRead
}

func (q *SampleQueue) HasNextSample() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.readPosition < len(q.samples)
}

// IsReady 有样本可读，或者已经没有更多数据了
func (q *SampleQueue) IsReady(loadingFinished bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if loadingFinished {
		return true
	}
	if q.readPosition < len(q.samples) {
		return true
	}
	return q.upstreamFormat != nil && q.upstreamFormat != q.downstreamFormat
}

// AdvanceTo 跳过时间戳小于等于<timeUs>的样本，最后停在关键帧上
//
// @return 跳过的样本数量
//
func (q *SampleQueue) AdvanceTo(timeUs int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	target := -1
	for i := q.readPosition; i < len(q.samples) && q.samples[i].TimeUs <= timeUs; i++ {
		if q.samples[i].IsKeyFrame() {
			target = i
		}
	}
	if target == -1 {
		return 0
	}
	skipped := target - q.readPosition
	q.readPosition = target
	return skipped
}

func (q *SampleQueue) AdvanceToEnd() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	skipped := len(q.samples) - q.readPosition
	q.readPosition = len(q.samples)
	return skipped
}

// Rewind 回到还没有丢弃的第一个样本
func (q *SampleQueue) Rewind() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.readPosition = 0
}

// ----- 丢弃 ------------------------------------------------------------------------------------------------------------

// DiscardTo 丢弃<timeUs>之前的样本，保留时间戳小于等于<timeUs>的最后一个样本(toKeyframe为true时为关键帧)
//
// @param stopAtReadPosition: 为true时，不丢弃还没有被读取的样本
//
func (q *SampleQueue) DiscardTo(timeUs int64, toKeyframe bool, stopAtReadPosition bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	limit := len(q.samples)
	if stopAtReadPosition {
		limit = q.readPosition
	}

	target := -1
	for i := 0; i < limit && q.samples[i].TimeUs <= timeUs; i++ {
		if !toKeyframe || q.samples[i].IsKeyFrame() {
			target = i
		}
	}
	if target <= 0 {
		return
	}
	q.discardFront(target)
}

func (q *SampleQueue) DiscardToRead() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.discardFront(q.readPosition)
}

func (q *SampleQueue) DiscardToEnd() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.discardFront(len(q.samples))
}

// DiscardUpstreamSamples 丢弃从<index>开始(绝对序号)的样本，用于回收还未读取的缓存
func (q *SampleQueue) DiscardUpstreamSamples(index int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rel := int(index - q.absoluteFirst)
	if rel < q.readPosition || rel >= len(q.samples) {
		return
	}
	q.samples = q.samples[:rel]
	q.largestQueued = math.MinInt64
	for i := range q.samples {
		if q.samples[i].TimeUs > q.largestQueued {
			q.largestQueued = q.samples[i].TimeUs
		}
	}
}

func (q *SampleQueue) discardFront(n int) {
	if n <= 0 {
		return
	}
	for i := 0; i < n; i++ {
		q.samples[i] = Sample{}
	}
	q.samples = q.samples[n:]
	q.absoluteFirst += int64(n)
	q.readPosition -= n
	if q.readPosition < 0 {
		q.readPosition = 0
	}
}

// Reset 清空所有样本
//
// @param resetUpstreamFormat: 为true时，上游格式也清空，需要extractor重新设置
//
func (q *SampleQueue) Reset(resetUpstreamFormat bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.samples = nil
	q.pending = nil
	q.readPosition = 0
	q.absoluteFirst = 0
	q.largestQueued = math.MinInt64
	if resetUpstreamFormat {
		q.upstreamFormat = nil
		q.downstreamFormat = nil
	}
}

// ----- 状态 ------------------------------------------------------------------------------------------------------------

// LargestQueuedTimestampUs 写入过的最大时间戳，没有写入过时为math.MinInt64
func (q *SampleQueue) LargestQueuedTimestampUs() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.largestQueued
}

// UpstreamFormat 还没有设置时返回nil
func (q *SampleQueue) UpstreamFormat() *base.Format {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.upstreamFormat == nil {
		return nil
	}
	f := *q.upstreamFormat
	return &f
}

// WriteIndex 写入过的样本总数
func (q *SampleQueue) WriteIndex() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.absoluteFirst + int64(len(q.samples))
}

// ReadIndex 读取过的样本总数
func (q *SampleQueue) ReadIndex() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.absoluteFirst + int64(q.readPosition)
}

func (q *SampleQueue) FirstTimestampUs() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.samples) == 0 {
		return base.TimeUnset
	}
	return q.samples[0].TimeUs
}
