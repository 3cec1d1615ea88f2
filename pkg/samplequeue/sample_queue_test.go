// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package samplequeue_test

import (
	"math"
	"testing"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/samplequeue"
	"github.com/q191201771/naza/pkg/assert"
)

type formatCounter struct {
	count int
}

func (c *formatCounter) OnUpstreamFormatChanged(format base.Format) {
	c.count++
}

func writeSample(q *samplequeue.SampleQueue, timeUs int64, key bool, data []byte) {
	flags := 0
	if key {
		flags = samplequeue.FlagKeyFrame
	}
	q.SampleData(data)
	q.SampleMetadata(timeUs, flags, len(data), 0)
}

func TestSampleQueue(t *testing.T) {
	q := samplequeue.NewSampleQueue("1", base.TrackTypeAudio)
	var c formatCounter
	q.SetUpstreamFormatChangeListener(&c)

	assert.Equal(t, int64(math.MinInt64), q.LargestQueuedTimestampUs())
	assert.Equal(t, true, q.UpstreamFormat() == nil)
	assert.Equal(t, false, q.IsReady(false))
	assert.Equal(t, true, q.IsReady(true))

	f := base.NewFormat("1", base.MimeAudioAac)
	q.Format(f)
	q.Format(f)
	assert.Equal(t, 1, c.count)
	f.SampleRate = 44100
	q.Format(f)
	assert.Equal(t, 2, c.count)

	writeSample(q, 10, true, []byte{1})
	writeSample(q, 20, false, []byte{2})
	writeSample(q, 30, true, []byte{3})
	assert.Equal(t, int64(30), q.LargestQueuedTimestampUs())
	assert.Equal(t, int64(3), q.WriteIndex())

	var fh samplequeue.FormatHolder
	var buf samplequeue.DecoderInputBuffer
	assert.Equal(t, samplequeue.ResultFormatRead, q.Read(&fh, &buf, false, false))
	assert.Equal(t, 44100, fh.Format.SampleRate)
	assert.Equal(t, samplequeue.ResultBufferRead, q.Read(&fh, &buf, false, false))
	assert.Equal(t, int64(10), buf.TimeUs)
	assert.Equal(t, []byte{1}, buf.Data)

	// 跳到30之前最后一个关键帧
	assert.Equal(t, 1, q.AdvanceTo(30))
	assert.Equal(t, samplequeue.ResultBufferRead, q.Read(&fh, &buf, false, false))
	assert.Equal(t, int64(30), buf.TimeUs)
	assert.Equal(t, samplequeue.ResultNothingRead, q.Read(&fh, &buf, false, false))
	assert.Equal(t, samplequeue.ResultBufferRead, q.Read(&fh, &buf, false, true))
	assert.Equal(t, true, buf.IsEndOfStream())
	assert.Equal(t, samplequeue.ResultFormatRead, q.Read(&fh, &buf, true, false))

	q.DiscardToEnd()
	assert.Equal(t, false, q.HasNextSample())
	assert.Equal(t, int64(3), q.WriteIndex())
	assert.Equal(t, int64(30), q.LargestQueuedTimestampUs())

	q.Reset(true)
	assert.Equal(t, int64(math.MinInt64), q.LargestQueuedTimestampUs())
	assert.Equal(t, true, q.UpstreamFormat() == nil)
}

func TestSampleMetadataOffset(t *testing.T) {
	q := samplequeue.NewSampleQueue("2", base.TrackTypeVideo)
	q.Format(base.NewFormat("2", base.MimeVideoH264))

	// 一次追加两个样本的数据，第二个样本的数据尾部还没有到
	q.SampleData([]byte{1, 2, 3, 4, 5})
	q.SampleMetadata(100, samplequeue.FlagKeyFrame, 3, 2)
	q.SampleData([]byte{6})
	q.SampleMetadata(200, 0, 3, 0)

	var fh samplequeue.FormatHolder
	var buf samplequeue.DecoderInputBuffer
	assert.Equal(t, samplequeue.ResultFormatRead, q.Read(&fh, &buf, false, false))
	assert.Equal(t, samplequeue.ResultBufferRead, q.Read(&fh, &buf, false, false))
	assert.Equal(t, []byte{1, 2, 3}, buf.Data)
	assert.Equal(t, samplequeue.ResultBufferRead, q.Read(&fh, &buf, false, false))
	assert.Equal(t, []byte{4, 5, 6}, buf.Data)
	assert.Equal(t, int64(200), buf.TimeUs)
}

func TestDiscardTo(t *testing.T) {
	q := samplequeue.NewSampleQueue("3", base.TrackTypeVideo)
	q.Format(base.NewFormat("3", base.MimeVideoH264))
	writeSample(q, 0, true, []byte{0})
	writeSample(q, 10, false, []byte{1})
	writeSample(q, 20, true, []byte{2})
	writeSample(q, 30, false, []byte{3})

	// 还没有读取，stopAtReadPosition时不丢弃
	q.DiscardTo(25, true, true)
	assert.Equal(t, int64(0), q.FirstTimestampUs())

	q.DiscardTo(25, true, false)
	assert.Equal(t, int64(20), q.FirstTimestampUs())

	q.DiscardTo(35, false, false)
	assert.Equal(t, int64(30), q.FirstTimestampUs())
	assert.Equal(t, int64(3), q.ReadIndex())

	q.Rewind()
	assert.Equal(t, true, q.HasNextSample())
	assert.Equal(t, 1, q.AdvanceToEnd())
	q.DiscardToRead()
	assert.Equal(t, base.TimeUnset, q.FirstTimestampUs())

	writeSample(q, 40, true, []byte{4})
	writeSample(q, 50, false, []byte{5})
	q.DiscardUpstreamSamples(5)
	assert.Equal(t, int64(40), q.LargestQueuedTimestampUs())
	assert.Equal(t, int64(5), q.WriteIndex())
}
