// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"bytes"
	"fmt"
)

const NoValue = -1

// Format 描述一路track中样本的格式
//
// 由extractor在解析过程中产生，写入SampleQueue，最终通过TrackGroup暴露给播放器
type Format struct {
	Id             string
	SampleMimeType string
	Codecs         string
	SampleRate     int
	ChannelCount   int
	Width          int
	Height         int
	FrameRate      float64
	Language       string

	// 解码器初始化数据，比如AAC的asc，H264的sps和pps
	InitializationData [][]byte
}

func NewFormat(id string, sampleMimeType string) Format {
	return Format{
		Id:             id,
		SampleMimeType: sampleMimeType,
		SampleRate:     NoValue,
		ChannelCount:   NoValue,
		Width:          NoValue,
		Height:         NoValue,
		FrameRate:      NoValue,
	}
}

func (f *Format) Equal(other *Format) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.Id != other.Id ||
		f.SampleMimeType != other.SampleMimeType ||
		f.Codecs != other.Codecs ||
		f.SampleRate != other.SampleRate ||
		f.ChannelCount != other.ChannelCount ||
		f.Width != other.Width ||
		f.Height != other.Height ||
		f.FrameRate != other.FrameRate ||
		f.Language != other.Language ||
		len(f.InitializationData) != len(other.InitializationData) {
		return false
	}
	for i := range f.InitializationData {
		if !bytes.Equal(f.InitializationData[i], other.InitializationData[i]) {
			return false
		}
	}
	return true
}

func (f *Format) TrackType() TrackType {
	return MimeTypeToTrackType(f.SampleMimeType)
}

func (f Format) DebugString() string {
	return fmt.Sprintf("[%s] mime=%s, codecs=%s, rate=%d, channels=%d, width=%d, height=%d, initData=%d",
		f.Id, f.SampleMimeType, f.Codecs, f.SampleRate, f.ChannelCount, f.Width, f.Height, len(f.InitializationData))
}
