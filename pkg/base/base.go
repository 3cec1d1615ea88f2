// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"math"
	"strings"
)

// 时间相关的常量，单位都是微秒

const (
	// TimeEndOfSource 表示已经读到流的末尾
	TimeEndOfSource int64 = math.MinInt64

	// TimeUnset 表示时间未设置
	TimeUnset int64 = math.MinInt64 + 1

	// PositionUnset 表示字节位置未设置
	PositionUnset int64 = -1
)

type TrackType int

const (
	TrackTypeUnknown  TrackType = -1
	TrackTypeDefault  TrackType = 0
	TrackTypeAudio    TrackType = 1
	TrackTypeVideo    TrackType = 2
	TrackTypeText     TrackType = 3
	TrackTypeMetadata TrackType = 4
)

func (t TrackType) ReadableString() string {
	switch t {
	case TrackTypeDefault:
		return "default"
	case TrackTypeAudio:
		return "audio"
	case TrackTypeVideo:
		return "video"
	case TrackTypeText:
		return "text"
	case TrackTypeMetadata:
		return "metadata"
	}
	return "unknown"
}

const (
	MimeAudioAac  = "audio/mp4a-latm"
	MimeAudioMpeg = "audio/mpeg"
	MimeAudioAc3  = "audio/ac3"
	MimeAudioPcma = "audio/g711-alaw"
	MimeAudioPcmu = "audio/g711-mlaw"
	MimeAudioOpus = "audio/opus"
	MimeAudioRaw  = "audio/raw"

	MimeVideoH264 = "video/avc"
	MimeVideoH265 = "video/hevc"
	MimeVideoMp4v = "video/mp4v-es"
	MimeVideoMp2t = "video/mp2t"
	MimeVideoVp8  = "video/x-vnd.on2.vp8"

	MimeTextCea608 = "application/cea-608"
	MimeAppId3     = "application/id3"
)

// MimeTypeToTrackType 通过mime的顶级类型判断track的类型
func MimeTypeToTrackType(mimeType string) TrackType {
	if mimeType == "" {
		return TrackTypeUnknown
	}
	switch {
	case strings.HasPrefix(mimeType, "audio/"):
		return TrackTypeAudio
	case mimeType == MimeVideoMp2t:
		// 容器格式，内部的track类型需要解析后才知道
		return TrackTypeDefault
	case strings.HasPrefix(mimeType, "video/"):
		return TrackTypeVideo
	case strings.HasPrefix(mimeType, "text/"), mimeType == MimeTextCea608:
		return TrackTypeText
	case mimeType == MimeAppId3:
		return TrackTypeMetadata
	}
	return TrackTypeUnknown
}
