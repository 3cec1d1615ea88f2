// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtpfmt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/q191201771/lalplay/pkg/base"
)

type MediaType int

const (
	MediaTypeAudio MediaType = iota + 1
	MediaTypeVideo
	MediaTypeApplication
)

func (t MediaType) ReadableString() string {
	switch t {
	case MediaTypeAudio:
		return "audio"
	case MediaTypeVideo:
		return "video"
	case MediaTypeApplication:
		return "application"
	}
	return "unknown"
}

// rfc4566 中，audio的encoding parameters缺省时表示单声道
const DefaultAudioChannels = 1

// rtpmap中的encoding name
const (
	EncodingMpeg4Generic = "MPEG4-GENERIC"
	EncodingMp4aLatm     = "MP4A-LATM"
	EncodingH264         = "H264"
	EncodingH265         = "H265"
	EncodingMp2t         = "MP2T"
	EncodingPcma         = "PCMA"
	EncodingPcmu         = "PCMU"
	EncodingMpa          = "MPA"
	EncodingAc3          = "AC3"
	EncodingOpus         = "OPUS"
	EncodingL16          = "L16"
	EncodingMp4vEs       = "MP4V-ES"
	EncodingVp8          = "VP8"
)

// PayloadFormat 描述协商好的一路媒体负载
//
// 由会话协商阶段创建，之后对拉流核心只读，只有clock rate和channels可能在解析in-band配置时被填充
type PayloadFormat struct {
	mediaType      MediaType
	payloadType    int
	encoding       string
	sampleMimeType string
	clockRate      int
	channels       int
	ptime          int64
	maxPtime       int64
	frameRate      float64
	width          int
	height         int
	parameters     Parameters

	mu                sync.Mutex
	codecSpecificData [][]byte
	codecs            string
	codecsBuilt       bool
}

type PayloadFormatOption struct {
	PayloadType int
	Encoding    string

	// SampleMimeType 为空时，通过Encoding推导
	SampleMimeType string

	ClockRate int
	Channels  int

	// 单位毫秒，NoValue表示未设置
	Ptime    int64
	MaxPtime int64

	FrameRate float64
	Width     int
	Height    int

	Parameters []Parameter
}

type ModPayloadFormatOption func(option *PayloadFormatOption)

func NewAudioPayload(modOptions ...ModPayloadFormatOption) *PayloadFormat {
	option := defaultPayloadFormatOption()
	option.Channels = DefaultAudioChannels
	return newPayloadFormat(MediaTypeAudio, option, modOptions...)
}

func NewVideoPayload(modOptions ...ModPayloadFormatOption) *PayloadFormat {
	return newPayloadFormat(MediaTypeVideo, defaultPayloadFormatOption(), modOptions...)
}

func NewApplicationPayload(modOptions ...ModPayloadFormatOption) *PayloadFormat {
	return newPayloadFormat(MediaTypeApplication, defaultPayloadFormatOption(), modOptions...)
}

func defaultPayloadFormatOption() PayloadFormatOption {
	return PayloadFormatOption{
		PayloadType: base.NoValue,
		ClockRate:   base.NoValue,
		Channels:    base.NoValue,
		Ptime:       base.NoValue,
		MaxPtime:    base.NoValue,
		FrameRate:   base.NoValue,
		Width:       base.NoValue,
		Height:      base.NoValue,
	}
}

func newPayloadFormat(mediaType MediaType, option PayloadFormatOption, modOptions ...ModPayloadFormatOption) *PayloadFormat {
	for _, fn := range modOptions {
		fn(&option)
	}

	pf := &PayloadFormat{
		mediaType:      mediaType,
		payloadType:    option.PayloadType,
		encoding:       strings.ToUpper(option.Encoding),
		sampleMimeType: option.SampleMimeType,
		clockRate:      option.ClockRate,
		channels:       option.Channels,
		ptime:          option.Ptime,
		maxPtime:       option.MaxPtime,
		frameRate:      option.FrameRate,
		width:          option.Width,
		height:         option.Height,
	}
	if pf.sampleMimeType == "" {
		pf.sampleMimeType = EncodingToMimeType(pf.encoding)
	}
	for _, p := range option.Parameters {
		pf.parameters.Set(p.Name, p.Value)
	}
	return pf
}

// EncodingToMimeType 未知的encoding返回空字符串
func EncodingToMimeType(encoding string) string {
	switch strings.ToUpper(encoding) {
	case EncodingMpeg4Generic, EncodingMp4aLatm:
		return base.MimeAudioAac
	case EncodingH264:
		return base.MimeVideoH264
	case EncodingH265:
		return base.MimeVideoH265
	case EncodingMp2t:
		return base.MimeVideoMp2t
	case EncodingPcma:
		return base.MimeAudioPcma
	case EncodingPcmu:
		return base.MimeAudioPcmu
	case EncodingMpa:
		return base.MimeAudioMpeg
	case EncodingAc3:
		return base.MimeAudioAc3
	case EncodingOpus:
		return base.MimeAudioOpus
	case EncodingL16:
		return base.MimeAudioRaw
	case EncodingMp4vEs:
		return base.MimeVideoMp4v
	case EncodingVp8:
		return base.MimeVideoVp8
	}
	return ""
}

func (pf *PayloadFormat) MediaType() MediaType {
	return pf.mediaType
}

func (pf *PayloadFormat) PayloadType() int {
	return pf.payloadType
}

func (pf *PayloadFormat) Encoding() string {
	return pf.encoding
}

func (pf *PayloadFormat) SampleMimeType() string {
	return pf.sampleMimeType
}

func (pf *PayloadFormat) ClockRate() int {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.clockRate
}

func (pf *PayloadFormat) Channels() int {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.channels
}

func (pf *PayloadFormat) Ptime() int64 {
	return pf.ptime
}

func (pf *PayloadFormat) MaxPtime() int64 {
	return pf.maxPtime
}

func (pf *PayloadFormat) FrameRate() float64 {
	return pf.frameRate
}

func (pf *PayloadFormat) Width() int {
	return pf.width
}

func (pf *PayloadFormat) Height() int {
	return pf.height
}

func (pf *PayloadFormat) Parameters() []Parameter {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.parameters.Items()
}

func (pf *PayloadFormat) Parameter(name string) string {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.parameters.Value(name)
}

func (pf *PayloadFormat) HasParameter(name string) bool {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.parameters.Contains(name)
}

// SetParameter 修改参数后，之前推导出的codec相关数据失效，下次调用时重新计算
func (pf *PayloadFormat) SetParameter(name, value string) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	pf.parameters.Set(name, value)
	pf.codecSpecificData = nil
	pf.codecs = ""
	pf.codecsBuilt = false
}

func (pf *PayloadFormat) IsAac() bool {
	return pf.sampleMimeType == base.MimeAudioAac
}

// Format 转换成样本格式，InitializationData和Codecs使用推导出的结果
func (pf *PayloadFormat) Format(id string) base.Format {
	csd := pf.BuildCodecSpecificData()
	codecs := pf.BuildCodecProfileLevel()

	f := base.NewFormat(id, pf.sampleMimeType)
	f.Codecs = codecs
	switch pf.mediaType {
	case MediaTypeAudio:
		f.SampleRate = pf.ClockRate()
		f.ChannelCount = pf.Channels()
	case MediaTypeVideo:
		f.Width = pf.width
		f.Height = pf.height
		f.FrameRate = pf.frameRate
	}
	// 只有一个空buffer时，表示没有可用的初始化数据
	if !(len(csd) == 1 && len(csd[0]) == 0) {
		f.InitializationData = csd
	}
	return f
}

func (pf *PayloadFormat) String() string {
	return fmt.Sprintf("%s pt=%d %s/%d/%d mime=%s ptime=%d maxptime=%d params=%d",
		pf.mediaType.ReadableString(), pf.payloadType, pf.encoding, pf.ClockRate(), pf.Channels(),
		pf.sampleMimeType, pf.ptime, pf.maxPtime, len(pf.Parameters()))
}

// ----- option helpers ------------------------------------------------------------------------------------------------

func WithPayloadType(pt int) ModPayloadFormatOption {
	return func(option *PayloadFormatOption) {
		option.PayloadType = pt
	}
}

func WithEncoding(encoding string) ModPayloadFormatOption {
	return func(option *PayloadFormatOption) {
		option.Encoding = encoding
	}
}

func WithClockRate(clockRate int) ModPayloadFormatOption {
	return func(option *PayloadFormatOption) {
		option.ClockRate = clockRate
	}
}

func WithChannels(channels int) ModPayloadFormatOption {
	return func(option *PayloadFormatOption) {
		option.Channels = channels
	}
}

func WithPtime(ptime int64) ModPayloadFormatOption {
	return func(option *PayloadFormatOption) {
		option.Ptime = ptime
	}
}

func WithMaxPtime(maxPtime int64) ModPayloadFormatOption {
	return func(option *PayloadFormatOption) {
		option.MaxPtime = maxPtime
	}
}

func WithParameter(name, value string) ModPayloadFormatOption {
	return func(option *PayloadFormatOption) {
		option.Parameters = append(option.Parameters, Parameter{Name: name, Value: value})
	}
}
