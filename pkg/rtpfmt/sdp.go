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
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/q191201771/lalplay/pkg/base"
)

// rfc3551 中的静态负载类型，没有a=rtpmap时使用
var staticPayloadTypes = map[int]struct {
	encoding  string
	clockRate int
	channels  int
}{
	0:  {EncodingPcmu, 8000, 1},
	8:  {EncodingPcma, 8000, 1},
	14: {EncodingMpa, 90000, base.NoValue},
	33: {EncodingMp2t, 90000, base.NoValue},
}

// ParseSessionDescription 解析完整的sdp文本
func ParseSessionDescription(raw []byte) (*sdp.SessionDescription, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal(raw); err != nil {
		return nil, err
	}
	return &sd, nil
}

// FromMediaDescription 通过sdp中的一个m=段构造PayloadFormat
//
// @param payloadType: m=行中的fmt，传入-1时使用m=行中的第一个
//
func FromMediaDescription(md *sdp.MediaDescription, payloadType int) (*PayloadFormat, error) {
	if md == nil {
		return nil, fmt.Errorf("%w. media description is nil", base.ErrRtpFmt)
	}

	if payloadType < 0 {
		if len(md.MediaName.Formats) == 0 {
			return nil, fmt.Errorf("%w. no format in media line", base.ErrRtpFmt)
		}
		pt, err := strconv.Atoi(md.MediaName.Formats[0])
		if err != nil {
			return nil, fmt.Errorf("%w. invalid format. fmt=%s", base.ErrRtpFmt, md.MediaName.Formats[0])
		}
		payloadType = pt
	}

	var mods []ModPayloadFormatOption
	mods = append(mods, WithPayloadType(payloadType))

	encoding, clockRate, channels, ok := findRtpmap(md, payloadType)
	if !ok {
		st, exist := staticPayloadTypes[payloadType]
		if !exist {
			return nil, fmt.Errorf("%w. rtpmap not found. pt=%d", base.ErrRtpFmt, payloadType)
		}
		encoding, clockRate, channels = st.encoding, st.clockRate, st.channels
	}
	mods = append(mods, WithEncoding(encoding), WithClockRate(clockRate))
	if channels > 0 {
		mods = append(mods, WithChannels(channels))
	}

	for _, attr := range md.Attributes {
		switch attr.Key {
		case "fmtp":
			pt, params, ok := splitPayloadTypePrefix(attr.Value)
			if !ok || pt != payloadType {
				continue
			}
			ps := ParseFmtpParameters(params)
			for _, p := range ps.Items() {
				mods = append(mods, WithParameter(p.Name, p.Value))
			}
		case "ptime":
			if v, err := strconv.ParseInt(strings.TrimSpace(attr.Value), 10, 64); err == nil {
				mods = append(mods, WithPtime(v))
			}
		case "maxptime":
			if v, err := strconv.ParseInt(strings.TrimSpace(attr.Value), 10, 64); err == nil {
				mods = append(mods, WithMaxPtime(v))
			}
		case "framerate":
			if v, err := strconv.ParseFloat(strings.TrimSpace(attr.Value), 64); err == nil {
				mods = append(mods, func(option *PayloadFormatOption) {
					option.FrameRate = v
				})
			}
		case "x-dimensions", "cliprect":
			if w, h, ok := parseDimensions(attr.Key, attr.Value); ok {
				mods = append(mods, func(option *PayloadFormatOption) {
					option.Width = w
					option.Height = h
				})
			}
		}
	}

	switch md.MediaName.Media {
	case "audio":
		return NewAudioPayload(mods...), nil
	case "video":
		return NewVideoPayload(mods...), nil
	case "application":
		return NewApplicationPayload(mods...), nil
	}
	return nil, fmt.Errorf("%w. unsupported media. media=%s", base.ErrRtpFmt, md.MediaName.Media)
}

// a=rtpmap:96 MPEG4-GENERIC/44100/2
func findRtpmap(md *sdp.MediaDescription, payloadType int) (encoding string, clockRate int, channels int, ok bool) {
	channels = base.NoValue
	for _, attr := range md.Attributes {
		if attr.Key != "rtpmap" {
			continue
		}
		pt, rest, ok2 := splitPayloadTypePrefix(attr.Value)
		if !ok2 || pt != payloadType {
			continue
		}
		items := strings.Split(rest, "/")
		if len(items) < 2 {
			return "", 0, base.NoValue, false
		}
		rate, err := strconv.Atoi(items[1])
		if err != nil {
			return "", 0, base.NoValue, false
		}
		if len(items) > 2 {
			if ch, err := strconv.Atoi(items[2]); err == nil {
				channels = ch
			}
		}
		return items[0], rate, channels, true
	}
	return "", 0, base.NoValue, false
}

func splitPayloadTypePrefix(v string) (pt int, rest string, ok bool) {
	v = strings.TrimSpace(v)
	idx := strings.IndexByte(v, ' ')
	if idx == -1 {
		return 0, "", false
	}
	pt, err := strconv.Atoi(v[:idx])
	if err != nil {
		return 0, "", false
	}
	return pt, strings.TrimSpace(v[idx+1:]), true
}

// a=x-dimensions:1920,1080
// a=cliprect:0,0,1080,1920
func parseDimensions(key, v string) (width int, height int, ok bool) {
	items := strings.Split(strings.TrimSpace(v), ",")
	var err error
	switch {
	case key == "x-dimensions" && len(items) == 2:
		if width, err = strconv.Atoi(items[0]); err != nil {
			return 0, 0, false
		}
		if height, err = strconv.Atoi(items[1]); err != nil {
			return 0, 0, false
		}
		return width, height, true
	case key == "cliprect" && len(items) == 4:
		if height, err = strconv.Atoi(items[2]); err != nil {
			return 0, 0, false
		}
		if width, err = strconv.Atoi(items[3]); err != nil {
			return 0, 0, false
		}
		return width, height, true
	}
	return 0, 0, false
}
