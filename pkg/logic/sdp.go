// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"fmt"
	"os"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/rtpfmt"
)

func LoadPayloadFormatFile(sdpFile string, rawUrl string) (*rtpfmt.PayloadFormat, error) {
	rawContent, err := os.ReadFile(sdpFile)
	if err != nil {
		return nil, err
	}
	return LoadPayloadFormat(rawContent, rawUrl)
}

// LoadPayloadFormat 从sdp中找到<rawUrl>对应的m=段
//
// a=control与url的最后一段匹配时使用该m=段，都不匹配时使用第一个
//
func LoadPayloadFormat(rawSdp []byte, rawUrl string) (*rtpfmt.PayloadFormat, error) {
	sd, err := rtpfmt.ParseSessionDescription(rawSdp)
	if err != nil {
		return nil, err
	}
	if len(sd.MediaDescriptions) == 0 {
		return nil, fmt.Errorf("%w. no media in sdp", base.ErrConfig)
	}

	urlCtx, err := base.ParseRtspUrl(rawUrl)
	if err != nil {
		return nil, err
	}

	md := sd.MediaDescriptions[0]
	for _, item := range sd.MediaDescriptions {
		if matchControl(item, urlCtx) {
			md = item
			break
		}
	}
	return rtpfmt.FromMediaDescription(md, -1)
}

func matchControl(md *sdp.MediaDescription, urlCtx base.RtspUrlContext) bool {
	control, ok := md.Attribute("control")
	if !ok || control == "" || control == "*" {
		return false
	}
	if strings.HasPrefix(control, "rtsp://") {
		return control == urlCtx.RawUrlWithoutUserInfo
	}
	return control == urlCtx.LastItemOfPath
}
