// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtpfmt

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/q191201771/lalplay/pkg/aac"
	"github.com/q191201771/lalplay/pkg/base"
)

var annexbStartCode = []byte{0x0, 0x0, 0x0, 0x1}

// BuildCodecSpecificData 推导解码器初始化数据
//
// 结果只计算一次并缓存，直到SetParameter修改参数。
// 返回值至少包含一个buffer，输入异常时退化为一个空buffer，不返回错误。
//
func (pf *PayloadFormat) BuildCodecSpecificData() [][]byte {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if pf.codecSpecificData != nil {
		return pf.codecSpecificData
	}

	var csd [][]byte
	switch pf.sampleMimeType {
	case base.MimeAudioAac:
		csd = pf.buildAacCsd()
	case base.MimeVideoH264:
		csd = buildAnnexbCsd(strings.Split(pf.parameters.Value(ParamSpropParameterSets), ","))
	case base.MimeVideoH265:
		csd = buildAnnexbCsd([]string{
			pf.parameters.Value(ParamSpropVps),
			pf.parameters.Value(ParamSpropSps),
			pf.parameters.Value(ParamSpropPps),
		})
	}
	if len(csd) == 0 {
		csd = [][]byte{{}}
	}
	pf.codecSpecificData = csd
	return csd
}

// BuildCodecProfileLevel 通过profile-level-id推导codecs字符串，没有该参数时返回空字符串
//
// e.g. AAC profile-level-id=15 -> mp4a.40.15, H264 profile-level-id=42e01f -> avc1.42E01F
//
func (pf *PayloadFormat) BuildCodecProfileLevel() string {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if pf.codecsBuilt {
		return pf.codecs
	}
	pf.codecsBuilt = true

	pli, ok := pf.parameters.Get(ParamProfileLevelId)
	if !ok || pli == "" {
		return pf.codecs
	}
	switch pf.sampleMimeType {
	case base.MimeAudioAac:
		pf.codecs = "mp4a.40." + pli
	case base.MimeVideoH264:
		if _, err := hex.DecodeString(pli); err == nil && len(pli) == 6 {
			pf.codecs = "avc1." + strings.ToUpper(pli)
		}
	}
	return pf.codecs
}

// 调用方持有锁
func (pf *PayloadFormat) buildAacCsd() [][]byte {
	if pf.clockRate <= 0 || pf.channels <= 0 {
		config, ok := pf.parameters.Get(ParamConfig)
		if !ok {
			return nil
		}
		b, err := hex.DecodeString(config)
		if err != nil {
			Log.Warnf("decode aac config failed. config=%s, err=%+v", config, err)
			return nil
		}
		rate, ch, err := aac.ParseAscRateAndChannels(b)
		if err != nil {
			Log.Warnf("parse aac config failed. config=%s, err=%+v", config, err)
			return nil
		}
		if pf.clockRate <= 0 {
			pf.clockRate = rate
		}
		if pf.channels <= 0 {
			pf.channels = ch
		}
	}

	asc, err := aac.MakeAacLcAsc(pf.clockRate, pf.channels)
	if err != nil {
		Log.Warnf("make aac asc failed. rate=%d, channels=%d, err=%+v", pf.clockRate, pf.channels, err)
		return nil
	}
	return [][]byte{asc}
}

// 每个base64编码的nalu前面加上annexb的起始码
func buildAnnexbCsd(items []string) [][]byte {
	var ret [][]byte
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		nal, err := base64.StdEncoding.DecodeString(item)
		if err != nil {
			Log.Warnf("decode sprop failed. item=%s, err=%+v", item, err)
			return nil
		}
		b := make([]byte, 0, len(annexbStartCode)+len(nal))
		b = append(b, annexbStartCode...)
		b = append(b, nal...)
		ret = append(ret, b)
	}
	return ret
}
