// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtpfmt

import "strings"

// rfc3640, rfc6184, rfc7798 中fmtp的字段名
const (
	ParamConfig             = "config"
	ParamProfileLevelId     = "profile-level-id"
	ParamMode               = "mode"
	ParamSizeLength         = "sizelength"
	ParamIndexLength        = "indexlength"
	ParamIndexDeltaLength   = "indexdeltalength"
	ParamPacketizationMode  = "packetization-mode"
	ParamSpropParameterSets = "sprop-parameter-sets"
	ParamSpropVps           = "sprop-vps"
	ParamSpropSps           = "sprop-sps"
	ParamSpropPps           = "sprop-pps"
)

type Parameter struct {
	Name  string
	Value string
}

// Parameters 有序的name/value集合，保持插入时的顺序，name大小写不敏感
type Parameters struct {
	items []Parameter
}

// ParseFmtpParameters 解析fmtp中pt之后的部分
//
// e.g. "streamtype=5; profile-level-id=15; mode=AAC-hbr; config=1210"
//
func ParseFmtpParameters(s string) Parameters {
	var ps Parameters
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		kv := strings.SplitN(item, "=", 2)
		if len(kv) == 2 {
			ps.Set(strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1]))
		} else {
			ps.Set(kv[0], "")
		}
	}
	return ps
}

// Set name已存在时覆盖原值，并保持原来的位置
func (ps *Parameters) Set(name, value string) {
	for i := range ps.items {
		if strings.EqualFold(ps.items[i].Name, name) {
			ps.items[i].Value = value
			return
		}
	}
	ps.items = append(ps.items, Parameter{Name: name, Value: value})
}

func (ps *Parameters) Contains(name string) bool {
	_, ok := ps.Get(name)
	return ok
}

func (ps *Parameters) Value(name string) string {
	v, _ := ps.Get(name)
	return v
}

func (ps *Parameters) Get(name string) (string, bool) {
	for _, item := range ps.items {
		if strings.EqualFold(item.Name, name) {
			return item.Value, true
		}
	}
	return "", false
}

func (ps *Parameters) Len() int {
	return len(ps.items)
}

// Items 返回的切片为拷贝
func (ps *Parameters) Items() []Parameter {
	ret := make([]Parameter, len(ps.items))
	copy(ret, ps.items)
	return ret
}
