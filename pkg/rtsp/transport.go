// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtsp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/q191201771/lalplay/pkg/base"
)

// rfc2326 12.39 Transport

const (
	TransportProtocolRtp  = "RTP/AVP"
	TransportProtocolMp2t = "MP2T"
	TransportProtocolRaw  = "RAW"

	LowerTransportUdp = "UDP"
	LowerTransportTcp = "TCP"
)

const (
	transportFieldSource      = "source"
	transportFieldDestination = "destination"
	transportFieldServerPort  = "server_port"
	transportFieldClientPort  = "client_port"
	transportFieldInterleaved = "interleaved"
	transportFieldSsrc        = "ssrc"
)

// Transport 协商好的传输参数
type Transport struct {
	TransportProtocol string // RTP/AVP, MP2T, RAW
	LowerTransport    string // UDP, TCP

	Source      string
	Destination string

	ServerPort          []int
	ClientPort          []int
	InterleavedChannels []int

	Ssrc string // 16进制
}

func (t Transport) IsRtp() bool {
	return t.TransportProtocol == TransportProtocolRtp
}

func (t Transport) IsUdp() bool {
	return t.LowerTransport == LowerTransportUdp
}

// SsrcValue 解析16进制的ssrc
func (t Transport) SsrcValue() (uint32, bool) {
	if t.Ssrc == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(t.Ssrc, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

func (t Transport) String() string {
	return fmt.Sprintf("%s/%s;source=%s;destination=%s;server_port=%v;interleaved=%v;ssrc=%s",
		t.TransportProtocol, t.LowerTransport, t.Source, t.Destination, t.ServerPort, t.InterleavedChannels, t.Ssrc)
}

// ParseTransport 解析setup response中的Transport header
//
// 例如 `RTP/AVP/TCP;unicast;interleaved=0-1;ssrc=1A2B3C4D`
//      `RTP/AVP;unicast;source=10.0.0.1;client_port=5000-5001;server_port=6970-6971`
//      `MP2T/H2221/UDP;unicast;destination=10.0.0.2;client_port=5000`
//      `RAW/RAW/UDP;unicast;client_port=5000`
//
func ParseTransport(s string) (t Transport, err error) {
	items := strings.Split(strings.TrimSpace(s), ";")
	if len(items) == 0 || items[0] == "" {
		return t, fmt.Errorf("%w. transport=%s", base.ErrRtspUnsupportedTransport, s)
	}

	spec := strings.Split(strings.ToUpper(items[0]), "/")
	switch spec[0] {
	case "RTP":
		t.TransportProtocol = TransportProtocolRtp
	case TransportProtocolMp2t:
		t.TransportProtocol = TransportProtocolMp2t
	case TransportProtocolRaw:
		t.TransportProtocol = TransportProtocolRaw
	default:
		return t, fmt.Errorf("%w. transport=%s", base.ErrRtspUnsupportedTransport, s)
	}
	t.LowerTransport = LowerTransportUdp
	if len(spec) > 2 && spec[len(spec)-1] == LowerTransportTcp {
		t.LowerTransport = LowerTransportTcp
	}

	for _, item := range items[1:] {
		kv := strings.SplitN(item, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, value := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		switch key {
		case transportFieldSource:
			t.Source = value
		case transportFieldDestination:
			t.Destination = value
		case transportFieldSsrc:
			t.Ssrc = value
		case transportFieldServerPort:
			if t.ServerPort, err = parseRange(value); err != nil {
				return t, err
			}
		case transportFieldClientPort:
			if t.ClientPort, err = parseRange(value); err != nil {
				return t, err
			}
		case transportFieldInterleaved:
			if t.InterleavedChannels, err = parseRange(value); err != nil {
				return t, err
			}
			t.LowerTransport = LowerTransportTcp
		}
	}
	return t, nil
}

// parseRange `a` 或者 `a-b`
func parseRange(v string) ([]int, error) {
	items := strings.Split(v, "-")
	if len(items) > 2 {
		return nil, fmt.Errorf("%w. range=%s", base.ErrRtspUnsupportedTransport, v)
	}
	ret := make([]int, 0, len(items))
	for _, item := range items {
		n, err := strconv.Atoi(item)
		if err != nil {
			return nil, err
		}
		ret = append(ret, n)
	}
	return ret, nil
}
