// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/rtsp"
	"github.com/q191201771/naza/pkg/nazajson"
	"github.com/q191201771/naza/pkg/nazalog"
)

type Config struct {
	Log             nazalog.Option `json:"log"`
	Stream          StreamConfig   `json:"stream"`
	Session         SessionConfig  `json:"session"`
	SdpFile         string         `json:"sdp_file"`
	Loader          LoaderConfig   `json:"loader"`
	StatIntervalSec int            `json:"stat_interval_sec"`
}

type StreamConfig struct {
	Url                 string `json:"url"`
	Protocol            string `json:"protocol"`        // RTP/AVP | MP2T | RAW
	LowerTransport      string `json:"lower_transport"` // UDP | TCP
	ServerPort          []int  `json:"server_port"`
	Source              string `json:"source"`
	Destination         string `json:"destination"`
	Ssrc                string `json:"ssrc"`
	Muxed               bool   `json:"muxed"`
	InterleavedChannels []int  `json:"interleaved_channels"`

	// InterleavedAddr tcp模式下读取interleaved数据的地址，为空时使用url中的地址
	InterleavedAddr string `json:"interleaved_addr"`
}

type SessionConfig struct {
	NatRequired   bool `json:"nat_required"`
	RtcpSupported bool `json:"rtcp_supported"`
	RtcpMuxed     bool `json:"rtcp_muxed"`
}

type LoaderConfig struct {
	UdpReadTimeoutMs  int `json:"udp_read_timeout_ms"`
	TcpReadIntervalMs int `json:"tcp_read_interval_ms"`
	MinRetryCount     int `json:"min_retry_count"`
	PunchCount        int `json:"punch_count"`
	MaxUdpPacketSize  int `json:"max_udp_packet_size"`
}

// Transport 配置中的传输参数，格式与rtsp Transport头一致
func (c StreamConfig) Transport() rtsp.Transport {
	return rtsp.Transport{
		TransportProtocol:   c.Protocol,
		LowerTransport:      c.LowerTransport,
		Source:              c.Source,
		Destination:         c.Destination,
		ServerPort:          c.ServerPort,
		InterleavedChannels: c.InterleavedChannels,
		Ssrc:                c.Ssrc,
	}
}

func LoadConfFile(confFile string) (*Config, error) {
	rawContent, err := os.ReadFile(confFile)
	if err != nil {
		return nil, err
	}
	return LoadConfRawContent(rawContent)
}

func LoadConfRawContent(rawContent []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(rawContent, &config); err != nil {
		return nil, err
	}

	j, err := nazajson.New(rawContent)
	if err != nil {
		return nil, err
	}

	// 配置不存在时，设置默认值
	if !j.Exist("log.level") {
		config.Log.Level = nazalog.LevelDebug
	}
	if !j.Exist("log.filename") {
		config.Log.Filename = "./logs/lalplay.log"
	}
	if !j.Exist("log.is_to_stdout") {
		config.Log.IsToStdout = true
	}
	if !j.Exist("log.is_rotate_daily") {
		config.Log.IsRotateDaily = true
	}
	if !j.Exist("log.short_file_flag") {
		config.Log.ShortFileFlag = true
	}
	if !j.Exist("log.timestamp_flag") {
		config.Log.TimestampFlag = true
	}
	if !j.Exist("log.timestamp_with_ms_flag") {
		config.Log.TimestampWithMsFlag = true
	}
	if !j.Exist("log.level_flag") {
		config.Log.LevelFlag = true
	}
	if !j.Exist("log.assert_behavior") {
		config.Log.AssertBehavior = nazalog.AssertError
	}

	if !j.Exist("stream.protocol") {
		config.Stream.Protocol = rtsp.TransportProtocolRtp
	}
	if !j.Exist("stream.lower_transport") {
		config.Stream.LowerTransport = rtsp.LowerTransportUdp
	}
	if !j.Exist("stream.interleaved_channels") && config.Stream.LowerTransport == rtsp.LowerTransportTcp {
		config.Stream.InterleavedChannels = []int{0, 1}
	}

	if !j.Exist("loader.udp_read_timeout_ms") {
		config.Loader.UdpReadTimeoutMs = base.UdpReadTimeoutMs
	}
	if !j.Exist("loader.tcp_read_interval_ms") {
		config.Loader.TcpReadIntervalMs = base.TcpReadIntervalMs
	}
	if !j.Exist("loader.min_retry_count") {
		config.Loader.MinRetryCount = rtsp.DefaultMinLoadableRetryCount
	}
	if !j.Exist("loader.punch_count") {
		config.Loader.PunchCount = base.PunchPacketSendTimes
	}
	if !j.Exist("loader.max_udp_packet_size") {
		config.Loader.MaxUdpPacketSize = base.UdpMaxPacketSize
	}
	if !j.Exist("stat_interval_sec") {
		config.StatIntervalSec = defaultStatIntervalSec
	}

	if err := config.check(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) check() error {
	if c.Stream.Url == "" {
		return fmt.Errorf("%w. stream.url is empty", base.ErrConfig)
	}
	if _, err := base.ParseRtspUrl(c.Stream.Url); err != nil {
		return fmt.Errorf("%w. stream.url=%s, err=%v", base.ErrConfig, c.Stream.Url, err)
	}
	switch c.Stream.Protocol {
	case rtsp.TransportProtocolRtp, rtsp.TransportProtocolMp2t, rtsp.TransportProtocolRaw:
	default:
		return fmt.Errorf("%w. stream.protocol=%s", base.ErrConfig, c.Stream.Protocol)
	}
	switch c.Stream.LowerTransport {
	case rtsp.LowerTransportUdp, rtsp.LowerTransportTcp:
	default:
		return fmt.Errorf("%w. stream.lower_transport=%s", base.ErrConfig, c.Stream.LowerTransport)
	}
	if c.Stream.Protocol == rtsp.TransportProtocolRtp && c.SdpFile == "" {
		return fmt.Errorf("%w. sdp_file is required by %s", base.ErrConfig, rtsp.TransportProtocolRtp)
	}
	if c.StatIntervalSec <= 0 {
		return fmt.Errorf("%w. stat_interval_sec=%d", base.ErrConfig, c.StatIntervalSec)
	}
	return nil
}
