// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/logic"
	"github.com/q191201771/lalplay/pkg/rtsp"
	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazalog"
)

func TestLoadConfRawContent(t *testing.T) {
	config, err := logic.LoadConfRawContent([]byte(`{
  "stream": {
    "url": "rtsp://127.0.0.1:8554/live/test110/trackID=0",
    "protocol": "MP2T",
    "lower_transport": "TCP"
  },
  "loader": {
    "punch_count": 5
  }
}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, nazalog.LevelDebug, config.Log.Level)
	assert.Equal(t, "./logs/lalplay.log", config.Log.Filename)
	assert.Equal(t, rtsp.TransportProtocolMp2t, config.Stream.Protocol)
	assert.Equal(t, rtsp.LowerTransportTcp, config.Stream.LowerTransport)
	assert.Equal(t, []int{0, 1}, config.Stream.InterleavedChannels)
	assert.Equal(t, 5, config.Loader.PunchCount)
	assert.Equal(t, base.UdpReadTimeoutMs, config.Loader.UdpReadTimeoutMs)
	assert.Equal(t, rtsp.DefaultMinLoadableRetryCount, config.Loader.MinRetryCount)
	assert.Equal(t, 5, config.StatIntervalSec)

	transport := config.Stream.Transport()
	assert.Equal(t, false, transport.IsUdp())
	assert.Equal(t, false, transport.IsRtp())
}

func TestLoadConfRawContentDefaultTransport(t *testing.T) {
	config, err := logic.LoadConfRawContent([]byte(`{
  "stream": {"url": "rtsp://127.0.0.1/live/test110", "server_port": [6970, 6971]},
  "sdp_file": "./conf/test.sdp",
  "log": {"level": 3}
}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, nazalog.LevelWarn, config.Log.Level)
	assert.Equal(t, rtsp.TransportProtocolRtp, config.Stream.Protocol)
	assert.Equal(t, rtsp.LowerTransportUdp, config.Stream.LowerTransport)
	assert.Equal(t, 0, len(config.Stream.InterleavedChannels))
	assert.Equal(t, []int{6970, 6971}, config.Stream.Transport().ServerPort)
}

func TestLoadConfRawContentInvalid(t *testing.T) {
	golden := []string{
		`{}`,
		`{"stream": {"url": "rtmp://127.0.0.1/live/test110", "protocol": "RAW"}}`,
		`{"stream": {"url": "rtsp://127.0.0.1/live/test110", "protocol": "SRT"}}`,
		`{"stream": {"url": "rtsp://127.0.0.1/live/test110", "protocol": "RAW", "lower_transport": "QUIC"}}`,
		`{"stream": {"url": "rtsp://127.0.0.1/live/test110"}}`,
		`{"stream": {"url": "rtsp://127.0.0.1/live/test110", "protocol": "RAW"}, "stat_interval_sec": 0}`,
	}
	for _, item := range golden {
		_, err := logic.LoadConfRawContent([]byte(item))
		assert.Equal(t, true, errors.Is(err, base.ErrConfig), item)
	}

	_, err := logic.LoadConfRawContent([]byte(`{"stream":`))
	assert.IsNotNil(t, err)
}

func TestLoadConfFile(t *testing.T) {
	_, err := logic.LoadConfFile(filepath.Join(t.TempDir(), "not_exist.conf.json"))
	assert.IsNotNil(t, err)

	filename := filepath.Join(t.TempDir(), "lalplay.conf.json")
	err = os.WriteFile(filename, []byte(`{"stream": {"url": "rtsp://127.0.0.1/live/test110", "protocol": "RAW"}}`), 0644)
	assert.Equal(t, nil, err)
	config, err := logic.LoadConfFile(filename)
	assert.Equal(t, nil, err)
	assert.Equal(t, rtsp.TransportProtocolRaw, config.Stream.Protocol)
}
