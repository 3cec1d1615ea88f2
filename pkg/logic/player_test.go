// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/q191201771/lalplay/pkg/aac"
	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/logic"
	"github.com/q191201771/lalplay/pkg/rtsp"
	"github.com/q191201771/lalplay/pkg/upstream"
	"github.com/q191201771/naza/pkg/assert"
)

const waitTimeout = 5 * time.Second

func waitUntil(t *testing.T, cond func() bool, msg string) {
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("wait timeout. %s", msg)
}

// makeAdtsChunk 若干个adts帧，长度足够格式探测使用
func makeAdtsChunk(t *testing.T, frameCount int) []byte {
	asc, err := aac.MakeAacLcAsc(44100, 2)
	assert.Equal(t, nil, err)
	ascCtx, err := aac.NewAscContext(asc)
	assert.Equal(t, nil, err)

	var out []byte
	for i := 0; i < frameCount; i++ {
		frame := make([]byte, 100)
		frame[0] = byte(i)
		out = append(out, ascCtx.PackAdtsHeader(len(frame))...)
		out = append(out, frame...)
	}
	return out
}

func newRawConfig(t *testing.T, lowerTransport string) *logic.Config {
	config, err := logic.LoadConfRawContent([]byte(fmt.Sprintf(`{
  "log": {"level": 1, "is_to_stdout": true, "filename": ""},
  "stream": {
    "url": "rtsp://127.0.0.1/live/test110/trackID=0",
    "protocol": "RAW",
    "lower_transport": "%s"
  },
  "loader": {"tcp_read_interval_ms": 0, "udp_read_timeout_ms": 2000},
  "stat_interval_sec": 1
}`, lowerTransport)))
	assert.Equal(t, nil, err)
	return config
}

func runPlayer(p *logic.Player) (context.CancelFunc, chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.RunLoop(ctx)
	}()
	return cancel, done
}

func hasAacSamples(p *logic.Player) bool {
	stats := p.Stats()
	return len(stats) == 1 && stats[0].SampleCount > 0 && stats[0].Format != nil &&
		stats[0].Format.SampleMimeType == base.MimeAudioAac
}

func TestPlayerTcp(t *testing.T) {
	p := logic.NewPlayer(newRawConfig(t, rtsp.LowerTransportTcp), nil)
	p.Start()
	assert.Equal(t, rtsp.SessionStatePlaying, p.Session().State())
	cancel, done := runPlayer(p)

	client, server := net.Pipe()
	feedDone := make(chan error, 1)
	go func() {
		feedDone <- p.FeedInterleaved(server)
	}()

	chunk := makeAdtsChunk(t, 10)
	frame, err := upstream.PackInterleavedFrame(0, chunk)
	assert.Equal(t, nil, err)
	rtcpFrame, err := upstream.PackInterleavedFrame(1, []byte{0x80, 0xC8})
	assert.Equal(t, nil, err)

	// 数据源异步打开，打开之前写入的数据被丢弃，所以持续写入
	waitUntil(t, func() bool {
		_, _ = client.Write([]byte("RTSP/1.0 200 OK\r\n\r\n"))
		_, _ = client.Write(rtcpFrame)
		_, _ = client.Write(frame)
		return hasAacSamples(p)
	}, "aac samples")

	stat := p.Stats()[0]
	assert.Equal(t, 44100, stat.Format.SampleRate)
	assert.Equal(t, 2, stat.Format.ChannelCount)
	assert.Equal(t, stat.SampleCount, stat.KeyFrameCount)
	assert.Equal(t, stat.SampleCount*100, stat.ByteCount)

	p.Stop()
	assert.Equal(t, rtsp.SessionStateStopped, p.Session().State())

	_ = client.Close()
	assert.IsNotNil(t, <-feedDone)

	cancel()
	assert.Equal(t, nil, <-done)
	p.Dispose()
}

func TestPlayerUdp(t *testing.T) {
	p := logic.NewPlayer(newRawConfig(t, rtsp.LowerTransportUdp), nil)
	p.Start()
	cancel, done := runPlayer(p)

	// 数据源打开后，player自动开始播放
	waitUntil(t, func() bool {
		return p.Wrapper().LocalPort() != 0 && p.Session().State() == rtsp.SessionStatePlaying
	}, "prepare started")

	conn, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", p.Wrapper().LocalPort()))
	assert.Equal(t, nil, err)
	defer conn.Close()

	chunk := makeAdtsChunk(t, 10)
	waitUntil(t, func() bool {
		_, _ = conn.Write(chunk)
		return hasAacSamples(p)
	}, "aac samples")

	p.Pause()
	assert.Equal(t, rtsp.SessionStatePaused, p.Session().State())
	p.Resume()
	assert.Equal(t, rtsp.SessionStatePlaying, p.Session().State())

	cancel()
	assert.Equal(t, nil, <-done)
	p.Dispose()
}

func TestPlayerPrepareFailure(t *testing.T) {
	p := logic.NewPlayer(newRawConfig(t, rtsp.LowerTransportTcp), nil)
	p.Start()
	cancel, done := runPlayer(p)
	defer cancel()

	// ts和adts都探测失败
	frame, err := upstream.PackInterleavedFrame(0, make([]byte, 2048))
	assert.Equal(t, nil, err)

	var runErr error
	waitUntil(t, func() bool {
		_ = p.FeedInterleaved(&onceReader{b: frame})
		select {
		case runErr = <-done:
			return true
		default:
			return false
		}
	}, "prepare failure")
	assert.Equal(t, true, errors.Is(runErr, base.ErrPrepareFailure))
	p.Dispose()
}

type onceReader struct {
	b []byte
}

func (r *onceReader) Read(b []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, errors.New("eof")
	}
	n := copy(b, r.b)
	r.b = r.b[n:]
	return n, nil
}
