// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package extractor

import (
	"io"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/rtprtcp"
)

var _ Extractor = &RtpMp2tExtractor{}

// RtpMp2tExtractor rtp负载为mpegts(rfc2250)，先按seq排序拼接出ts字节流，再交给ts解析
type RtpMp2tExtractor struct {
	core   *tsDemuxCore
	feeder *rtpTsFeeder
}

func NewRtpMp2tExtractor() *RtpMp2tExtractor {
	return &RtpMp2tExtractor{
		core: newTsDemuxCore(),
	}
}

func (e *RtpMp2tExtractor) Sniff(input Input) (bool, error) {
	return false, nil
}

func (e *RtpMp2tExtractor) Init(output Output) {
	e.core.init(output)
}

func (e *RtpMp2tExtractor) Read(input Input, seekPosition *PositionHolder) (int, error) {
	e.core.maybeBindReader(input, func() io.Reader {
		e.feeder = newRtpTsFeeder(input)
		return e.feeder
	})
	return e.core.readOne()
}

func (e *RtpMp2tExtractor) Seek(position int64, timeUs int64) {
	if e.feeder != nil {
		e.feeder.reset()
	}
	e.core.seek(timeUs)
}

func (e *RtpMp2tExtractor) Release() {
	e.core.release()
}

// rtpTsFeeder 从Input中读取rtp包，输出排好序的rtp负载
type rtpTsFeeder struct {
	input    Input
	unpacker rtprtcp.IRtpUnpacker
	packet   []byte
	pending  []byte
	lastErr  error
}

func newRtpTsFeeder(input Input) *rtpTsFeeder {
	f := &rtpTsFeeder{
		input:  input,
		packet: make([]byte, readChunkSize),
	}
	// mp2t的clock rate固定为90000
	f.unpacker, _ = rtprtcp.DefaultRtpUnpackerFactory(base.MimeVideoMp2t, base.Mp2tClockRate, f.onFrame)
	return f
}

func (f *rtpTsFeeder) Read(b []byte) (int, error) {
	for len(f.pending) == 0 {
		n, err := f.input.Read(f.packet)
		if err != nil {
			f.lastErr = err
			return 0, mapEndOfInput(err)
		}
		pkt, err := rtprtcp.ParseRtpPacket(f.packet[:n])
		if err != nil {
			Log.Warnf("parse rtp packet failed, drop it. len=%d, err=%+v", n, err)
			continue
		}
		f.unpacker.Feed(pkt)
	}
	n := copy(b, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *rtpTsFeeder) takeLastErr() error {
	err := f.lastErr
	f.lastErr = nil
	return err
}

func (f *rtpTsFeeder) reset() {
	f.unpacker.Reset()
	f.pending = nil
}

func (f *rtpTsFeeder) onFrame(frame rtprtcp.Frame) {
	f.pending = append(f.pending, frame.Payload...)
}
