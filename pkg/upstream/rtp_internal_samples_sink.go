// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package upstream

import (
	"sync"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/naza/pkg/circularqueue"
)

// RtpInternalSamplesSink interleaved模式下，rtsp连接读协程写入rtp包，数据源读取
//
// 队列满时丢弃最老的包
//
type RtpInternalSamplesSink struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     *circularqueue.CircularQueue
	opened    bool
	clockRate int

	droppedCount int
}

func NewRtpInternalSamplesSink() *RtpInternalSamplesSink {
	s := &RtpInternalSamplesSink{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Open 可以在Close之后重新Open，之前缓存的数据被丢弃
func (s *RtpInternalSamplesSink) Open(clockRate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = circularqueue.New(SamplesSinkMaxPacketNum)
	s.opened = true
	s.clockRate = clockRate
	s.droppedCount = 0
}

func (s *RtpInternalSamplesSink) ClockRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clockRate
}

// Write 函数调用结束后，内部不持有<b>的内存块
func (s *RtpInternalSamplesSink) Write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return base.ErrUpstreamClosed
	}
	if s.queue.Full() {
		_, _ = s.queue.PopFront()
		s.droppedCount++
		Log.Warnf("samples sink full, drop front packet. dropped=%d", s.droppedCount)
	}
	packet := make([]byte, len(b))
	copy(packet, b)
	_ = s.queue.PushBack(packet)
	s.cond.Signal()
	return nil
}

// Read 阻塞直到读到一个包，或者被Close
//
// 一次返回一个完整的包，<b>放不下时截断
//
func (s *RtpInternalSamplesSink) Read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.opened && s.queue.Empty() {
		s.cond.Wait()
	}
	if !s.opened {
		return 0, base.ErrUpstreamClosed
	}
	v, _ := s.queue.PopFront()
	packet := v.([]byte)
	if len(b) < len(packet) {
		Log.Warnf("read buffer too small, packet truncated. buf=%d, packet=%d", len(b), len(packet))
	}
	return copy(b, packet), nil
}

func (s *RtpInternalSamplesSink) IsOpened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *RtpInternalSamplesSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = false
	s.cond.Broadcast()
	return nil
}
