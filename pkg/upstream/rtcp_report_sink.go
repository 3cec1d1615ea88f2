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
)

// RtcpReportListener 接收rtcp包
type RtcpReportListener interface {
	OnRtcpReport(b []byte)
}

// OutgoingReportListener 需要发往对端的rtcp包，通常由rtsp信令会话实现，通过interleaved通道发送
type OutgoingReportListener interface {
	OnOutgoingReport(b []byte)
}

type reportSink struct {
	mu        sync.Mutex
	opened    bool
	listeners []interface{}
}

func (s *reportSink) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
}

func (s *reportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = false
	return nil
}

func (s *reportSink) IsOpened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *reportSink) addListener(l interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.listeners {
		if item == l {
			return
		}
	}
	s.listeners = append(s.listeners, l)
}

func (s *reportSink) removeListener(l interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.listeners {
		if item == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// snapshot 回调在锁外执行
func (s *reportSink) snapshot() ([]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil, base.ErrUpstreamClosed
	}
	return append([]interface{}(nil), s.listeners...), nil
}

// ----- RtcpIncomingReportSink ----------------------------------------------------------------------------------------

// RtcpIncomingReportSink interleaved模式下，收到的rtcp包写入这里，分发给监听者
type RtcpIncomingReportSink struct {
	reportSink
}

func NewRtcpIncomingReportSink() *RtcpIncomingReportSink {
	return &RtcpIncomingReportSink{}
}

func (s *RtcpIncomingReportSink) AddListener(l RtcpReportListener) {
	s.addListener(l)
}

func (s *RtcpIncomingReportSink) RemoveListener(l RtcpReportListener) {
	s.removeListener(l)
}

func (s *RtcpIncomingReportSink) Write(b []byte) error {
	listeners, err := s.snapshot()
	if err != nil {
		return err
	}
	for _, l := range listeners {
		l.(RtcpReportListener).OnRtcpReport(b)
	}
	return nil
}

// ----- RtcpOutgoingReportSink ----------------------------------------------------------------------------------------

// RtcpOutgoingReportSink 本端产生的rtcp包写入这里，分发给会话发送
type RtcpOutgoingReportSink struct {
	reportSink
}

func NewRtcpOutgoingReportSink() *RtcpOutgoingReportSink {
	return &RtcpOutgoingReportSink{}
}

func (s *RtcpOutgoingReportSink) AddListener(l OutgoingReportListener) {
	s.addListener(l)
}

func (s *RtcpOutgoingReportSink) RemoveListener(l OutgoingReportListener) {
	s.removeListener(l)
}

func (s *RtcpOutgoingReportSink) Write(b []byte) error {
	listeners, err := s.snapshot()
	if err != nil {
		return err
	}
	for _, l := range listeners {
		l.(OutgoingReportListener).OnOutgoingReport(b)
	}
	return nil
}
