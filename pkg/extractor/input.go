// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package extractor

import (
	"errors"
	"fmt"
	"io"

	"github.com/q191201771/lalplay/pkg/base"
)

// Input extractor的输入
//
// 到达输入末尾时，返回base.ErrEndOfInput
//
type Input interface {
	io.Reader

	// ReadFully 读满<b>
	ReadFully(b []byte) error

	// PeekFully 从peek位置开始读满<b>，不移动读取位置
	PeekFully(b []byte) error

	ResetPeekPosition()

	SkipFully(n int) error

	// Position 已经读取的字节数
	Position() int64
}

// ----- DefaultExtractorInput -----------------------------------------------------------------------------------------

// DefaultExtractorInput 将数据源看作连续的字节流
//
// 从数据源读取时，每次使用足够大的内存块，保证数据源是udp时不会截断数据包
//
type DefaultExtractorInput struct {
	r        io.Reader
	position int64
	length   int64

	buf     []byte // 已经从数据源读取，但还没有被Read消费的数据
	peekPos int
	chunk   []byte
}

// NewDefaultExtractorInput
//
// @param length: 输入的总长度，未知时为base.NoValue
//
func NewDefaultExtractorInput(r io.Reader, position int64, length int64) *DefaultExtractorInput {
	return &DefaultExtractorInput{
		r:        r,
		position: position,
		length:   length,
		chunk:    make([]byte, readChunkSize),
	}
}

func (in *DefaultExtractorInput) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if len(in.buf) == 0 {
		if err := in.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(b, in.buf)
	in.consume(n)
	return n, nil
}

func (in *DefaultExtractorInput) ReadFully(b []byte) error {
	if err := in.ensure(len(b)); err != nil {
		return err
	}
	copy(b, in.buf)
	in.consume(len(b))
	return nil
}

func (in *DefaultExtractorInput) PeekFully(b []byte) error {
	if err := in.ensure(in.peekPos + len(b)); err != nil {
		return err
	}
	copy(b, in.buf[in.peekPos:])
	in.peekPos += len(b)
	return nil
}

func (in *DefaultExtractorInput) ResetPeekPosition() {
	in.peekPos = 0
}

func (in *DefaultExtractorInput) SkipFully(n int) error {
	if err := in.ensure(n); err != nil {
		return err
	}
	in.consume(n)
	return nil
}

func (in *DefaultExtractorInput) Position() int64 {
	return in.position
}

func (in *DefaultExtractorInput) Length() int64 {
	return in.length
}

func (in *DefaultExtractorInput) ensure(n int) error {
	for len(in.buf) < n {
		if err := in.fill(); err != nil {
			return err
		}
	}
	return nil
}

func (in *DefaultExtractorInput) fill() error {
	n, err := in.r.Read(in.chunk)
	if n > 0 {
		in.buf = append(in.buf, in.chunk[:n]...)
		return nil
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return base.ErrEndOfInput
	}
	return err
}

func (in *DefaultExtractorInput) consume(n int) {
	in.buf = in.buf[n:]
	if len(in.buf) == 0 {
		// 复用内存
		in.buf = nil
	}
	in.peekPos -= n
	if in.peekPos < 0 {
		in.peekPos = 0
	}
	in.position += int64(n)
}

// ----- RtpExtractorInput ---------------------------------------------------------------------------------------------

// RtpExtractorInput 每次Read读取一个完整的rtp包，不支持peek
type RtpExtractorInput struct {
	r        io.Reader
	position int64
}

func NewRtpExtractorInput(r io.Reader) *RtpExtractorInput {
	return &RtpExtractorInput{
		r: r,
	}
}

// Read 调用方保证<b>能容纳一个完整的rtp包
func (in *RtpExtractorInput) Read(b []byte) (int, error) {
	n, err := in.r.Read(b)
	if n > 0 {
		in.position += int64(n)
		return n, nil
	}
	if err != nil && errors.Is(err, io.EOF) {
		return 0, base.ErrEndOfInput
	}
	return n, err
}

func (in *RtpExtractorInput) ReadFully(b []byte) error {
	return fmt.Errorf("%w. rtp input does not support ReadFully", base.ErrExtractor)
}

func (in *RtpExtractorInput) PeekFully(b []byte) error {
	return fmt.Errorf("%w. rtp input does not support PeekFully", base.ErrExtractor)
}

func (in *RtpExtractorInput) ResetPeekPosition() {
}

func (in *RtpExtractorInput) SkipFully(n int) error {
	return fmt.Errorf("%w. rtp input does not support SkipFully", base.ErrExtractor)
}

func (in *RtpExtractorInput) Position() int64 {
	return in.position
}

// ----- inputReader ---------------------------------------------------------------------------------------------------

// inputReader 将Input适配成io.Reader，并记录最后一次的错误，让调用方拿到原始错误
type inputReader struct {
	input   Input
	lastErr error
}

func (r *inputReader) Read(b []byte) (int, error) {
	n, err := r.input.Read(b)
	if err != nil {
		r.lastErr = err
		return n, mapEndOfInput(err)
	}
	return n, nil
}

func mapEndOfInput(err error) error {
	if errors.Is(err, base.ErrEndOfInput) {
		return io.EOF
	}
	return err
}

func (r *inputReader) takeLastErr() error {
	err := r.lastErr
	r.lastErr = nil
	return err
}
