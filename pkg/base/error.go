// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"fmt"
)

// ----- 通用的 ---------------------------------------------------------------------------------------------------------

var (
	ErrShortBuffer = errors.New("lal: buffer too short")
	ErrInvalidUrl  = errors.New("lal: invalid url")

	// ErrContract 调用方违反了接口约定，比如重复enable同一个track group
	ErrContract = errors.New("lal: contract violation")
)

// ----- pkg/aac -------------------------------------------------------------------------------------------------------

var (
	ErrAac                    = errors.New("lal.aac: fxxk")
	ErrSamplingFrequencyIndex = errors.New("lal.aac: invalid sampling frequency index")
)

// ----- pkg/rtpfmt ----------------------------------------------------------------------------------------------------

var ErrRtpFmt = errors.New("lal.rtpfmt: invalid payload format")

// ----- pkg/rtprtcp ---------------------------------------------------------------------------------------------------

var (
	ErrRtpRtcpShortBuffer = errors.New("lal.rtprtcp: buffer too short")
	ErrRtp                = errors.New("lal.rtprtcp: invalid rtp packet")
	ErrRtcp               = errors.New("lal.rtprtcp: invalid rtcp packet")
)

// ----- pkg/samplequeue -----------------------------------------------------------------------------------------------

var ErrSampleQueue = errors.New("lal.samplequeue: fxxk")

// ----- pkg/extractor -------------------------------------------------------------------------------------------------

var (
	ErrExtractor         = errors.New("lal.extractor: fxxk")
	ErrExtractorNotFound = errors.New("lal.extractor: no extractor can read the stream")
	ErrEndOfInput        = errors.New("lal.extractor: end of input")
)

// ----- pkg/upstream --------------------------------------------------------------------------------------------------

var (
	ErrUpstream          = errors.New("lal.upstream: fxxk")
	ErrUpstreamClosed    = errors.New("lal.upstream: data source closed")
	ErrUpstreamNotOpened = errors.New("lal.upstream: data source not opened")
	ErrUdpTimeout        = errors.New("lal.upstream: udp read timeout")
	ErrInterleaved       = errors.New("lal.upstream: invalid interleaved frame")
)

func NewErrInterleavedFrameTooLarge(size, max int) error {
	return fmt.Errorf("%w. size=%d, max=%d", ErrInterleaved, size, max)
}

// ----- pkg/loader ----------------------------------------------------------------------------------------------------

var (
	ErrLoader         = errors.New("lal.loader: fxxk")
	ErrLoaderReleased = errors.New("lal.loader: loader released")
	ErrLoadCanceled   = errors.New("lal.loader: load canceled")
)

// ----- pkg/rtsp ------------------------------------------------------------------------------------------------------

var (
	ErrRtsp                     = errors.New("lal.rtsp: fxxk")
	ErrRtspOpenDataSource       = errors.New("lal.rtsp: open data source failed")
	ErrRtspUnsupportedTransport = errors.New("lal.rtsp: unsupported Transport")
	ErrRtspWrapperReleased      = errors.New("lal.rtsp: stream wrapper released")
)

// ----- pkg/logic -----------------------------------------------------------------------------------------------------

var (
	ErrConfig          = errors.New("lal.logic: invalid config")
	ErrPrepareFailure  = errors.New("lal.logic: prepare failure")
	ErrPlaybackFailure = errors.New("lal.logic: playback failure")
)

// ---------------------------------------------------------------------------------------------------------------------
