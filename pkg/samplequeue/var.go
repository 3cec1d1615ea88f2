// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package samplequeue

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

const (
	FlagKeyFrame    = 1
	FlagEndOfStream = 4
)

// Read的返回值
const (
	ResultNothingRead = -3
	ResultBufferRead  = -4
	ResultFormatRead  = -5
)
