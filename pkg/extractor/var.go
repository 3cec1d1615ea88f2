// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package extractor

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

// Extractor.Read 的返回值
const (
	ResultContinue   = 0
	ResultSeek       = 1
	ResultEndOfInput = -1
)

// 与samplequeue中的定义保持一致
const (
	SampleFlagKeyFrame = 1
)

// 读取输入时一次最多读取的大小，需要大于一个udp包的最大值
const readChunkSize = 65536
