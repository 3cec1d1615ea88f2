// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package upstream

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

// debug级别下，前多少个包打印日志
var dumpPacketMaxNum = 10

// RtpInternalSamplesSink 缓存的最大包数
var SamplesSinkMaxPacketNum = 1024
