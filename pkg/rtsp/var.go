// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtsp

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

const (
	ipv4AnyAddr = "0.0.0.0"

	// 只在 MaybeThrowPrepareError 里使用，加载失败时不重试，见 onLoadError
	DefaultMinLoadableRetryCount = 3
)

// punch包的内容，非rtp协议时使用
var punchMessage = []byte("Dummy")
