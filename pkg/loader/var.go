// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package loader

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

// 重试间隔，随失败次数递增，不超过上限
var (
	RetryDelayStepMs = 1000
	RetryDelayMaxMs  = 5000
)
