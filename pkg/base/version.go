// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

// 版本，该变量由外部脚本修改维护
const LalplayVersion = "v0.3.0"

var (
	LalplayLibraryName = "lalplay"
	LalplayGithubRepo  = "github.com/q191201771/lalplay"

	// e.g. lalplay v0.3.0 (github.com/q191201771/lalplay)
	LalplayFullInfo = LalplayLibraryName + " " + LalplayVersion + " (" + LalplayGithubRepo + ")"
)
