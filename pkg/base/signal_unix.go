// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly
// +build linux darwin netbsd freebsd openbsd dragonfly

package base

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// RunSignalHandler 收到退出信号时回调cb，ctx结束时直接返回
func RunSignalHandler(ctx context.Context, cb func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case s := <-c:
		Log.Infof("recv signal. s=%+v", s)
		cb()
	case <-ctx.Done():
	}
}
