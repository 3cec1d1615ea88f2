// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package loader

import (
	"context"
	"sync"
	"time"
)

// ConditionVariable 二值的门，打开时Block直接返回，关闭时Block阻塞直到被打开
type ConditionVariable struct {
	mu     sync.Mutex
	isOpen bool
	ch     chan struct{} // 打开时被close
}

func NewConditionVariable() *ConditionVariable {
	return &ConditionVariable{
		ch: make(chan struct{}),
	}
}

// Open 打开门，唤醒所有阻塞者
//
// @return 调用前是关闭状态时返回true
//
func (c *ConditionVariable) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isOpen {
		return false
	}
	c.isOpen = true
	close(c.ch)
	return true
}

// Close 关闭门
//
// @return 调用前是打开状态时返回true
//
func (c *ConditionVariable) Close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOpen {
		return false
	}
	c.isOpen = false
	c.ch = make(chan struct{})
	return true
}

func (c *ConditionVariable) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOpen
}

func (c *ConditionVariable) Block() {
	<-c.waitCh()
}

// BlockWithContext ctx结束时返回ctx.Err()
func (c *ConditionVariable) BlockWithContext(ctx context.Context) error {
	select {
	case <-c.waitCh():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BlockWithTimeout 超时返回false
func (c *ConditionVariable) BlockWithTimeout(timeoutMs int) bool {
	t := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer t.Stop()
	select {
	case <-c.waitCh():
		return true
	case <-t.C:
		return false
	}
}

func (c *ConditionVariable) waitCh() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch
}
