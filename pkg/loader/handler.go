// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package loader

import (
	"sync"
)

// Handler 单协程串行执行投递的任务，保证回调之间不会并发
type Handler struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func()
	disposed bool
	done     chan struct{}
}

func NewHandler() *Handler {
	h := &Handler{
		done: make(chan struct{}),
	}
	h.cond = sync.NewCond(&h.mu)
	go h.runLoop()
	return h
}

// Post 投递任务，Dispose之后返回false
func (h *Handler) Post(fn func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return false
	}
	h.queue = append(h.queue, fn)
	h.cond.Signal()
	return true
}

// RemoveAll 丢弃所有还没有执行的任务
func (h *Handler) RemoveAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue = nil
}

// Flush 等待在此之前投递的任务都执行完
//
// 注意，不能在Handler自身的协程中调用
//
func (h *Handler) Flush() bool {
	ch := make(chan struct{})
	if !h.Post(func() { close(ch) }) {
		return false
	}
	select {
	case <-ch:
		return true
	case <-h.done:
		return false
	}
}

// Dispose 正在执行的任务执行完后退出，剩余的任务被丢弃
func (h *Handler) Dispose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return
	}
	h.disposed = true
	h.queue = nil
	h.cond.Broadcast()
}

func (h *Handler) Done() <-chan struct{} {
	return h.done
}

func (h *Handler) runLoop() {
	defer close(h.done)
	for {
		h.mu.Lock()
		for !h.disposed && len(h.queue) == 0 {
			h.cond.Wait()
		}
		if h.disposed {
			h.mu.Unlock()
			return
		}
		fn := h.queue[0]
		h.queue = h.queue[1:]
		h.mu.Unlock()

		fn()
	}
}
