// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package loader_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/q191201771/lalplay/pkg/loader"
	"github.com/q191201771/naza/pkg/assert"
)

var errFake = errors.New("fake load error")

type fakeLoadable struct {
	mu       sync.Mutex
	results  []error // 每次Load的返回值，用完之后阻塞到被取消
	count    int
	canceled bool
}

func (f *fakeLoadable) CancelLoad() {
	f.mu.Lock()
	f.canceled = true
	f.mu.Unlock()
}

func (f *fakeLoadable) Load(ctx context.Context) error {
	f.mu.Lock()
	idx := f.count
	f.count++
	f.mu.Unlock()
	if idx < len(f.results) {
		return f.results[idx]
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeLoadable) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

type callbackRecorder struct {
	mu         sync.Mutex
	completed  int
	canceled   int
	released   bool
	errorCount []int
	action     loader.LoadErrorAction
	ch         chan string
}

func newCallbackRecorder(action loader.LoadErrorAction) *callbackRecorder {
	return &callbackRecorder{action: action, ch: make(chan string, 16)}
}

func (c *callbackRecorder) OnLoadCompleted(loadable loader.Loadable, loadDurationMs int64) {
	c.mu.Lock()
	c.completed++
	c.mu.Unlock()
	c.ch <- "completed"
}

func (c *callbackRecorder) OnLoadCanceled(loadable loader.Loadable, loadDurationMs int64, released bool) {
	c.mu.Lock()
	c.canceled++
	c.released = released
	c.mu.Unlock()
	c.ch <- "canceled"
}

func (c *callbackRecorder) OnLoadError(loadable loader.Loadable, loadDurationMs int64, err error, errorCount int) loader.LoadErrorAction {
	c.mu.Lock()
	c.errorCount = append(c.errorCount, errorCount)
	c.mu.Unlock()
	c.ch <- "error"
	return c.action
}

func (c *callbackRecorder) wait(t *testing.T) string {
	select {
	case s := <-c.ch:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("wait callback timeout")
	}
	return ""
}

func TestConditionVariable(t *testing.T) {
	cv := loader.NewConditionVariable()
	assert.Equal(t, false, cv.IsOpen())
	assert.Equal(t, false, cv.BlockWithTimeout(10))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.IsNotNil(t, cv.BlockWithContext(ctx))

	go func() {
		time.Sleep(20 * time.Millisecond)
		cv.Open()
	}()
	cv.Block()
	assert.Equal(t, true, cv.IsOpen())
	assert.Equal(t, false, cv.Open())
	assert.Equal(t, nil, cv.BlockWithContext(context.Background()))

	assert.Equal(t, true, cv.Close())
	assert.Equal(t, false, cv.Close())
	assert.Equal(t, false, cv.BlockWithTimeout(10))
}

func TestHandler(t *testing.T) {
	h := loader.NewHandler()
	var seq []int
	for i := 0; i < 100; i++ {
		i := i
		assert.Equal(t, true, h.Post(func() { seq = append(seq, i) }))
	}
	assert.Equal(t, true, h.Flush())
	assert.Equal(t, 100, len(seq))
	for i := range seq {
		assert.Equal(t, i, seq[i])
	}

	// 阻塞handler，然后清空队列
	block := make(chan struct{})
	h.Post(func() { <-block })
	executed := false
	h.Post(func() { executed = true })
	h.RemoveAll()
	close(block)
	assert.Equal(t, true, h.Flush())
	assert.Equal(t, false, executed)

	h.Dispose()
	<-h.Done()
	assert.Equal(t, false, h.Post(func() {}))
	assert.Equal(t, false, h.Flush())
}

func TestLoader_Completed(t *testing.T) {
	h := loader.NewHandler()
	defer h.Dispose()
	l := loader.NewLoader("test", h)
	defer l.Release()

	loadable := &fakeLoadable{results: []error{nil}}
	cb := newCallbackRecorder(loader.DontRetry)
	assert.Equal(t, nil, l.StartLoading(loadable, cb, 3))
	assert.Equal(t, "completed", cb.wait(t))
	assert.Equal(t, false, l.IsLoading())
	assert.Equal(t, nil, l.MaybeThrowError(-1))
}

func TestLoader_ErrorDontRetry(t *testing.T) {
	h := loader.NewHandler()
	defer h.Dispose()
	l := loader.NewLoader("test", h)
	defer l.Release()

	loadable := &fakeLoadable{results: []error{errFake}}
	cb := newCallbackRecorder(loader.DontRetry)
	assert.Equal(t, nil, l.StartLoading(loadable, cb, 3))
	assert.Equal(t, "error", cb.wait(t))
	h.Flush()
	assert.Equal(t, false, l.IsLoading())
	assert.Equal(t, 1, loadable.loadCount())
	assert.Equal(t, []int{1}, cb.errorCount)
}

func TestLoader_RetryThenComplete(t *testing.T) {
	h := loader.NewHandler()
	defer h.Dispose()
	l := loader.NewLoader("test", h)
	defer l.Release()

	loadable := &fakeLoadable{results: []error{errFake, nil}}
	cb := newCallbackRecorder(loader.CreateRetryAction(false, 0))
	assert.Equal(t, nil, l.StartLoading(loadable, cb, 0))
	assert.Equal(t, "error", cb.wait(t))
	assert.Equal(t, "completed", cb.wait(t))
	assert.Equal(t, 2, loadable.loadCount())
	assert.Equal(t, false, l.IsLoading())
}

func TestLoader_Fatal(t *testing.T) {
	h := loader.NewHandler()
	defer h.Dispose()
	l := loader.NewLoader("test", h)
	defer l.Release()

	loadable := &fakeLoadable{results: []error{errFake}}
	cb := newCallbackRecorder(loader.DontRetryFatal)
	assert.Equal(t, nil, l.StartLoading(loadable, cb, 3))
	assert.Equal(t, "error", cb.wait(t))
	h.Flush()
	assert.Equal(t, true, errors.Is(l.MaybeThrowError(-1), errFake))

	// 重新开始加载时清除
	loadable2 := &fakeLoadable{results: []error{nil}}
	assert.Equal(t, nil, l.StartLoading(loadable2, cb, 3))
	assert.Equal(t, nil, l.MaybeThrowError(-1))
	assert.Equal(t, "completed", cb.wait(t))
}

func TestLoader_CancelLoading(t *testing.T) {
	h := loader.NewHandler()
	defer h.Dispose()
	l := loader.NewLoader("test", h)
	defer l.Release()

	loadable := &fakeLoadable{}
	cb := newCallbackRecorder(loader.DontRetry)
	assert.Equal(t, nil, l.StartLoading(loadable, cb, 3))
	assert.Equal(t, true, l.IsLoading())
	assert.IsNotNil(t, l.StartLoading(loadable, cb, 3))

	l.CancelLoading()
	assert.Equal(t, "canceled", cb.wait(t))
	assert.Equal(t, false, cb.released)
	assert.Equal(t, true, loadable.canceled)
	assert.Equal(t, false, l.IsLoading())
}

func TestLoader_Release(t *testing.T) {
	h := loader.NewHandler()
	defer h.Dispose()
	l := loader.NewLoader("test", h)

	loadable := &fakeLoadable{}
	cb := newCallbackRecorder(loader.DontRetry)
	assert.Equal(t, nil, l.StartLoading(loadable, cb, 3))
	l.Release()

	// 同步回调
	assert.Equal(t, 1, cb.canceled)
	assert.Equal(t, true, cb.released)
	assert.Equal(t, false, l.IsLoading())
	h.Flush()
	assert.Equal(t, 1, cb.canceled)

	assert.IsNotNil(t, l.StartLoading(loadable, cb, 3))
	l.Release()
}
