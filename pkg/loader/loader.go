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
	"fmt"
	"sync"
	"time"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/naza/pkg/nazaatomic"
)

// Loadable 一个可以被取消的加载任务
type Loadable interface {
	// CancelLoad 设置取消标志，Load在下一次检查时返回
	CancelLoad()

	// Load 阻塞直到加载结束，出错，或者被取消
	//
	// 取消时<ctx>也会被cancel，用于唤醒阻塞中的等待
	//
	Load(ctx context.Context) error
}

type Callback interface {
	OnLoadCompleted(loadable Loadable, loadDurationMs int64)

	// OnLoadCanceled
	//
	// @param released: 由Loader.Release触发时为true
	//
	OnLoadCanceled(loadable Loadable, loadDurationMs int64, released bool)

	// OnLoadError 返回值决定是否重试
	OnLoadError(loadable Loadable, loadDurationMs int64, err error, errorCount int) LoadErrorAction
}

const (
	actionTypeRetry = iota
	actionTypeRetryResetErrorCount
	actionTypeDontRetry
	actionTypeDontRetryFatal
)

type LoadErrorAction struct {
	typ          int
	retryDelayMs int // 小于0时使用默认的递增间隔
}

var (
	Retry                = LoadErrorAction{typ: actionTypeRetry, retryDelayMs: -1}
	RetryResetErrorCount = LoadErrorAction{typ: actionTypeRetryResetErrorCount, retryDelayMs: -1}
	DontRetry            = LoadErrorAction{typ: actionTypeDontRetry}
	DontRetryFatal       = LoadErrorAction{typ: actionTypeDontRetryFatal}
)

func CreateRetryAction(resetErrorCount bool, retryDelayMs int) LoadErrorAction {
	typ := actionTypeRetry
	if resetErrorCount {
		typ = actionTypeRetryResetErrorCount
	}
	return LoadErrorAction{typ: typ, retryDelayMs: retryDelayMs}
}

func (a LoadErrorAction) IsRetry() bool {
	return a.typ == actionTypeRetry || a.typ == actionTypeRetryResetErrorCount
}

// Loader 在独立的协程中执行Loadable
//
// 同一时间最多只有一个任务，回调通过Handler串行执行
//
type Loader struct {
	uniqueKey string
	name      string
	handler   *Handler

	mu       sync.Mutex
	current  *loadTask
	fatalErr error
	released bool
}

func NewLoader(name string, handler *Handler) *Loader {
	uk := base.GenUkLoader()
	Log.Infof("[%s] lifecycle new loader. name=%s", uk, name)
	return &Loader{
		uniqueKey: uk,
		name:      name,
		handler:   handler,
	}
}

func (l *Loader) UniqueKey() string {
	return l.uniqueKey
}

// StartLoading 调用方保证当前没有正在执行的任务
//
// @param minRetryCount: 失败次数超过该值时，MaybeThrowError返回错误
//
func (l *Loader) StartLoading(loadable Loadable, callback Callback, minRetryCount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return base.ErrLoaderReleased
	}
	if l.current != nil {
		return fmt.Errorf("%w. already loading", base.ErrLoader)
	}
	l.fatalErr = nil
	t := newLoadTask(l, loadable, callback, minRetryCount)
	l.current = t
	t.start(0)
	return nil
}

func (l *Loader) IsLoading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current != nil
}

// CancelLoading 取消当前任务，并等待加载协程退出
//
// OnLoadCanceled(released=false) 随后通过Handler回调
//
func (l *Loader) CancelLoading() {
	l.mu.Lock()
	t := l.current
	l.mu.Unlock()
	if t == nil {
		return
	}
	Log.Debugf("[%s] cancel loading.", l.uniqueKey)
	t.cancel(false)
}

// Release 取消当前任务，之后Loader不能再使用
//
// 有任务时，同步回调OnLoadCanceled(released=true)
//
func (l *Loader) Release() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	t := l.current
	l.mu.Unlock()

	if t != nil {
		t.cancel(true)
	}
	Log.Infof("[%s] lifecycle dispose loader.", l.uniqueKey)
}

// MaybeThrowError 返回致命错误，或者当前任务失败次数超过<minRetryCount>时的错误
//
// @param minRetryCount: 小于0时使用StartLoading传入的值
//
func (l *Loader) MaybeThrowError(minRetryCount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fatalErr != nil {
		return l.fatalErr
	}
	if l.current != nil {
		return l.current.maybeThrowError(minRetryCount)
	}
	return nil
}

func (l *Loader) finish(t *loadTask) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == t {
		l.current = nil
	}
}

func (l *Loader) setFatalErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fatalErr = err
}

// ----- loadTask ------------------------------------------------------------------------------------------------------

type loadTask struct {
	loader        *Loader
	loadable      Loadable
	callback      Callback
	minRetryCount int

	ctx        context.Context
	cancelFunc context.CancelFunc
	startTime  time.Time

	canceled nazaatomic.Bool
	released nazaatomic.Bool

	mu         sync.Mutex
	done       chan struct{} // 当前这一次尝试的协程退出时被close
	currentErr error
	errorCount int
	delivered  bool // 结束类的回调(完成，取消，不再重试的错误)只回调一次
}

func newLoadTask(l *Loader, loadable Loadable, callback Callback, minRetryCount int) *loadTask {
	ctx, cancel := context.WithCancel(context.Background())
	return &loadTask{
		loader:        l,
		loadable:      loadable,
		callback:      callback,
		minRetryCount: minRetryCount,
		ctx:           ctx,
		cancelFunc:    cancel,
		startTime:     time.Now(),
	}
}

func (t *loadTask) start(delayMs int) {
	done := make(chan struct{})
	t.mu.Lock()
	t.done = done
	t.mu.Unlock()
	go t.run(delayMs, done)
}

func (t *loadTask) run(delayMs int, done chan struct{}) {
	var err error
	if delayMs > 0 {
		select {
		case <-time.After(time.Duration(delayMs) * time.Millisecond):
		case <-t.ctx.Done():
		}
	}
	if !t.canceled.Load() {
		err = t.loadable.Load(t.ctx)
	}
	close(done)

	if !t.loader.handler.Post(func() { t.onFinished(err) }) {
		// handler已经销毁，没有人再关心回调
		t.loader.finish(t)
	}
}

// onFinished 在handler协程中执行
func (t *loadTask) onFinished(err error) {
	if t.released.Load() {
		return
	}
	durationMs := time.Since(t.startTime).Milliseconds()

	if t.canceled.Load() {
		t.deliverCanceled(durationMs)
		return
	}
	if err == nil {
		if t.markDelivered() {
			t.loader.finish(t)
			t.callback.OnLoadCompleted(t.loadable, durationMs)
		}
		return
	}

	t.mu.Lock()
	t.currentErr = err
	t.errorCount++
	errorCount := t.errorCount
	t.mu.Unlock()

	action := t.callback.OnLoadError(t.loadable, durationMs, err, errorCount)
	Log.Debugf("[%s] load error. errorCount=%d, action=%d, err=%+v", t.loader.uniqueKey, errorCount, action.typ, err)

	switch action.typ {
	case actionTypeDontRetryFatal:
		t.loader.setFatalErr(err)
		if t.markDelivered() {
			t.loader.finish(t)
		}
	case actionTypeDontRetry:
		if t.markDelivered() {
			t.loader.finish(t)
		}
	default:
		if t.canceled.Load() {
			if !t.released.Load() {
				t.deliverCanceled(durationMs)
			}
			return
		}
		t.mu.Lock()
		if action.typ == actionTypeRetryResetErrorCount {
			t.errorCount = 1
		}
		delayMs := action.retryDelayMs
		if delayMs < 0 {
			delayMs = retryDelayMs(t.errorCount)
		}
		t.mu.Unlock()
		t.start(delayMs)
	}
}

func (t *loadTask) deliverCanceled(durationMs int64) {
	if t.markDelivered() {
		t.loader.finish(t)
		t.callback.OnLoadCanceled(t.loadable, durationMs, false)
	}
}

func (t *loadTask) cancel(released bool) {
	t.canceled.Store(true)
	if released {
		t.released.Store(true)
	}
	t.loadable.CancelLoad()
	t.cancelFunc()

	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done != nil {
		<-done
	}

	// 还没有回调过时，同步回调
	if released && t.markDelivered() {
		t.loader.finish(t)
		t.callback.OnLoadCanceled(t.loadable, time.Since(t.startTime).Milliseconds(), true)
	}
}

func (t *loadTask) markDelivered() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.delivered {
		return false
	}
	t.delivered = true
	return true
}

func (t *loadTask) maybeThrowError(minRetryCount int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if minRetryCount < 0 {
		minRetryCount = t.minRetryCount
	}
	if t.currentErr != nil && t.errorCount > minRetryCount {
		return t.currentErr
	}
	return nil
}

func retryDelayMs(errorCount int) int {
	d := (errorCount - 1) * RetryDelayStepMs
	if d > RetryDelayMaxMs {
		return RetryDelayMaxMs
	}
	return d
}
