package concurrency

import "sync"

// WaitGroup 限制同时运行的goroutine数量
type WaitGroup struct {
	size      int
	pool      chan struct{}
	waitGroup sync.WaitGroup
}

// NewWaitGroup 创建一个带有size的并发池 当size为<=0时，不限制并发
func NewWaitGroup(size int) *WaitGroup {
	wg := &WaitGroup{
		size: size,
	}
	if size > 0 {
		wg.pool = make(chan struct{}, size)
	}
	return wg
}

// Go 在并发池有空位时启动fn，池满时阻塞调用方
func (wg *WaitGroup) Go(fn func()) {
	wg.BlockAdd()
	go func() {
		defer wg.Done()
		fn()
	}()
}

// BlockAdd 占用一个并发位
func (wg *WaitGroup) BlockAdd() {
	if wg.size > 0 {
		wg.pool <- struct{}{}
	}
	wg.waitGroup.Add(1)
}

// Done 代表一个并发结束
func (wg *WaitGroup) Done() {
	if wg.size > 0 {
		<-wg.pool
	}
	wg.waitGroup.Done()
}

// Wait 等待所有并发goroutine结束
func (wg *WaitGroup) Wait() {
	wg.waitGroup.Wait()
}
