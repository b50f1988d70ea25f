package concurrency

import (
	"github.com/stretchr/testify/require"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitGroupBoundsParallelism(t *testing.T) {
	wg := NewWaitGroup(2)
	var running, peak, done int32
	for i := 0; i < 8; i++ {
		wg.Go(func() {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			atomic.AddInt32(&done, 1)
		})
	}
	wg.Wait()
	require.Equal(t, int32(8), done)
	require.LessOrEqual(t, peak, int32(2))
}

func TestWaitGroupUnbounded(t *testing.T) {
	wg := NewWaitGroup(0)
	var done int32
	for i := 0; i < 4; i++ {
		wg.Go(func() { atomic.AddInt32(&done, 1) })
	}
	wg.Wait()
	require.Equal(t, int32(4), done)
}
