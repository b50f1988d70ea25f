package lock

import (
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
)

func TestKeyMutex(t *testing.T) {
	t.Parallel()
	locks := NewKeyMutex()

	require.True(t, locks.TryLockKey("warnet-ln-000001"))
	require.False(t, locks.TryLockKey("warnet-ln-000001"))
	require.True(t, locks.TryLockKey("warnet-ln-000002"))
	require.Equal(t, []string{"warnet-ln-000001", "warnet-ln-000002"}, locks.Held())

	locks.UnlockKey("warnet-ln-000001")
	require.True(t, locks.TryLockKey("warnet-ln-000001"))
}

func TestKeyMutexSingleWinner(t *testing.T) {
	locks := NewKeyMutex()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if locks.TryLockKey("warnet-ln-000000") {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, won)
}
