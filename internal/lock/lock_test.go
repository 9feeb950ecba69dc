package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex(t *testing.T) {
	t.Run("Serialises Same Key", func(t *testing.T) {
		m := NewKeyedMutex()
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			active  int
			maxSeen int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release, err := m.Lock(context.Background(), "tank:1:day:2024-01-01")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				release()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxSeen)
		assert.Equal(t, 0, m.size())
	})

	t.Run("Different Keys Do Not Block", func(t *testing.T) {
		m := NewKeyedMutex()
		releaseA, err := m.Lock(context.Background(), "a")
		require.NoError(t, err)
		defer releaseA()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		releaseB, err := m.Lock(ctx, "b")
		require.NoError(t, err)
		releaseB()
	})

	t.Run("Context Cancel While Waiting", func(t *testing.T) {
		m := NewKeyedMutex()
		release, err := m.Lock(context.Background(), "a")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = m.Lock(ctx, "a")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		release()
		release() // double release is a no-op
		assert.Equal(t, 0, m.size())
	})
}

func TestLockAll(t *testing.T) {
	m := NewKeyedMutex()
	day1 := ReportKey(7, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	day2 := ReportKey(7, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "tank:7:day:2024-03-01", day1)

	release, err := LockAll(context.Background(), m, day2, day1, day1)
	require.NoError(t, err)
	assert.Equal(t, 2, m.size())
	release()
	assert.Equal(t, 0, m.size())
}
