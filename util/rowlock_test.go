// util/rowlock_test.go
package util_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/calltoleap/gatekeeper/util"
)

func TestKeyedMutex(t *testing.T) {
	t.Run("SerializesSameKey", func(t *testing.T) {
		locks := util.NewKeyedMutex()
		ctx := context.Background()

		counter := 0
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release, err := locks.Lock(ctx, "alice@example.com")
				assert.NoError(t, err)
				counter++
				release()
			}()
		}
		wg.Wait()

		assert.Equal(t, 50, counter)
	})

	t.Run("EntriesDroppedAfterRelease", func(t *testing.T) {
		locks := util.NewKeyedMutex()
		ctx := context.Background()

		for i := 0; i < 100; i++ {
			release, err := locks.Lock(ctx, fmt.Sprintf("user-%d@example.com", i))
			assert.NoError(t, err)
			release()
		}
		assert.Equal(t, 0, locks.Len())
	})

	t.Run("EntrySurvivesWhileContended", func(t *testing.T) {
		locks := util.NewKeyedMutex()
		ctx := context.Background()

		release, err := locks.Lock(ctx, "alice@example.com")
		assert.NoError(t, err)

		waiting := make(chan struct{})
		acquired := make(chan struct{})
		go func() {
			close(waiting)
			r, err := locks.Lock(ctx, "alice@example.com")
			assert.NoError(t, err)
			r()
			close(acquired)
		}()

		// Give the second locker time to block on the held entry.
		<-waiting
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, 1, locks.Len())

		release()
		<-acquired
		assert.Equal(t, 0, locks.Len())
	})

	t.Run("DifferentKeysDoNotBlock", func(t *testing.T) {
		locks := util.NewKeyedMutex()
		ctx := context.Background()

		releaseA, err := locks.Lock(ctx, "a@example.com")
		assert.NoError(t, err)
		defer releaseA()

		// A second key must be acquirable while the first is held.
		releaseB, err := locks.Lock(ctx, "b@example.com")
		assert.NoError(t, err)
		releaseB()
	})
}
