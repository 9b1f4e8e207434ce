package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockerSerialisesSameUser(t *testing.T) {
	locker := NewLocker()

	var (
		active  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock(1)
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, maxSeen)
	require.Zero(t, locker.size())
}

func TestLockerAllowsDifferentUsers(t *testing.T) {
	locker := NewLocker()

	unlockA := locker.Lock(1)
	done := make(chan struct{})
	go func() {
		unlock := locker.Lock(2)
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for another user blocked")
	}
	unlockA()
	unlockA()
	require.Zero(t, locker.size())
}
