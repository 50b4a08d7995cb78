package internal

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLockExcludesSameKey(t *testing.T) {
	l := NewKeyLock[string]()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("digest")
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.Len(), "entries are released")
}

func TestKeyLockIndependentKeys(t *testing.T) {
	l := NewKeyLock[int]()
	unlockA := l.Lock(1)
	done := make(chan struct{})
	go func() {
		unlockB := l.Lock(2)
		unlockB()
		close(done)
	}()
	<-done
	assert.Equal(t, 1, l.Len())
	unlockA()
	assert.Equal(t, 0, l.Len())
}
