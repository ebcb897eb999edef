package services

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerialisesSameKey(t *testing.T) {
	k := newKeyedMutex()
	var active, peak atomic.Int32
	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("doc")
			defer unlock()

			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	assert.Zero(t, k.size())
}

func TestKeyedMutex_DifferentKeysIndependent(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	assert.Equal(t, 1, k.size())
	unlockA()
	assert.Zero(t, k.size())
}
