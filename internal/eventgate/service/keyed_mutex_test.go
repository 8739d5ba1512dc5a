package service

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestKeyedMutex_SerialisesSameKey(t *testing.T) {
	km := newKeyedMutex()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("FAIR|123")
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if got := maxSeen.Load(); got != 1 {
		t.Fatalf("expected at most 1 holder, saw %d", got)
	}
	if km.size() != 0 {
		t.Errorf("expected lock table to drain, has %d keys", km.size())
	}
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("FAIR|a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("FAIR|b")
		unlock()
		close(done)
	}()
	<-done

	if km.size() != 1 {
		t.Errorf("expected 1 held key, got %d", km.size())
	}
}
