package hitres

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestWithStack(t *testing.T) {
	if WithStack(nil) != nil {
		t.Errorf("wanted nil")
	}
	base := errors.New("boom")
	if got := WithStack(base); got != base {
		t.Errorf("got %v, wanted the same error back", got)
	}
	plain := fmtError("plain")
	wrapped := WithStack(plain)
	if StackTrace(wrapped) == "" {
		t.Errorf("wanted a stack trace")
	}
	if errors.Cause(wrapped) != plain {
		t.Errorf("got cause %v, want %v", errors.Cause(wrapped), plain)
	}
}

type fmtError string

func (f fmtError) Error() string { return string(f) }

func TestWithLockSerializes(t *testing.T) {
	locks := NewLocks[string]()
	counters := map[string]*int{"a": new(int), "b": new(int)}
	wg := sync.WaitGroup{}
	for i := range 50 {
		key := []string{"a", "b"}[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := locks.WithLock(key, func() error {
				v := *counters[key]
				time.Sleep(time.Microsecond)
				*counters[key] = v + 1
				return nil
			}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if *counters["a"] != 25 || *counters["b"] != 25 {
		t.Errorf("got %v and %v, want 25 each", *counters["a"], *counters["b"])
	}
	if len(locks.locks) != 0 {
		t.Errorf("%v locks left behind", len(locks.locks))
	}
}

func TestIncrement(t *testing.T) {
	var counter uint64
	seen := map[uint64]bool{}
	mu := &sync.Mutex{}
	wg := &sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v := Increment(&counter)
				mu.Lock()
				if seen[v] {
					t.Errorf("duplicate value %v", v)
				}
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 800 {
		t.Errorf("got %v values, want 800", len(seen))
	}
}
