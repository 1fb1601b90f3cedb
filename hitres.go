// Package hitres holds helpers shared by the hit resolution packages.
package hitres

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// WithStack attaches a stack trace to err unless it already carries one.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(stackTracer); !ok {
		return errors.WithStack(err)
	}
	return err
}

// StackTrace renders the stack attached to err, or an empty string.
func StackTrace(err error) string {
	buf := &bytes.Buffer{}
	var st stackTracer
	if errors.As(err, &st) {
		for _, f := range st.StackTrace() {
			fmt.Fprintf(buf, "%+v\n", f)
		}
	}
	return buf.String()
}

// Locks serializes work per key.
type Locks[K comparable] struct {
	locks map[K]*sync.WaitGroup
	mutex sync.Mutex
}

func NewLocks[K comparable]() *Locks[K] {
	return &Locks[K]{
		locks: map[K]*sync.WaitGroup{},
	}
}

// WithLock runs f while holding the lock for key. Other callers of
// WithLock for the same key block until f returns.
func (s *Locks[K]) WithLock(key K, f func() error) error {
	s.Lock(key)
	defer s.Unlock(key)
	return f()
}

func (s *Locks[K]) Lock(key K) {
	trylock := func() *sync.WaitGroup {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if wg, found := s.locks[key]; found {
			return wg
		}
		wg := &sync.WaitGroup{}
		wg.Add(1)
		s.locks[key] = wg
		return nil
	}
	for wg := trylock(); wg != nil; wg = trylock() {
		wg.Wait()
	}
}

func (s *Locks[K]) Unlock(key K) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if wg, found := s.locks[key]; found {
		delete(s.locks, key)
		wg.Done()
	}
}

// Increment sets *prevPointer to a nanosecond timestamp larger than its
// previous value and returns it.
func Increment(prevPointer *uint64) uint64 {
	next := uint64(0)
	for {
		next = uint64(time.Now().UnixNano())
		previous := atomic.LoadUint64(prevPointer)
		if next > previous && atomic.CompareAndSwapUint64(prevPointer, previous, next) {
			break
		}
	}
	return next
}
