// Package dbm wraps tkrzw hash files holding JSON encoded values.
package dbm

import (
	"fmt"
	"iter"
	"os"
	"sync"

	"github.com/estraier/tkrzw-go"
	"github.com/zond/hitres"

	goccy "github.com/goccy/go-json"
)

type Hash struct {
	dbm   *tkrzw.DBM
	mutex *sync.RWMutex
}

func (h *Hash) Get(k string) ([]byte, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	b, stat := h.dbm.Get(k)
	if stat.GetCode() == tkrzw.StatusNotFoundError {
		return nil, hitres.WithStack(os.ErrNotExist)
	} else if !stat.IsOK() {
		return nil, hitres.WithStack(stat)
	}
	return b, nil
}

func (h *Hash) Set(k string, v []byte, overwrite bool) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if stat := h.dbm.Set(k, v, overwrite); !stat.IsOK() {
		return hitres.WithStack(stat)
	}
	return nil
}

// Del removes k, returning os.ErrNotExist if it is missing.
func (h *Hash) Del(k string) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if stat := h.dbm.Remove(k); stat.GetCode() == tkrzw.StatusNotFoundError {
		return hitres.WithStack(os.ErrNotExist)
	} else if !stat.IsOK() {
		return hitres.WithStack(stat)
	}
	return nil
}

// Keys yields every key in the hash, in no particular order.
func (h *Hash) Keys() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		h.mutex.RLock()
		defer h.mutex.RUnlock()
		it := h.dbm.MakeIterator()
		defer it.Destruct()
		if stat := it.First(); !stat.IsOK() {
			yield("", hitres.WithStack(stat))
			return
		}
		for {
			key, stat := it.GetKeyStr()
			if stat.GetCode() == tkrzw.StatusNotFoundError {
				return
			} else if !stat.IsOK() {
				yield("", hitres.WithStack(stat))
				return
			}
			if !yield(key, nil) {
				return
			}
			if stat := it.Next(); !stat.IsOK() {
				yield("", hitres.WithStack(stat))
				return
			}
		}
	}
}

func (h *Hash) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if stat := h.dbm.Close(); !stat.IsOK() {
		return hitres.WithStack(stat)
	}
	return nil
}

// Proc updates the value of k atomically. f gets nil if k is missing, and
// returning nil removes k.
func (h *Hash) Proc(k string, f func(string, []byte) ([]byte, error)) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	var abort error
	var output []byte
	// The first pass reads and computes, the second writes only if the
	// computation succeeded.
	procs := []tkrzw.KeyProcPair{
		{
			Key: k,
			Proc: func(key []byte, value []byte) any {
				output, abort = f(string(key), value)
				return nil
			},
		},
		{
			Key: k,
			Proc: func(key []byte, value []byte) any {
				if abort != nil {
					return nil
				}
				if output == nil {
					return tkrzw.RemoveBytes
				}
				return output
			},
		},
	}
	if stat := h.dbm.ProcessMulti(procs, true); !stat.IsOK() {
		return hitres.WithStack(stat)
	}
	return hitres.WithStack(abort)
}

// JSONHash stores values of T encoded as JSON.
type JSONHash[T any] struct {
	*Hash
}

func (h *JSONHash[T]) Get(k string) (*T, error) {
	b, err := h.Hash.Get(k)
	if err != nil {
		return nil, err
	}
	t := new(T)
	if err := goccy.Unmarshal(b, t); err != nil {
		return nil, hitres.WithStack(err)
	}
	return t, nil
}

func (h *JSONHash[T]) Set(k string, v *T, overwrite bool) error {
	b, err := goccy.Marshal(v)
	if err != nil {
		return hitres.WithStack(err)
	}
	return h.Hash.Set(k, b, overwrite)
}

// Update atomically replaces the value at k with the result of f. f gets
// nil if k is missing, and returning nil removes k.
func (h *JSONHash[T]) Update(k string, f func(*T) (*T, error)) error {
	return h.Proc(k, func(_ string, b []byte) ([]byte, error) {
		var input *T
		if b != nil {
			input = new(T)
			if err := goccy.Unmarshal(b, input); err != nil {
				return nil, hitres.WithStack(err)
			}
		}
		output, err := f(input)
		if err != nil || output == nil {
			return nil, err
		}
		return goccy.Marshal(output)
	})
}

func OpenHash(path string) (*Hash, error) {
	dbm := tkrzw.NewDBM()
	stat := dbm.Open(fmt.Sprintf("%s.tkh", path), true, map[string]string{
		"update_mode":      "UPDATE_APPENDING",
		"record_comp_mode": "RECORD_COMP_NONE",
		"restore_mode":     "RESTORE_SYNC|RESTORE_NO_SHORTCUTS|RESTORE_WITH_HARDSYNC",
	})
	if !stat.IsOK() {
		return nil, hitres.WithStack(stat)
	}
	return &Hash{dbm, &sync.RWMutex{}}, nil
}

func OpenJSONHash[T any](path string) (*JSONHash[T], error) {
	h, err := OpenHash(path)
	if err != nil {
		return nil, err
	}
	return &JSONHash[T]{h}, nil
}
