// Package hooks keeps one cache per brotherhood entity and exposes the
// fetch and mutation operations the console screens call.
//
// Every fetch takes a token from its slot before calling the API. When a
// newer fetch for the same slot starts first, the older response is dropped
// and ErrSuperseded is returned instead of overwriting newer state.
// Mutations never patch server-computed fields locally; they refetch.
package hooks

import (
	"errors"
	"sync"

	"hermandad.org/internal/api"
	"hermandad.org/internal/notify"
)

// ErrSuperseded reports a fetch whose response arrived after a newer fetch
// of the same slot had started.
var ErrSuperseded = errors.New("hooks: response superseded by a newer request")

// Slot is one cached value guarded by a fetch sequence.
type Slot[T any] struct {
	mu     sync.RWMutex
	seq    uint64
	value  T
	loaded bool
}

// Begin starts a fetch and returns its token.
func (s *Slot[T]) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Commit stores v only when token is still the latest one issued.
func (s *Slot[T]) Commit(token uint64, v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.seq {
		return false
	}
	s.value = v
	s.loaded = true
	return true
}

// Get returns the cached value and whether anything was ever committed.
func (s *Slot[T]) Get() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.loaded
}

// Value returns the cached value, or the zero value when nothing is loaded.
func (s *Slot[T]) Value() T {
	v, _ := s.Get()
	return v
}

// Patch rewrites the cached value in place and invalidates in-flight fetches.
func (s *Slot[T]) Patch(fn func(T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.value = fn(s.value)
	s.loaded = true
}

// Reset forgets the cached value and invalidates in-flight fetches.
func (s *Slot[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.seq++
	s.value = zero
	s.loaded = false
}

// base tracks in-flight calls and the last failure of one hook.
type base struct {
	notifier notify.Notifier

	mu       sync.Mutex
	inflight int
	lastErr  error
}

// Loading reports whether any call of the hook is in flight.
func (b *base) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inflight > 0
}

// LastError is the error of the most recent failed call, cleared by the next
// successful one.
func (b *base) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// run executes fn as one tracked call. A failure is recorded and reported
// with the server's message, or fallback when it sent none.
func (b *base) run(fallback string, fn func() error) error {
	b.mu.Lock()
	b.inflight++
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	b.inflight--
	b.lastErr = err
	b.mu.Unlock()

	if err != nil {
		notify.Error(b.notifier, api.MessageOf(err, fallback))
	}
	return err
}

func (b *base) success(msg string) { notify.Success(b.notifier, msg) }

// fetch runs call as a tracked fetch into slot.
func fetch[T any](b *base, slot *Slot[T], fallback string, call func() (T, error)) (T, error) {
	token := slot.Begin()
	var v T
	err := b.run(fallback, func() (err error) {
		v, err = call()
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if !slot.Commit(token, v) {
		var zero T
		return zero, ErrSuperseded
	}
	return v, nil
}

// keyed holds one slot per key, e.g. turns per procession.
type keyed[T any] struct {
	mu    sync.Mutex
	slots map[string]*Slot[T]
}

func (k *keyed[T]) slot(key string) *Slot[T] {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.slots == nil {
		k.slots = make(map[string]*Slot[T])
	}
	s, ok := k.slots[key]
	if !ok {
		s = &Slot[T]{}
		k.slots[key] = s
	}
	return s
}

func (k *keyed[T]) get(key string) (T, bool) {
	k.mu.Lock()
	s, ok := k.slots[key]
	k.mu.Unlock()
	if !ok {
		var zero T
		return zero, false
	}
	return s.Get()
}

func (k *keyed[T]) keys() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]string, 0, len(k.slots))
	for key, s := range k.slots {
		if _, loaded := s.Get(); loaded {
			out = append(out, key)
		}
	}
	return out
}
