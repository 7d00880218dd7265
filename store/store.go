package store

import (
	"sync"
	"sync/atomic"

	"github.com/wfunc/blockbattle/logger"
)

// Listener receives the value of a subscribed subtree before and after a
// committed mutation. Both values are private copies.
type Listener func(previous, current interface{})

type mutation struct {
	path   []string
	remove bool
	update func(old interface{}, exists bool) (value interface{}, keep bool)
}

type subscription struct {
	path     []string
	listener Listener
	active   atomic.Bool
}

// Store is a path-addressable document with change notifications.
//
// Mutations are applied one at a time from a FIFO queue. A mutation issued
// while the queue is being drained (typically from inside a listener) is
// appended and applied after every listener of the in-flight mutation has
// returned, by the goroutine that is already draining.
type Store struct {
	mu       sync.RWMutex
	root     map[string]interface{}
	subs     []*subscription
	queue    []mutation
	draining bool
}

func New() *Store {
	return &Store{root: make(map[string]interface{})}
}

// Select returns a cursor bound to path.
func (s *Store) Select(path ...string) *Cursor {
	return &Cursor{store: s, path: append([]string(nil), path...)}
}

// Get returns a copy of the value at path, or nil.
func (s *Store) Get(path ...string) interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := lookup(s.root, path)
	return Clone(v)
}

func (s *Store) Exists(path ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := lookup(s.root, path)
	return ok
}

func (s *Store) Set(path []string, value interface{}) {
	value = Clone(value)
	s.submit(mutation{path: path, update: func(interface{}, bool) (interface{}, bool) {
		return value, true
	}})
}

func (s *Store) DeepMerge(path []string, partial map[string]interface{}) {
	partial = Clone(partial).(map[string]interface{})
	s.submit(mutation{path: path, update: func(old interface{}, _ bool) (interface{}, bool) {
		return merge(old, partial), true
	}})
}

func (s *Store) Unset(path []string) {
	s.submit(mutation{path: path, remove: true, update: func(interface{}, bool) (interface{}, bool) {
		return nil, false
	}})
}

// Apply queues a read-modify-write of the value at path. fn receives a copy of
// the value as it is when the mutation is applied, not when it is queued, and
// returns the replacement. fn must not call back into the store.
func (s *Store) Apply(path []string, fn func(current interface{}) interface{}) {
	s.submit(mutation{path: path, update: func(old interface{}, _ bool) (interface{}, bool) {
		return Clone(fn(Clone(old))), true
	}})
}

// Subscribe registers l for changes affecting path. The returned function
// removes the subscription; it is safe to call more than once.
func (s *Store) Subscribe(path []string, l Listener) func() {
	sub := &subscription{path: append([]string(nil), path...), listener: l}
	sub.active.Store(true)

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, other := range s.subs {
			if other == sub {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				break
			}
		}
	}
}

func (s *Store) submit(m mutation) {
	m.path = append([]string(nil), m.path...)

	s.mu.Lock()
	s.queue = append(s.queue, m)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]

		prev := s.root
		curr, changed := safeCommit(prev, next)
		if !changed {
			continue
		}
		s.root = curr

		var notify []*subscription
		for _, sub := range s.subs {
			if related(sub.path, next.path) {
				notify = append(notify, sub)
			}
		}

		s.mu.Unlock()
		for _, sub := range notify {
			s.fire(sub, prev, curr)
		}
		s.mu.Lock()
	}

	s.draining = false
	s.mu.Unlock()
}

func safeCommit(root map[string]interface{}, m mutation) (next map[string]interface{}, changed bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("store mutation on %v panicked: %v", m.path, r)
			next, changed = root, false
		}
	}()
	return commit(root, m)
}

func commit(root map[string]interface{}, m mutation) (map[string]interface{}, bool) {
	if len(m.path) == 0 {
		v, keep := m.update(root, true)
		next, ok := v.(map[string]interface{})
		if !keep || !ok {
			next = make(map[string]interface{})
		}
		return next, true
	}
	return writeIn(root, m.path, m)
}

func (s *Store) fire(sub *subscription, prevRoot, currRoot map[string]interface{}) {
	if !sub.active.Load() {
		return
	}
	before, _ := lookup(prevRoot, sub.path)
	after, _ := lookup(currRoot, sub.path)
	if equal(before, after) {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("store listener on %v panicked: %v", sub.path, r)
		}
	}()
	sub.listener(Clone(before), Clone(after))
}
