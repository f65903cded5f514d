package memstore

import (
	"sync"

	"github.com/jrsteele09/go-anon-client/sessions"
)

var _ sessions.Store = (*Store)(nil)

// Store is a process-scoped session store. Its lifetime is the lifetime of the process,
// the same way the browser's session storage lives as long as the tab.
type Store struct {
	values map[sessions.Field]string
	lock   sync.RWMutex
}

func New() *Store {
	return &Store{
		values: make(map[sessions.Field]string),
	}
}

func (s *Store) Get(field sessions.Field) (string, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.values[field]
	return v, ok
}

func (s *Store) Set(field sessions.Field, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.values[field] = value
	return nil
}

func (s *Store) Replace(values map[sessions.Field]string) error {
	next := make(map[sessions.Field]string, len(values))
	for k, v := range values {
		if v != "" {
			next[k] = v
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.values = next
	return nil
}

func (s *Store) ClearAll() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.values = make(map[sessions.Field]string)
	return nil
}
