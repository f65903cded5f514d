package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/jrsteele09/go-anon-client/sessions"
)

var _ sessions.Store = (*Store)(nil)

const fileMode = 0o600

// Store keeps the session in memory and mirrors every write to a JSON file,
// so a CLI invocation picks up the session left by the previous one.
type Store struct {
	fs     afero.Fs
	path   string
	values map[sessions.Field]string
	lock   sync.RWMutex
}

// New opens the store at path. A missing or unreadable file starts an empty session.
func New(fs afero.Fs, path string) (*Store, error) {
	s := &Store{
		fs:     fs,
		path:   path,
		values: make(map[sessions.Field]string),
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("[filestore New] read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &s.values); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Discarding unreadable session file")
		s.values = make(map[sessions.Field]string)
	}
	return s, nil
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

	next := s.copyValues()
	next[field] = value
	return s.commit(next)
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
	return s.commit(next)
}

func (s *Store) ClearAll() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.commit(make(map[sessions.Field]string))
}

func (s *Store) copyValues() map[sessions.Field]string {
	c := make(map[sessions.Field]string, len(s.values))
	for k, v := range s.values {
		c[k] = v
	}
	return c
}

// commit writes next to disk and only then swaps it in, so a failed write leaves
// both the file and the in-memory view unchanged. Caller holds the write lock.
func (s *Store) commit(next map[sessions.Field]string) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("[filestore commit] marshal: %w", err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("[filestore commit] mkdir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, fileMode); err != nil {
		return fmt.Errorf("[filestore commit] write: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("[filestore commit] rename: %w", err)
	}

	s.values = next
	return nil
}
