package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Flags keeps the favorite and archived marks. They only exist on this machine;
// the backend knows nothing about them.
type Flags struct {
	fs        afero.Fs
	path      string
	favorites map[int64]bool
	archived  map[int64]bool
	lock      sync.RWMutex
}

type flagsFile struct {
	Favorites []int64 `json:"favorites"`
	Archived  []int64 `json:"archived"`
}

// NewFlags loads the flags stored at path. A missing or unreadable file starts empty.
func NewFlags(fs afero.Fs, path string) (*Flags, error) {
	f := &Flags{
		fs:        fs,
		path:      path,
		favorites: make(map[int64]bool),
		archived:  make(map[int64]bool),
	}

	data, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		var stored flagsFile
		if err := json.Unmarshal(data, &stored); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Discarding unreadable message flags")
			return f, nil
		}
		for _, id := range stored.Favorites {
			f.favorites[id] = true
		}
		for _, id := range stored.Archived {
			f.archived[id] = true
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("[messages NewFlags] read %s: %w", path, err)
	}
	return f, nil
}

// ToggleFavorite flips the favorite mark and returns the new value
func (f *Flags) ToggleFavorite(id int64) (bool, error) {
	return f.toggle(f.favorites, id)
}

// ToggleArchive flips the archived mark and returns the new value
func (f *Flags) ToggleArchive(id int64) (bool, error) {
	return f.toggle(f.archived, id)
}

func (f *Flags) IsFavorite(id int64) bool {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.favorites[id]
}

func (f *Flags) IsArchived(id int64) bool {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.archived[id]
}

// Forget drops every mark for a deleted message
func (f *Flags) Forget(id int64) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if !f.favorites[id] && !f.archived[id] {
		return nil
	}
	delete(f.favorites, id)
	delete(f.archived, id)
	return f.save()
}

// Clear removes every mark
func (f *Flags) Clear() error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.favorites = make(map[int64]bool)
	f.archived = make(map[int64]bool)
	return f.save()
}

func (f *Flags) toggle(set map[int64]bool, id int64) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	marked := !set[id]
	if marked {
		set[id] = true
	} else {
		delete(set, id)
	}
	if err := f.save(); err != nil {
		if marked {
			delete(set, id)
		} else {
			set[id] = true
		}
		return !marked, err
	}
	return marked, nil
}

// save writes the flags to disk. Caller holds the lock.
func (f *Flags) save() error {
	data, err := json.Marshal(flagsFile{
		Favorites: sortedIDs(f.favorites),
		Archived:  sortedIDs(f.archived),
	})
	if err != nil {
		return fmt.Errorf("[Flags save] marshal: %w", err)
	}
	if err := f.fs.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("[Flags save] mkdir: %w", err)
	}
	if err := afero.WriteFile(f.fs, f.path, data, 0o600); err != nil {
		return fmt.Errorf("[Flags save] write %s: %w", f.path, err)
	}
	return nil
}

func sortedIDs(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
