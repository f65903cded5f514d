package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var _ http.CookieJar = (*FileJar)(nil)

// FileJar is a cookie jar for a single API origin that survives process restarts.
// The refresh cookie is HttpOnly, so the client stores it without ever inspecting it.
type FileJar struct {
	jar     *cookiejar.Jar
	fs      afero.Fs
	path    string
	origin  *url.URL
	cookies map[string]*http.Cookie // name -> cookie as received
	lock    sync.Mutex
}

// NewFileJar loads cookies for baseURL from path, if the file exists
func NewFileJar(fs afero.Fs, path, baseURL string) (*FileJar, error) {
	origin, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("[apiclient NewFileJar] invalid base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("[apiclient NewFileJar] cookie jar: %w", err)
	}

	j := &FileJar{
		jar:     jar,
		fs:      fs,
		path:    path,
		origin:  origin,
		cookies: make(map[string]*http.Cookie),
	}

	data, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		var stored []*http.Cookie
		if err := json.Unmarshal(data, &stored); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Discarding unreadable cookie file")
			return j, nil
		}
		now := time.Now()
		for _, c := range stored {
			if !c.Expires.IsZero() && c.Expires.Before(now) {
				continue
			}
			j.cookies[c.Name] = c
		}
		j.jar.SetCookies(origin, stored)
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("[apiclient NewFileJar] read %s: %w", path, err)
	}
	return j, nil
}

func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.lock.Lock()
	defer j.lock.Unlock()

	j.jar.SetCookies(u, cookies)
	if u.Host != j.origin.Host {
		return
	}

	now := time.Now()
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			delete(j.cookies, c.Name)
			continue
		}
		stored := *c
		if stored.MaxAge > 0 && stored.Expires.IsZero() {
			stored.Expires = now.Add(time.Duration(stored.MaxAge) * time.Second)
		}
		stored.MaxAge = 0
		if stored.Path == "" {
			stored.Path = "/"
		}
		j.cookies[c.Name] = &stored
	}

	if err := j.save(); err != nil {
		log.Err(err).Str("path", j.path).Msg("Failed to persist cookies")
	}
}

func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	j.lock.Lock()
	jar := j.jar
	j.lock.Unlock()
	return jar.Cookies(u)
}

// Clear forgets every stored cookie, in memory and on disk
func (j *FileJar) Clear() error {
	j.lock.Lock()
	defer j.lock.Unlock()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("[FileJar Clear] cookie jar: %w", err)
	}
	j.jar = jar
	j.cookies = make(map[string]*http.Cookie)
	return j.save()
}

// save writes the cookie set to disk. Caller holds the lock.
func (j *FileJar) save() error {
	stored := make([]*http.Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		stored = append(stored, c)
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("[FileJar save] marshal: %w", err)
	}
	if err := j.fs.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return fmt.Errorf("[FileJar save] mkdir: %w", err)
	}
	return afero.WriteFile(j.fs, j.path, data, 0o600)
}
