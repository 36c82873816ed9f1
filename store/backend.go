package store

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"golang.org/x/exp/maps"
)

var ErrInvalidKey = errors.New("invalid key")

// Backend is a synchronous string key/value store. Concurrent writers to
// the same key are not coordinated: the last write wins.
type Backend interface {
	Get(key string) (string, bool, error)
	Set(key string, value string) error
	Delete(key string) error
	Keys() ([]string, error)
}

type MemBackend struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemBackend() *MemBackend {
	return &MemBackend{values: map[string]string{}}
}

func (b *MemBackend) Get(key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *MemBackend) Set(key string, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

func (b *MemBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}

func (b *MemBackend) Keys() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := maps.Keys(b.values)
	sort.Strings(keys)
	return keys, nil
}

const (
	plainExt = ".sav"
	zstdExt  = ".sav.zst"
)

// FileBackend stores one file per key under dir.
type FileBackend struct {
	fs       afero.Fs
	dir      string
	compress bool
}

func NewFileBackend(fs afero.Fs, dir string, compress bool) (*FileBackend, error) {
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileBackend{fs, dir, compress}, nil
}

func (b *FileBackend) path(key string, compressed bool) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	ext := plainExt
	if compressed {
		ext = zstdExt
	}
	return filepath.Join(b.dir, url.PathEscape(key)+ext), nil
}

// Get reads either encoding, preferring the one currently configured.
func (b *FileBackend) Get(key string) (string, bool, error) {
	for _, compressed := range []bool{b.compress, !b.compress} {
		path, err := b.path(key, compressed)
		if err != nil {
			return "", false, err
		}

		raw, err := afero.ReadFile(b.fs, path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", false, err
		}

		if compressed {
			dec, err := zstd.NewReader(nil)
			if err != nil {
				return "", false, err
			}
			raw, err = dec.DecodeAll(raw, nil)
			dec.Close()
			if err != nil {
				return "", false, fmt.Errorf("failed to decompress %s: %w", key, err)
			}
		}
		return string(raw), true, nil
	}
	return "", false, nil
}

func (b *FileBackend) Set(key string, value string) error {
	path, err := b.path(key, b.compress)
	if err != nil {
		return err
	}

	raw := []byte(value)
	if b.compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		raw = enc.EncodeAll(raw, nil)
		enc.Close()
	}

	if err := afero.WriteFile(b.fs, path, raw, 0o600); err != nil {
		return err
	}

	// Drop the other encoding so a stale copy is never read back.
	other, _ := b.path(key, !b.compress)
	if err := b.fs.Remove(other); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (b *FileBackend) Delete(key string) error {
	for _, compressed := range []bool{false, true} {
		path, err := b.path(key, compressed)
		if err != nil {
			return err
		}
		if err := b.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (b *FileBackend) Keys() ([]string, error) {
	infos, err := afero.ReadDir(b.fs, b.dir)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		name := info.Name()
		var escaped string
		switch {
		case strings.HasSuffix(name, zstdExt):
			escaped = strings.TrimSuffix(name, zstdExt)
		case strings.HasSuffix(name, plainExt):
			escaped = strings.TrimSuffix(name, plainExt)
		default:
			continue
		}
		key, err := url.PathUnescape(escaped)
		if err != nil {
			continue
		}
		seen[key] = struct{}{}
	}

	keys := maps.Keys(seen)
	sort.Strings(keys)
	return keys, nil
}
