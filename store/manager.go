package store

import (
	"log"
	"path/filepath"

	"github.com/shibukawa/configdir"

	"github.com/murkland/tamahost/savefile"
	"github.com/murkland/tamahost/state"
)

// DefaultTag names the save written when no tag is given.
const DefaultTag = "latest"

// DefaultDir returns the per-user directory saves go in when none is
// configured.
func DefaultDir() string {
	dirs := configdir.New("murkland", "tamahost")
	folders := dirs.QueryFolders(configdir.Global)
	if len(folders) == 0 {
		return "saves"
	}
	return filepath.Join(folders[0].Path, "saves")
}

// Manager persists exported states under tags.
type Manager struct {
	backend Backend
	codec   *savefile.Codec
}

func NewManager(backend Backend, codec *savefile.Codec) *Manager {
	return &Manager{backend, codec}
}

func tagOrDefault(tag string) string {
	if tag == "" {
		return DefaultTag
	}
	return tag
}

func (m *Manager) SaveState(st *state.State, tag string) error {
	tag = tagOrDefault(tag)
	log.Printf("saving state to %s", tag)

	blob, err := m.codec.Export(st)
	if err != nil {
		return err
	}
	return m.backend.Set(tag, blob)
}

// GetState returns the stored blob for tag. ok is false if there is none.
func (m *Manager) GetState(tag string) (blob string, ok bool, err error) {
	tag = tagOrDefault(tag)
	log.Printf("fetching state from %s", tag)
	return m.backend.Get(tag)
}

// LoadState fetches and imports the state stored under tag.
func (m *Manager) LoadState(tag string) (*state.State, bool, error) {
	blob, ok, err := m.GetState(tag)
	if err != nil || !ok {
		return nil, ok, err
	}
	st, err := m.codec.Import(blob)
	if err != nil {
		return nil, true, err
	}
	return st, true, nil
}

// PutBlob stores an already exported blob after checking that it imports.
func (m *Manager) PutBlob(blob string, tag string) error {
	if _, err := m.codec.Import(blob); err != nil {
		return err
	}
	return m.backend.Set(tagOrDefault(tag), blob)
}

func (m *Manager) Delete(tag string) error {
	return m.backend.Delete(tagOrDefault(tag))
}

func (m *Manager) Tags() ([]string, error) {
	return m.backend.Keys()
}
