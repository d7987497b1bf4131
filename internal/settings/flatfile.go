package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/avickers/tempo/internal/debug"
)

// FlatFileStore is the property-file backend, used where no registry-style
// store is native. All keys live in one TOML file under a per-user path.
// On first run the file does not exist and every Get returns the hard-coded
// default. Writes go to a temporary file in the same directory and are
// renamed into place, so the file is never left half-written.
type FlatFileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]interface{}
	schema schemaIndex
	obs    *observers
}

// NewFlatFileStore opens the property file at path, tolerating its absence.
func NewFlatFileStore(path string) (*FlatFileStore, error) {
	s := &FlatFileStore{
		path:   path,
		values: make(map[string]interface{}),
		schema: newSchemaIndex(),
		obs:    newObservers(),
	}

	if _, err := toml.DecodeFile(path, &s.values); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading settings file: %w", err)
		}
		debug.Logf("settings file %s not present, using defaults", path)
	}

	return s, nil
}

// Get returns the current value of key, or the schema default when unset.
func (s *FlatFileStore) Get(key string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, err := s.schema.lookup(key)
	if err != nil {
		return nil, err
	}
	if v, ok := s.values[key]; ok {
		return s.schema.coerce(key, v)
	}
	return k.Default, nil
}

func (s *FlatFileStore) GetInt(key string) (int, error)       { return getInt(s, key) }
func (s *FlatFileStore) GetString(key string) (string, error) { return getString(s, key) }
func (s *FlatFileStore) GetBool(key string) (bool, error)     { return getBool(s, key) }

// Set validates the value, rewrites the property file atomically, and then
// notifies key observers.
func (s *FlatFileStore) Set(key string, value interface{}) error {
	s.mu.Lock()
	if err := s.schema.checkType(key, value); err != nil {
		s.mu.Unlock()
		return err
	}
	prev, hadPrev := s.values[key]
	s.values[key] = value
	if err := s.save(); err != nil {
		if hadPrev {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		s.mu.Unlock()
		return err
	}
	coerced, err := s.schema.coerce(key, value)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.obs.dispatch(key, coerced)
}

// save writes the full value map via temp file + rename. Must be called
// with the mutex held.
func (s *FlatFileStore) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("creating temp settings file: %w", err)
	}
	tmpName := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(s.values); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp settings file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}

// OnChange registers a handler for changes to one key.
func (s *FlatFileStore) OnChange(key string, h Handler) Subscription {
	return s.obs.add(key, h)
}

// Unsubscribe removes a change handler.
func (s *FlatFileStore) Unsubscribe(sub Subscription) {
	s.obs.remove(sub)
}
