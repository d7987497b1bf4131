package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/avickers/tempo/internal/debug"
)

// RegistryStore is the registry-style backend: every schema key is
// pre-registered with viper as a default at construction, so reads always
// resolve to a value and type validation happens against the registered
// schema rather than against the file contents.
type RegistryStore struct {
	mu     sync.Mutex
	v      *viper.Viper
	path   string
	schema schemaIndex
	obs    *observers
}

// NewRegistryStore opens (or lazily creates) the registry file at path.
// A missing file is not an error; every key reads as its default until the
// first Set.
func NewRegistryStore(path string) (*RegistryStore, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	s := &RegistryStore{
		v:      v,
		path:   path,
		schema: newSchemaIndex(),
		obs:    newObservers(),
	}
	for _, k := range Schema() {
		v.SetDefault(k.Name, k.Default)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !os.IsNotExist(err) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading settings registry: %w", err)
		}
		debug.Logf("settings registry %s not present, using defaults", path)
	}

	return s, nil
}

// Get returns the key's current value, falling back to the registered
// default when the key was never set.
func (s *RegistryStore) Get(key string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.schema.lookup(key); err != nil {
		return nil, err
	}
	return s.schema.coerce(key, s.v.Get(key))
}

func (s *RegistryStore) GetInt(key string) (int, error)       { return getInt(s, key) }
func (s *RegistryStore) GetString(key string) (string, error) { return getString(s, key) }
func (s *RegistryStore) GetBool(key string) (bool, error)     { return getBool(s, key) }

// Set validates the value against the schema, persists the registry file,
// and then notifies key observers. Observer errors are returned after the
// write has already succeeded. A failed write restores the previous
// in-memory value, so reads keep matching what the file holds.
func (s *RegistryStore) Set(key string, value interface{}) error {
	s.mu.Lock()
	if err := s.schema.checkType(key, value); err != nil {
		s.mu.Unlock()
		return err
	}
	prev := s.v.Get(key)
	s.v.Set(key, value)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.v.Set(key, prev)
		s.mu.Unlock()
		return fmt.Errorf("creating settings directory: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		s.v.Set(key, prev)
		s.mu.Unlock()
		return fmt.Errorf("writing settings registry: %w", err)
	}
	coerced, err := s.schema.coerce(key, value)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.obs.dispatch(key, coerced)
}

// OnChange registers a handler for changes to one key.
func (s *RegistryStore) OnChange(key string, h Handler) Subscription {
	return s.obs.add(key, h)
}

// Unsubscribe removes a change handler.
func (s *RegistryStore) Unsubscribe(sub Subscription) {
	s.obs.remove(sub)
}
