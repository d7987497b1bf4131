// Package settings persists application configuration as typed key/value
// pairs. Keys are fixed at schema-definition time; reading a key that was
// never set returns its declared default rather than an absence error.
//
// Two interchangeable backends implement Store: a viper-backed registry
// store and a flat property-file store. Both produce identical logical
// behavior (same keys, same defaults, same coercion rules); which one is
// used is decided once at construction and never re-checked.
package settings

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// Settings keys. The string values are stable identifiers; scripts and the
// GUI layer rely on them.
const (
	KeyDayStartMinutes  = "day-start-minutes"
	KeyLastReportFolder = "last-report-folder"
	KeyWatchDebounceMS  = "watch-debounce-ms"
	KeyAutostartDaemon  = "autostart-daemon"
)

// Type is the declared type of a settings key.
type Type string

const (
	TypeInt    Type = "int"
	TypeString Type = "string"
	TypeBool   Type = "bool"
)

// Key describes one schema entry: a name, a type, and a hard-coded default.
type Key struct {
	Name    string
	Type    Type
	Default interface{}
}

// Schema enumerates every settings key. Both backends are defined against
// this list; there are no dynamic keys.
func Schema() []Key {
	return []Key{
		{Name: KeyDayStartMinutes, Type: TypeInt, Default: 330},
		{Name: KeyLastReportFolder, Type: TypeString, Default: ""},
		{Name: KeyWatchDebounceMS, Type: TypeInt, Default: 500},
		{Name: KeyAutostartDaemon, Type: TypeBool, Default: false},
	}
}

var (
	// ErrUnknownKey is returned for keys not present in the schema.
	ErrUnknownKey = errors.New("unknown settings key")
	// ErrTypeMismatch is returned when a Set value does not match the
	// key's declared type.
	ErrTypeMismatch = errors.New("settings type mismatch")
)

// Handler observes changes to a single key. Handler errors are aggregated
// and returned from Set after all handlers have run; the value is already
// persisted by then.
type Handler func(key string, value interface{}) error

// Subscription identifies a registered change handler.
type Subscription struct {
	key string
	id  int64
}

// Store is the uniform settings interface over both backends.
type Store interface {
	// Get returns the current value of key, or its declared default if
	// the key was never set.
	Get(key string) (interface{}, error)
	GetInt(key string) (int, error)
	GetString(key string) (string, error)
	GetBool(key string) (bool, error)

	// Set persists a new value. The value's type must match the key's
	// declared type.
	Set(key string, value interface{}) error

	// OnChange registers a handler invoked after each successful Set of
	// key, mirroring the notifier's dispatch contract for a single key.
	OnChange(key string, h Handler) Subscription
	Unsubscribe(s Subscription)
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendRegistry Backend = "registry"
	BackendFlatFile Backend = "flatfile"
)

// DetectBackend maps a platform to its settings backend. The flat property
// file is the native store on darwin; everywhere else the registry-style
// store is used. Called once at startup; the result is injected, never
// re-derived per call.
func DetectBackend(goos string) Backend {
	if goos == "darwin" {
		return BackendFlatFile
	}
	return BackendRegistry
}

// NewStore constructs the Store for the chosen backend, persisting at path.
func NewStore(backend Backend, path string) (Store, error) {
	switch backend {
	case BackendRegistry:
		return NewRegistryStore(path)
	case BackendFlatFile:
		return NewFlatFileStore(path)
	default:
		return nil, fmt.Errorf("unknown settings backend: %q", backend)
	}
}

// NewDefaultStore constructs the Store for the current platform.
func NewDefaultStore(path string) (Store, error) {
	return NewStore(DetectBackend(runtime.GOOS), path)
}

// schemaIndex gives both backends keyed access to the schema.
type schemaIndex map[string]Key

func newSchemaIndex() schemaIndex {
	idx := make(schemaIndex, len(Schema()))
	for _, k := range Schema() {
		idx[k.Name] = k
	}
	return idx
}

func (idx schemaIndex) lookup(name string) (Key, error) {
	k, ok := idx[name]
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	return k, nil
}

// checkType validates a Set value against the key's declared type.
func (idx schemaIndex) checkType(name string, value interface{}) error {
	k, err := idx.lookup(name)
	if err != nil {
		return err
	}
	switch k.Type {
	case TypeInt:
		switch value.(type) {
		case int, int32, int64:
			return nil
		}
	case TypeString:
		if _, ok := value.(string); ok {
			return nil
		}
	case TypeBool:
		if _, ok := value.(bool); ok {
			return nil
		}
	}
	return fmt.Errorf("%w: key %q wants %s, got %T", ErrTypeMismatch, name, k.Type, value)
}

// coerce normalizes a stored or decoded value to the key's declared Go type.
// Backends store through different serializers (yaml, toml) whose decoders
// disagree about integer widths, so coercion is centralized here to keep the
// backends logically identical.
func (idx schemaIndex) coerce(name string, value interface{}) (interface{}, error) {
	k, err := idx.lookup(name)
	if err != nil {
		return nil, err
	}
	switch k.Type {
	case TypeInt:
		switch v := value.(type) {
		case int:
			return v, nil
		case int32:
			return int(v), nil
		case int64:
			return int(v), nil
		case float64:
			return int(v), nil
		}
	case TypeString:
		if v, ok := value.(string); ok {
			return v, nil
		}
	case TypeBool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: key %q holds %T, wants %s", ErrTypeMismatch, name, value, k.Type)
}

// observers implements the per-key change dispatch shared by both backends.
type observers struct {
	mu   sync.Mutex
	seq  int64
	subs map[string][]observerEntry
}

type observerEntry struct {
	id int64
	fn Handler
}

func newObservers() *observers {
	return &observers{subs: make(map[string][]observerEntry)}
}

func (o *observers) add(key string, h Handler) Subscription {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	o.subs[key] = append(o.subs[key], observerEntry{id: o.seq, fn: h})
	return Subscription{key: key, id: o.seq}
}

func (o *observers) remove(s Subscription) {
	o.mu.Lock()
	defer o.mu.Unlock()
	list := o.subs[s.key]
	for i, e := range list {
		if e.id == s.id {
			o.subs[s.key] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// dispatch delivers the new value to every handler registered for key, in
// registration order, iterating a snapshot so handlers may re-register.
func (o *observers) dispatch(key string, value interface{}) error {
	o.mu.Lock()
	list := o.subs[key]
	snapshot := make([]observerEntry, len(list))
	copy(snapshot, list)
	o.mu.Unlock()

	var errs []error
	for _, e := range snapshot {
		if err := e.fn(key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// typed getter helpers shared by both backends

func getInt(s Store, key string) (int, error) {
	v, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	i, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("%w: key %q is not an int", ErrTypeMismatch, key)
	}
	return i, nil
}

func getString(s Store, key string) (string, error) {
	v, err := s.Get(key)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: key %q is not a string", ErrTypeMismatch, key)
	}
	return str, nil
}

func getBool(s Store, key string) (bool, error) {
	v, err := s.Get(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: key %q is not a bool", ErrTypeMismatch, key)
	}
	return b, nil
}

// DayStart reads day-start-minutes as a wall-clock offset: the moment past
// midnight at which a new tracking day begins.
func DayStart(s Store) (hour, minute int, err error) {
	m, err := getInt(s, KeyDayStartMinutes)
	if err != nil {
		return 0, 0, err
	}
	return m / 60, m % 60, nil
}
