package effects

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Store persists named preset records.
type Store interface {
	Write(name string, s Settings) error
	Read(name string) (Settings, error)
	Exists(name string) (bool, error)
	Delete(name string) error
	List() ([]string, error)
	// Latest returns the most recently written record name, or "" when there is none.
	Latest() (string, error)
}

// Errors a Store wraps so Live can classify failures.
var (
	ErrRecordNotFound = errors.New("preset record not found")
	ErrRecordInvalid  = errors.New("preset record malformed")
	ErrInvalidName    = errors.New("invalid preset name")
)

// Live holds the current Settings. Readers get a consistent value snapshot without
// locking; writers are serialized and either fully apply or leave state untouched.
type Live struct {
	current atomic.Pointer[Settings]
	store   Store

	mu        sync.Mutex // serializes writers
	handlersM sync.RWMutex
	handlers  []func(Settings)
}

// NewLive returns a Live starting at initial, which must be valid.
func NewLive(initial Settings, store Store) *Live {
	l := &Live{store: store}
	l.current.Store(&initial)
	return l
}

// Get returns the current settings.
func (l *Live) Get() Settings {
	return *l.current.Load()
}

// OnChange registers fn to be called with the new settings after every successful
// change. Handlers run on the writer's goroutine while writers are serialized, so they
// observe changes in store order. A handler must not write to l.
func (l *Live) OnChange(fn func(Settings)) {
	l.handlersM.Lock()
	l.handlers = append(l.handlers, fn)
	l.handlersM.Unlock()
}

// Set applies a partial update. Invalid results are rejected with a ValidationError.
func (l *Live) Set(p Patch) (Settings, error) {
	l.mu.Lock()
	next := p.Apply(l.Get())
	if err := next.Validate(); err != nil {
		l.mu.Unlock()
		return l.Get(), err
	}
	l.current.Store(&next)
	l.notify(next)
	l.mu.Unlock()
	return next, nil
}

// Replace swaps in a complete Settings value.
func (l *Live) Replace(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current.Store(&s)
	l.notify(s)
	return nil
}

// Save writes the current settings as the named preset. A failed save leaves both the
// live settings and any previously saved record untouched.
func (l *Live) Save(name string) (Settings, error) {
	if l.store == nil {
		return Settings{}, NewError(ErrCodeStorage, "no preset store configured", nil)
	}

	l.mu.Lock()
	s := l.Get()
	s.Preset.Name = name
	if err := l.store.Write(name, s); err != nil {
		l.mu.Unlock()
		if errors.Is(err, ErrInvalidName) {
			return Settings{}, NewError(ErrCodeValidation, "invalid preset name", err)
		}
		return Settings{}, NewError(ErrCodeStorage, "failed to save preset "+name, err)
	}
	l.current.Store(&s)
	l.notify(s)
	l.mu.Unlock()
	return s, nil
}

// Load replaces the live settings with the named preset as one unit.
func (l *Live) Load(name string) (Settings, error) {
	if l.store == nil {
		return Settings{}, NewError(ErrCodeStorage, "no preset store configured", nil)
	}

	exists, err := l.store.Exists(name)
	if err == nil && !exists {
		return Settings{}, NewError(ErrCodeNotFound, "preset "+name+" not found", ErrRecordNotFound)
	}

	s, err := l.store.Read(name)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return Settings{}, NewError(ErrCodeNotFound, "preset "+name+" not found", err)
	case errors.Is(err, ErrRecordInvalid), errors.Is(err, ErrInvalidName):
		return Settings{}, NewError(ErrCodeValidation, "preset "+name+" is invalid", err)
	case err != nil:
		return Settings{}, NewError(ErrCodeStorage, "failed to read preset "+name, err)
	}
	if s.Preset.Name == "" {
		s.Preset.Name = name
	}
	if err := l.Replace(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadLatest loads the most recently saved preset. With no saved preset the live
// settings are left as they are and the returned name is empty.
func (l *Live) LoadLatest() (string, error) {
	if l.store == nil {
		return "", nil
	}
	name, err := l.store.Latest()
	if err != nil {
		return "", NewError(ErrCodeStorage, "failed to scan presets", err)
	}
	if name == "" {
		return "", nil
	}
	if _, err := l.Load(name); err != nil {
		return name, err
	}
	return name, nil
}

// Delete removes the named preset record. The live settings are not affected.
func (l *Live) Delete(name string) error {
	if l.store == nil {
		return NewError(ErrCodeStorage, "no preset store configured", nil)
	}
	err := l.store.Delete(name)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return NewError(ErrCodeNotFound, "preset "+name+" not found", err)
	case errors.Is(err, ErrInvalidName):
		return NewError(ErrCodeValidation, "invalid preset name", err)
	case err != nil:
		return NewError(ErrCodeStorage, "failed to delete preset "+name, err)
	}
	return nil
}

// Presets lists saved preset names.
func (l *Live) Presets() ([]string, error) {
	if l.store == nil {
		return nil, nil
	}
	names, err := l.store.List()
	if err != nil {
		return nil, NewError(ErrCodeStorage, "failed to list presets", err)
	}
	return names, nil
}

func (l *Live) notify(s Settings) {
	l.handlersM.RLock()
	handlers := make([]func(Settings), len(l.handlers))
	copy(handlers, l.handlers)
	l.handlersM.RUnlock()

	for _, h := range handlers {
		h(s)
	}
}
