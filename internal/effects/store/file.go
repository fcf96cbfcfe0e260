// Package store persists effect presets as one file per preset.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/keylight/internal/effects"
	"gopkg.in/yaml.v3"
)

// Format is the on-disk record encoding.
type Format string

// Supported formats.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// fileStore implements effects.Store with one record file per preset in a directory.
type fileStore struct {
	dir    string
	format Format
}

// New creates a file-backed preset store rooted at dir.
func New(dir string, format Format) (effects.Store, error) {
	if dir == "" {
		dir = "presets"
	}
	switch format {
	case "", FormatTOML:
		format = FormatTOML
	case FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported preset format %q", format)
	}
	return &fileStore{dir: dir, format: format}, nil
}

// NewTOML creates a TOML preset store rooted at dir.
func NewTOML(dir string) effects.Store {
	s, _ := New(dir, FormatTOML)
	return s
}

func (s *fileStore) path(name string) string {
	return filepath.Join(s.dir, name+"."+s.ext())
}

func (s *fileStore) ext() string {
	if s.format == FormatYAML {
		return "yaml"
	}
	return "toml"
}

func checkName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", effects.ErrInvalidName, name)
	}
	return nil
}

// Write atomically replaces the named record: the data goes to a temporary file in the
// same directory, which is synced and then renamed over the target.
func (s *fileStore) Write(name string, settings effects.Settings) error {
	if err := checkName(name); err != nil {
		return err
	}

	data, err := s.marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal preset: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preset directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write preset: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync preset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close preset: %w", err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		return fmt.Errorf("failed to replace preset: %w", err)
	}
	return nil
}

// Read loads and decodes the named record. Unknown keys make the record invalid.
func (s *fileStore) Read(name string) (effects.Settings, error) {
	var settings effects.Settings
	if err := checkName(name); err != nil {
		return settings, err
	}

	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return settings, fmt.Errorf("%w: %s", effects.ErrRecordNotFound, name)
	}
	if err != nil {
		return settings, fmt.Errorf("failed to read preset: %w", err)
	}

	if err := s.unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("%w: %v", effects.ErrRecordInvalid, err)
	}
	return settings, nil
}

// Exists reports whether the named record is present.
func (s *fileStore) Exists(name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes the named record.
func (s *fileStore) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", effects.ErrRecordNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	return nil
}

// List returns saved preset names in lexical order.
func (s *fileStore) List() ([]string, error) {
	records, err := s.records()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.name)
	}
	sort.Strings(names)
	return names, nil
}

// Latest returns the most recently modified record.
func (s *fileStore) Latest() (string, error) {
	records, err := s.records()
	if err != nil {
		return "", err
	}
	var latest record
	for _, r := range records {
		if latest.name == "" || r.modTime.After(latest.modTime) {
			latest = r
		}
	}
	return latest.name, nil
}

type record struct {
	name    string
	modTime time.Time
}

func (s *fileStore) records() ([]record, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preset directory: %w", err)
	}

	suffix := "." + s.ext()
	var out []record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), suffix)
		if !validName.MatchString(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, record{name: name, modTime: info.ModTime()})
	}
	return out, nil
}

func (s *fileStore) marshal(settings effects.Settings) ([]byte, error) {
	if s.format == FormatYAML {
		return yaml.Marshal(settings)
	}
	return toml.Marshal(settings)
}

func (s *fileStore) unmarshal(data []byte, settings *effects.Settings) error {
	if s.format == FormatYAML {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		return dec.Decode(settings)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(settings)
}

// Decode parses a preset record from data in the given format and validates it.
func Decode(data []byte, format Format) (effects.Settings, error) {
	s := &fileStore{format: format}
	var settings effects.Settings
	if err := s.unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("%w: %v", effects.ErrRecordInvalid, err)
	}
	return settings, settings.Validate()
}
