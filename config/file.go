package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// File is a Store backed by a YAML document of key: value pairs.
type File struct {
	path string

	mu     sync.RWMutex
	values map[string]string
}

var _ Store = (*File)(nil)

// DefaultPath returns $XDG_CONFIG_HOME/queuectl/config.yaml, falling
// back to the platform user config directory.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserConfigDir(); err != nil {
			dir = "."
		}
	}
	return filepath.Join(dir, "queuectl", "config.yaml")
}

// OpenFile loads the YAML file at path. A missing file yields an empty
// store that Save will create.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f.values); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Get implements Provider.
func (f *File) Get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok
}

// Set validates value and stages it. Call Save to persist.
func (f *File) Set(key, value string) error {
	if err := Validate(key, value); err != nil {
		return err
	}
	f.mu.Lock()
	f.values[key] = value
	f.mu.Unlock()
	return nil
}

// Save writes the staged values to a temporary file next to the target
// and renames it into place.
func (f *File) Save() error {
	f.mu.RLock()
	data, err := yaml.Marshal(f.values)
	f.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("config: save: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("config: save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: save: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("config: save: %w", err)
	}
	return nil
}
