package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Load reads the settings file at path. Whatever goes wrong, the returned
// settings are usable: defaults are returned alongside the error.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Defaults(), fmt.Errorf("%w: %s: %w", ErrPersistence, path, ErrSettingsNotFound)
		}
		return Defaults(), fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Defaults(), fmt.Errorf("%w: %s: %w", ErrPersistence, path, err)
	}
	return s, nil
}

// Save writes s to path, creating the parent directory. An existing file is
// replaced.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating settings dir: %w", ErrPersistence, err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return fmt.Errorf("%w: encoding: %w", ErrPersistence, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}
