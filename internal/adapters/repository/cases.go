// Package repository reads the case files and model artifacts the tools
// consume, and writes the batch results file.
package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// LoadCases reads a JSON array and returns its elements undecoded, so that a
// bad record fails only its own case.
func LoadCases(path string) ([]json.RawMessage, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s: expected a JSON array", ErrMalformed, path)
	}
	return raw, nil
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
