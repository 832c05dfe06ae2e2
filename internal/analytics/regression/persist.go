package regression

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// Save serializes the trained forest to path. The write goes through a
// temp file and rename so a concurrent Load never sees a partial blob.
func (f *Forest) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "model-*.gob")
	if err != nil {
		return fmt.Errorf("failed to create temp model file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := gob.NewEncoder(tmp).Encode(f); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp model file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace model file: %w", err)
	}
	return nil
}

// Load reads a serialized forest from path.
func Load(path string) (*Forest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var forest Forest
	if err := gob.NewDecoder(file).Decode(&forest); err != nil {
		return nil, fmt.Errorf("failed to decode model file %s: %w", path, err)
	}
	if len(forest.Trees) == 0 {
		return nil, fmt.Errorf("model file %s contains no trees", path)
	}
	return &forest, nil
}
