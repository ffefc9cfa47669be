// Package storage persists learned optimizer models.
//
// The primary path is a single snapshot file written atomically: encode,
// write to a temporary sibling, publish by rename. A crash mid-write can
// never corrupt the previous durable copy. Loading distinguishes a missing
// file (the designed cold-start path, yielding an empty model) from a
// present-but-malformed one (a data-integrity error, reported rather than
// silently discarded).
//
// For embedders that want model snapshots in shared storage instead of a
// flat file, the Store interface offers memory and sqlite backends behind
// the same codec.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"nanoforge/internal/model"
)

// ErrCorruptModel marks a model file that exists but cannot be decoded.
// Distinct from absence: callers may retry, restore a backup, or opt in to
// starting fresh, but learned state is never dropped silently.
var ErrCorruptModel = errors.New("corrupt optimizer model")

// SaveModel writes a complete snapshot to path atomically.
func SaveModel(path string, m model.OptimizerModel) error {
	data, err := EncodeModel(m)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish model file: %w", err)
	}
	return nil
}

// LoadModel reads a snapshot from path. A missing file is not an error: it
// returns an empty model and found=false so the caller starts cold.
// Present-but-undecodable contents return ErrCorruptModel wrapping the
// cause.
func LoadModel(path string) (model.OptimizerModel, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.OptimizerModel{}, false, nil
		}
		return model.OptimizerModel{}, false, fmt.Errorf("read model: %w", err)
	}

	m, err := DecodeModel(data)
	if err != nil {
		return model.OptimizerModel{}, false, fmt.Errorf("%w: %s: %v", ErrCorruptModel, path, err)
	}
	return m, true, nil
}
