package cachestore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore keeps one file per key under a data directory.
type FileStore struct {
	dataDir string
	logger  *slog.Logger
}

// NewFileStore creates dataDir if needed.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &FileStore{
		dataDir: dataDir,
		logger:  slog.Default().With("component", "cache-file", "data_dir", dataDir),
	}, nil
}

// Path returns the file backing key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dataDir, key)
}

func (s *FileStore) Exists(key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking cache file %s: %w", key, err)
}

func (s *FileStore) Read(key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("reading cache file %s: %w", key, err)
	}
	return data, nil
}

// Write creates a .tmp sibling, syncs it and renames it over the final path.
func (s *FileStore) Write(key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	finalPath := s.Path(key)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp cache file %s: %w", key, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp cache file %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp cache file %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming cache file %s: %w", key, err)
	}
	s.logger.Debug("cache file written", "key", key, "bytes", len(data))
	return nil
}

func (s *FileStore) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.Path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("deleting %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("deleting cache file %s: %w", key, err)
	}
	return nil
}
