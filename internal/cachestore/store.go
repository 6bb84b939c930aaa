// Package cachestore persists vocabulary, model and index blobs under
// explicit keys. Every backend writes atomically: a reader never observes a
// partially written value.
package cachestore

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Read and Delete for absent keys.
var ErrNotFound = errors.New("cache key not found")

// Store is the cache dependency injected into vocabulary and expert
// constructors. Existence of a key is the only staleness signal.
type Store interface {
	Exists(key string) (bool, error)
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
	Delete(key string) error
}

// Key joins a variant prefix and a file name, e.g. Key("v20000", "vocab.dict")
// is "v20000vocab.dict". An empty prefix selects the default variant.
func Key(prefix, name string) string {
	return prefix + name
}

// ValidateKey rejects keys that are empty or would escape the store root.
func ValidateKey(key string) error {
	if key == "" {
		return errors.New("empty cache key")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid cache key %q", key)
	}
	return nil
}
