package cachestore

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps cache blobs in an embedded badger database. Each Write is
// a single transaction, so readers see either the old or the new value.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenBadgerStore opens (or creates) a badger database in dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	logger := slog.Default().With("component", "cache-badger", "data_dir", dir)
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger: logger})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger cache at %s: %w", dir, err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

func (s *BadgerStore) Exists(key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("checking badger key %s: %w", key, err)
}

func (s *BadgerStore) Read(key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("reading %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("reading badger key %s: %w", key, err)
	}
	return data, nil
}

func (s *BadgerStore) Write(key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("writing badger key %s: %w", key, err)
	}
	s.logger.Debug("cache entry written", "key", key, "bytes", len(data))
	return nil
}

func (s *BadgerStore) Delete(key string) error {
	exists, err := s.Exists(key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("deleting %s: %w", key, ErrNotFound)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("deleting badger key %s: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's printf-style logging into slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
