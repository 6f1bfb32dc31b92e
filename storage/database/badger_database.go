// Copyright 2023 The powsim Authors
// This file is part of the powsim library.
//
// The powsim library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The powsim library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the powsim library. If not, see <http://www.gnu.org/licenses/>.

package database

import (
	"os"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
)

type badgerDB struct {
	fn string
	db *badger.DB
}

// NewBadgerDatabase opens the badger backend at dir, creating it if absent.
func NewBadgerDatabase(dir string) (Database, error) {
	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return nil, errors.Errorf("badger dir is not a directory: %s", dir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create badger dir")
		}
	} else {
		return nil, errors.Wrap(err, "failed to stat badger dir")
	}

	db, err := badger.Open(badger.DefaultOptions(dir))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open badger")
	}
	logger.Info("Allocated BadgerDB", "dir", dir)
	return &badgerDB{fn: dir, db: db}, nil
}

func (db *badgerDB) Put(key []byte, value []byte) error {
	return db.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (db *badgerDB) Get(key []byte) ([]byte, error) {
	var value []byte
	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrKeyNotFound
	}
	return value, err
}

func (db *badgerDB) Has(key []byte) (bool, error) {
	_, err := db.Get(key)
	if err == ErrKeyNotFound {
		return false, nil
	}
	return err == nil, err
}

func (db *badgerDB) Delete(key []byte) error {
	return db.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (db *badgerDB) Close() {
	if err := db.db.Close(); err != nil {
		logger.Error("Failed to close BadgerDB", "dir", db.fn, "err", err)
		return
	}
	logger.Info("Database closed", "dir", db.fn)
}

func (db *badgerDB) Type() DBType { return BadgerDB }
