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
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

const (
	ldbCacheSizeMB = 16
	ldbHandles     = 16
)

type levelDB struct {
	fn string
	db *leveldb.DB
}

func getLDBOptions() *opt.Options {
	return &opt.Options{
		OpenFilesCacheCapacity: ldbHandles,
		BlockCacheCapacity:     ldbCacheSizeMB / 2 * opt.MiB,
		WriteBuffer:            ldbCacheSizeMB / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	}
}

// NewLDBDatabase opens the snapshot store at dir, recovering a corrupted
// store if needed.
func NewLDBDatabase(dir string) (Database, error) {
	db, err := leveldb.OpenFile(dir, getLDBOptions())
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("Allocated LevelDB", "dir", dir)
	return &levelDB{fn: dir, db: db}, nil
}

func (db *levelDB) Put(key []byte, value []byte) error {
	return db.db.Put(key, value, nil)
}

func (db *levelDB) Get(key []byte) ([]byte, error) {
	value, err := db.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrKeyNotFound
	}
	return value, err
}

func (db *levelDB) Has(key []byte) (bool, error) {
	return db.db.Has(key, nil)
}

func (db *levelDB) Delete(key []byte) error {
	return db.db.Delete(key, nil)
}

func (db *levelDB) Close() {
	if err := db.db.Close(); err != nil {
		logger.Error("Failed to close LevelDB", "dir", db.fn, "err", err)
		return
	}
	logger.Info("Database closed", "dir", db.fn)
}

func (db *levelDB) Type() DBType { return LevelDB }
