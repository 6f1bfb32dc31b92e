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

import "github.com/VictoriaMetrics/fastcache"

const cachedDBSizeBytes = 32 * 1024 * 1024

// cachedDB is a write-through byte cache in front of a backend, so repeated
// snapshot reads skip the disk.
type cachedDB struct {
	Database
	cache *fastcache.Cache
}

// NewCachedDatabase wraps db with a fastcache layer.
func NewCachedDatabase(db Database) Database {
	return &cachedDB{Database: db, cache: fastcache.New(cachedDBSizeBytes)}
}

func (db *cachedDB) Put(key []byte, value []byte) error {
	if err := db.Database.Put(key, value); err != nil {
		return err
	}
	db.cache.Set(key, value)
	return nil
}

func (db *cachedDB) Get(key []byte) ([]byte, error) {
	if value, ok := db.cache.HasGet(nil, key); ok {
		return value, nil
	}
	value, err := db.Database.Get(key)
	if err == nil {
		db.cache.Set(key, value)
	}
	return value, err
}

func (db *cachedDB) Has(key []byte) (bool, error) {
	if db.cache.Has(key) {
		return true, nil
	}
	return db.Database.Has(key)
}

func (db *cachedDB) Delete(key []byte) error {
	db.cache.Del(key)
	return db.Database.Delete(key)
}
