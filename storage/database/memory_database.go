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

import "sync"

// memDatabase is the in-memory backend used by tests and dry runs.
type memDatabase struct {
	mu sync.RWMutex
	db map[string][]byte
}

func NewMemDatabase() Database {
	return &memDatabase{db: make(map[string][]byte)}
}

func (db *memDatabase) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.db[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *memDatabase) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if value, ok := db.db[string(key)]; ok {
		return append([]byte(nil), value...), nil
	}
	return nil, ErrKeyNotFound
}

func (db *memDatabase) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.db[string(key)]
	return ok, nil
}

func (db *memDatabase) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.db, string(key))
	return nil
}

func (db *memDatabase) Close() {}

func (db *memDatabase) Type() DBType { return MemoryDB }

// Len reports the number of stored entries.
func (db *memDatabase) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.db)
}
