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
	"github.com/pkg/errors"

	"github.com/powsim/powsim/log"
)

var logger = log.NewModuleLogger(log.Storage)

// DBType selects the snapshot store backend.
type DBType string

const (
	MemoryDB DBType = "memory"
	LevelDB  DBType = "leveldb"
	BadgerDB DBType = "badger"
)

// Database is the narrow key-value surface the snapshot writer needs.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	Close()
	Type() DBType
}

// DBConfig bundles backend selection and location.
type DBConfig struct {
	Type DBType
	Dir  string
}

// NewDatabase opens the configured backend.
func NewDatabase(dbc *DBConfig) (Database, error) {
	switch dbc.Type {
	case MemoryDB:
		return NewMemDatabase(), nil
	case LevelDB:
		db, err := NewLDBDatabase(dbc.Dir)
		return db, errors.Wrap(err, "failed to open leveldb")
	case BadgerDB:
		db, err := NewBadgerDatabase(dbc.Dir)
		return db, errors.Wrap(err, "failed to open badger")
	default:
		return nil, errors.Errorf("unknown database type %q", dbc.Type)
	}
}

// ErrKeyNotFound is returned by Get when no entry exists.
var ErrKeyNotFound = errors.New("database: key not found")
