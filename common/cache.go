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

package common

import (
	"github.com/pkg/errors"

	lru "github.com/hashicorp/golang-lru"
)

// CacheKey is a comparable cache key, typically a Hash.
type CacheKey interface{}

type Cache interface {
	Add(key CacheKey, value interface{}) (evicted bool)
	Get(key CacheKey) (value interface{}, ok bool)
	Contains(key CacheKey) bool
	Remove(key CacheKey)
	Len() int
	Purge()
}

type CacheConfiger interface {
	newCache() (Cache, error)
}

func NewCache(config CacheConfiger) (Cache, error) {
	if config == nil {
		return nil, errors.New("cache config is nil")
	}
	return config.newCache()
}

type LRUConfig struct {
	CacheSize int
}

func (c LRUConfig) newCache() (Cache, error) {
	inner, err := lru.New(c.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create lru cache")
	}
	return &lruCache{inner}, nil
}

type lruCache struct {
	lru *lru.Cache
}

func (cache *lruCache) Add(key CacheKey, value interface{}) (evicted bool) {
	return cache.lru.Add(key, value)
}

func (cache *lruCache) Get(key CacheKey) (value interface{}, ok bool) {
	return cache.lru.Get(key)
}

func (cache *lruCache) Contains(key CacheKey) bool {
	return cache.lru.Contains(key)
}

func (cache *lruCache) Remove(key CacheKey) {
	cache.lru.Remove(key)
}

func (cache *lruCache) Len() int {
	return cache.lru.Len()
}

func (cache *lruCache) Purge() {
	cache.lru.Purge()
}
