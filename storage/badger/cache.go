// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/projectsearch/core"
	"github.com/poiesic/projectsearch/storage"
)

// EmbeddingCache implements storage.EmbeddingCache for BadgerDB.
type EmbeddingCache struct {
	backend    *Backend
	ownBackend bool
}

var _ storage.EmbeddingCache = (*EmbeddingCache)(nil)

// NewEmbeddingCache creates a cache on an already open backend. Closing the
// cache leaves the backend open.
func NewEmbeddingCache(backend *Backend) *EmbeddingCache {
	return &EmbeddingCache{
		backend: backend,
	}
}

// OpenEmbeddingCache opens a cache in its own database directory.
// Closing the cache closes the database.
func OpenEmbeddingCache(dirPath string) (storage.EmbeddingCache, error) {
	backend, err := OpenBackend(dirPath, false)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return &EmbeddingCache{backend: backend, ownBackend: true}, nil
}

// Get retrieves the vector cached under fp.
func (c *EmbeddingCache) Get(ctx context.Context, fp core.Fingerprint) ([]float32, error) {
	if c.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var vec []float32
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEmbeddingKey(fp))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: embedding %016x", storage.ErrNotFound, uint64(fp))
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var decodeErr error
			vec, decodeErr = storage.DecodeVector(val)
			return decodeErr
		})
	}, false)

	return vec, err
}

// Put persists vec under fp.
func (c *EmbeddingCache) Put(ctx context.Context, fp core.Fingerprint, vec []float32) error {
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return c.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeEmbeddingKey(fp), storage.EncodeVector(vec)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Delete removes the vector cached under fp.
func (c *EmbeddingCache) Delete(ctx context.Context, fp core.Fingerprint) error {
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return c.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeEmbeddingKey(fp)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Count returns the number of cached vectors.
func (c *EmbeddingCache) Count(ctx context.Context) (int, error) {
	if c.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	}, false)

	return count, err
}

// Close closes the underlying database if the cache opened it.
func (c *EmbeddingCache) Close() error {
	if !c.ownBackend || c.backend.IsClosed() {
		return nil
	}
	return c.backend.Close()
}
