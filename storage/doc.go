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

// Package storage defines the persistence contracts shared by projectsearch
// components.
//
// The record store itself lives in memory and is persisted as a whole-file
// JSON snapshot (see package store). This package holds what sits beside it:
// the sentinel errors every persistence path reports through, the vector
// wire encoding, and the EmbeddingCache interface.
//
// # Embedding cache
//
// Embedding a page through an external model is the slowest and most
// expensive step of enrichment. The cache maps a page's content fingerprint
// to the vector computed for it:
//
//	cache, err := badger.OpenEmbeddingCache("/var/lib/projectsearch/embeddings")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Close()
//
// Use in tests with in-memory storage:
//
//	cache, err := badger.NewMemoryCache()
//
// # Errors
//
// Callers test errors with errors.Is against the sentinels in this package.
// ErrNotFound covers both a missing cache entry and an out-of-range store
// position.
package storage
