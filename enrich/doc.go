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

// Package enrich attaches embeddings to stored project pages.
//
// A Pipeline reads pages from a Target (normally *store.Store), builds each
// page's embedding text, asks an ai.Embedder for vectors in batches on an
// ants worker pool, fits them to core.EmbeddingDim, and writes them back as
// ComputedData. The store lock is never held while the embedder runs: pages
// are read, the lock is released, and the write-back is guarded by the
// page's content fingerprint so a page overwritten mid-flight is skipped
// rather than given a stale vector.
//
// An optional storage.EmbeddingCache short-circuits the embedder for pages
// whose content was embedded before.
package enrich
