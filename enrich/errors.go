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

package enrich

import "errors"

var (
	// ErrTargetRequired is returned when a target store is not provided.
	ErrTargetRequired = errors.New("target store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmbeddingTooShort is returned when a model produces fewer dimensions
	// than a stored embedding holds.
	ErrEmbeddingTooShort = errors.New("embedding has too few dimensions")

	// ErrResultMismatch is returned when the embedder returns a different
	// number of vectors than texts it was given.
	ErrResultMismatch = errors.New("embedding result count mismatch")
)
