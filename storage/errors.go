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

package storage

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrStale indicates that a record changed between being read and being
	// written back.
	ErrStale = errors.New("record changed since it was read")

	// ErrNoEmbedding indicates that a record has no computed embedding.
	ErrNoEmbedding = errors.New("record has no embedding")

	// ErrNotBacked indicates that a store has no backing file to save to.
	ErrNotBacked = errors.New("store has no backing file")

	// ErrIOFailure indicates that reading or writing persistent state failed.
	ErrIOFailure = errors.New("storage I/O failure")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")
)
