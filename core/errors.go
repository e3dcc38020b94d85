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

package core

import "errors"

// Domain validation errors
var (
	// ErrMalformed indicates a page payload does not decode into a known variant.
	ErrMalformed = errors.New("malformed page")

	// ErrInvalidPage indicates a Page failed validation.
	ErrInvalidPage = errors.New("invalid page")

	// ErrEmptyKey indicates the natural key field of a page is empty.
	ErrEmptyKey = errors.New("page key cannot be empty")

	// ErrInvalidComputedData indicates a ComputedData failed validation.
	ErrInvalidComputedData = errors.New("invalid computed data")
)
