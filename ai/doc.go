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

// Package ai provides the abstraction for the external embedding service
// that enriches project pages.
//
// Pages are ranked by text alone, but similarity lookups need an embedding
// per page. Those come from a model served over an OpenAI-compatible API.
// This package defines the Embedder interface the enrichment pipeline
// depends on, and its configuration.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test double for unit testing without external dependencies
//
// The production constructor returns the interface type; the mock
// constructor returns the concrete type so tests can inject behavior and
// assert on call counts.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithEmbeddingModel("nomic-embed-text"))
//	embedder, err := openai.NewEmbedder(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	vec, err := embedder.EmbedText(ctx, "a sand simulator for robots")
//
// Models rarely emit exactly core.EmbeddingDim dimensions. The enrichment
// pipeline down-projects longer vectors to fit; shorter ones are rejected.
package ai
