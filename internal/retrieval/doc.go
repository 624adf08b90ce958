// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package retrieval augments prompts with passages from a vector store.
//
// The store exposes named collections. A search returns scored text
// passages which are formatted into a CONTEXT block and folded into the
// system prompt ahead of the user's query:
//
//	client := retrieval.NewClient(retrieval.DefaultConfig())
//	prompt, n := client.Augment(ctx, "docs", systemPrompt, query)
//
// Retrieval is best effort. A failed search logs RAG_SEARCH_FAILED and the
// unmodified system prompt is used.
package retrieval
