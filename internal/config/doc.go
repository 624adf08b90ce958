// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for rigchat.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ChatConfig: Provider endpoint, key, model and sampling settings
//   - ExpertConfig: Candidate and synthesis models for expert mode
//   - StorageConfig: Transcript backend (file, sqlite, memory)
//   - RetrievalConfig: Vector store used to augment prompts
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command-line flags (merged by the caller)
//   - Environment variables (RIGCHAT_*, VENICE_API_KEY)
//   - ~/.rigchat/config.toml
//   - ~/.rigchat/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil && cfg == nil {
//	    log.Fatal(err)
//	}
//
// Watch a file for edits:
//
//	config.Watch(ctx, path, func(cfg *config.Config, err error) { ... })
package config
