// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small file and text helpers shared by the storage,
// export and CLI layers.
//
//   - AtomicWriteFile: temp file + fsync + rename
//   - Truncate / Oneline: display-width aware shortening for listings
package util
