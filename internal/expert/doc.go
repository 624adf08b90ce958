// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package expert implements expert mode: the same conversation is sent to
// several candidate models in parallel and a synthesis model merges their
// answers into one response.
//
// Candidates are non-streaming and never touch the transcript. Only the
// synthesis is streamed, through the same assembler as a normal turn, so it
// is the single message committed for the turn.
package expert
