// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation prompts for destructive CLI commands.
//
// Commands that destroy data follow one pattern:
//  1. A --yes flag proceeds without prompting
//  2. Without a TTY the command fails and asks for --yes
//  3. Otherwise the user is prompted
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ShowCancellationMessage displays a standard cancellation message.
func ShowCancellationMessage() {
	fmt.Println()
	fmt.Println(RenderConditional(DimStyle, "Cancelled."))
	fmt.Println()
}

// PromptYesNo prompts the user with a yes/no question.
// Returns false if stdin is not a TTY.
func PromptYesNo(question string) bool {
	if !IsTTY() {
		return false
	}
	return promptYesNo(os.Stdout, os.Stdin, question)
}

// promptYesNo asks question on w and reads the answer from r. Only "y"
// and "yes" confirm.
func promptYesNo(w io.Writer, r io.Reader, question string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", question)

	input, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && input == "" {
		return false
	}
	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes"
}

// PromptOverwrite asks before replacing an existing file. force skips the
// prompt. Without a TTY an existing file is never replaced.
func PromptOverwrite(path string, force bool) bool {
	if force {
		return true
	}
	if _, err := os.Stat(path); err != nil {
		return true
	}
	return PromptYesNo(fmt.Sprintf("%s exists. Overwrite?", path))
}
