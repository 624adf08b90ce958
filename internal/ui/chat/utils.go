// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// =============================================================================
// TEXT UTILITIES
// =============================================================================

// calculateContentWidth returns totalWidth minus margin, at least 3.
func calculateContentWidth(totalWidth, margin int) int {
	return max(totalWidth-margin, 3)
}

// wrapText wraps text to maxWidth display cells, preserving existing line
// breaks and breaking long lines at spaces where possible.
func wrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return text
	}

	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}
		for runewidth.StringWidth(line) > maxWidth {
			head := runewidth.Truncate(line, maxWidth, "")
			if !strings.HasPrefix(line[len(head):], " ") {
				if cut := strings.LastIndexByte(head, ' '); cut > 0 {
					head = head[:cut]
				}
			}
			if head == "" {
				// A single cell wider than maxWidth.
				_, size := firstRune(line)
				head = line[:size]
			}
			result.WriteString(head)
			result.WriteString("\n")
			line = strings.TrimLeft(line[len(head):], " ")
		}
		result.WriteString(line)
	}
	return result.String()
}

func firstRune(s string) (rune, int) {
	for i, r := range s {
		if i > 0 {
			return r, i
		}
	}
	return 0, len(s)
}

// =============================================================================
// COMMAND ARGUMENTS
// =============================================================================

// parseToggle parses an optional on/off argument; none flips current.
func parseToggle(args []string, current bool) (bool, error) {
	if len(args) == 0 {
		return !current, nil
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return current, fmt.Errorf("expected on or off, got %q", args[0])
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// oneEditApart reports whether a and b differ by exactly one insertion,
// deletion, substitution or adjacent swap.
func oneEditApart(a, b string) bool {
	if a == b {
		return false
	}
	la, lb := len(a), len(b)
	switch {
	case la == lb:
		var diffs []int
		for i := 0; i < la; i++ {
			if a[i] != b[i] {
				diffs = append(diffs, i)
			}
		}
		if len(diffs) == 1 {
			return true
		}
		return len(diffs) == 2 && diffs[1] == diffs[0]+1 &&
			a[diffs[0]] == b[diffs[1]] && a[diffs[1]] == b[diffs[0]]
	case la == lb+1:
		return dropsOne(a, b)
	case lb == la+1:
		return dropsOne(b, a)
	}
	return false
}

// dropsOne reports whether removing one byte from long yields short.
func dropsOne(long, short string) bool {
	i := 0
	for i < len(short) && long[i] == short[i] {
		i++
	}
	return long[i+1:] == short[i:]
}
