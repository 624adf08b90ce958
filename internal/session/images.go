// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// MaxImageBytes bounds an attached image file.
const MaxImageBytes = 10 << 20

// ImageURL resolves an image reference for Turn.Images. data:, http: and
// https: URLs are returned unchanged; anything else is read as a file and
// encoded as a base64 data: URL.
func ImageURL(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty image reference")
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "data:image/") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		return ref, nil
	}

	info, err := os.Stat(ref)
	if err != nil {
		return "", fmt.Errorf("image: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("image: %s is a directory", ref)
	}
	if info.Size() > MaxImageBytes {
		return "", fmt.Errorf("image: %s is %d bytes (max %d)", ref, info.Size(), MaxImageBytes)
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("image: %w", err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("image: %s is %s, not an image", ref, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
