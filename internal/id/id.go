// Package id generates opaque, URL-safe record identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes used across the library.
const (
	PrefixBook = "bk"
)

// Generate creates a prefixed NanoID, e.g. "bk_V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "_" + nid, nil
}
