package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// referenceAlphabet drops look-alike characters so references can be read
// aloud at the desk.
const referenceAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// ReferenceLength is the length of the random part of a reference.
const ReferenceLength = 12

// Prefix for rent references.
const RentPrefix = "rent"

// Generate creates a prefixed reference code using NanoID.
// Format: prefix_RANDOM (e.g., "rent_7KQ2M9XH4PZC").
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	code, err := gonanoid.Generate(referenceAlphabet, ReferenceLength)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "_" + code, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// HasPrefix reports whether ref was generated with prefix and has a
// well-formed random part.
func HasPrefix(ref, prefix string) bool {
	code, ok := strings.CutPrefix(ref, prefix+"_")
	if !ok || len(code) != ReferenceLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(referenceAlphabet, r) {
			return false
		}
	}
	return true
}
