// Package validation checks user-supplied names before they reach a store.
package validation

import (
	"strings"
	"unicode"
)

// MaxNameLength bounds column and dataset names.
const MaxNameLength = 255

// IsValidIdentifierChar checks if a character is valid for identifiers
// (alphanumeric, hyphen, or underscore).
//
// Identifiers name command packages, command ids and lens keys.
func IsValidIdentifierChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_'
}

// IsValidIdentifier reports whether id is a non-empty run of identifier characters.
func IsValidIdentifier(id string) bool {
	if id == "" {
		return false
	}
	for _, ch := range id {
		if !IsValidIdentifierChar(ch) {
			return false
		}
	}
	return true
}

// IsValidColumnName checks a column name. After trimming, the name must be
// non-empty, at most MaxNameLength bytes, and free of control characters.
// Any printable text is allowed, including spaces and punctuation.
func IsValidColumnName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxNameLength {
		return false
	}
	for _, ch := range name {
		if unicode.IsControl(ch) || !unicode.IsPrint(ch) {
			return false
		}
	}
	return true
}

// IsValidName checks a dataset name. Dataset names are referenced from
// scripts and lens arguments, so they are restricted to identifier
// characters and inner spaces.
//
// Valid: "people", "my data", "sales_2024-q1"
// Invalid: "", " people", "a/b", "x.y"
func IsValidName(name string) bool {
	if name == "" || len(name) > MaxNameLength {
		return false
	}
	if strings.TrimSpace(name) != name {
		return false
	}
	for _, ch := range name {
		if ch != ' ' && !IsValidIdentifierChar(ch) {
			return false
		}
	}
	return true
}
