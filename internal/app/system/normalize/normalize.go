// Package normalize canonicalizes client input before it is stored,
// compared or parsed.
package normalize

import (
	"strconv"
	"strings"
)

// Email is the lookup form of an address: trimmed and lowercased.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a file or folder name.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Param trims a query or path parameter.
func Param(s string) string {
	return strings.TrimSpace(s)
}

// RootParent reports whether a parentId value denotes the root. Existing
// clients send 0, "0" or an empty value for "no parent".
func RootParent(s string) bool {
	s = Param(s)
	return s == "" || s == "0"
}

// Page parses a 0-based page number. Anything unparsable or negative is
// the first page.
func Page(s string) int {
	n, err := strconv.Atoi(Param(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
