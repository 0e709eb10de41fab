// Package guard implements the credential and forwarding-loop checks shared
// by both operating modes.
package guard

import (
	"strconv"
	"strings"
)

const DefaultMaxHops = 5

// ConstantTimeEqual reports whether a and b are equal without an early exit
// that depends on where they first differ. Unequal lengths are rejected up
// front; equal-length inputs are always compared over their full length by
// accumulating XORed bytes.
func ConstantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var out byte
	for i := 0; i < len(a); i++ {
		out |= a[i] ^ b[i]
	}
	return out == 0
}

// AnyKeyMatches reports whether the presented credential equals any of the
// configured keys. A blank credential never matches.
func AnyKeyMatches(provided string, allowedKeys []string) bool {
	p := strings.TrimSpace(provided)
	if p == "" {
		return false
	}
	matched := false
	for _, k := range allowedKeys {
		if ConstantTimeEqual(p, k) {
			matched = true
		}
	}
	return matched
}

// NextHop parses the inbound hop header (absent or non-numeric counts as 0)
// and returns the incremented hop count together with whether the bound is
// still respected.
func NextHop(header string, maxHops int) (hop int, ok bool) {
	if maxHops < 1 {
		maxHops = DefaultMaxHops
	}
	prev := 0
	if s := strings.TrimSpace(header); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			prev = n
		}
	}
	hop = prev + 1
	return hop, hop <= maxHops
}

// EndpointMatches applies the optional expected-endpoint pin. An empty
// expectation always passes; otherwise the path-derived id must match exactly.
func EndpointMatches(expected, presented string) bool {
	expected = strings.TrimSpace(expected)
	return expected == "" || expected == presented
}
