package models

import (
	"sort"
	"strings"
)

// Scope is a named permission level attached to a bearer token.
type Scope string

const (
	ScopeAdmin   Scope = "admin"
	ScopeGateway Scope = "gateway"
	ScopeRead    Scope = "read"
)

// ScopeSet is the parsed set of scopes carried by a token. Tokens persist
// scopes as a comma-separated string; parse once, check many times.
type ScopeSet map[Scope]bool

// ParseScopes parses a comma-separated scope string into a ScopeSet.
// Unknown scope names are kept as-is; they simply never match a known check.
func ParseScopes(s string) ScopeSet {
	set := make(ScopeSet)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			set[Scope(part)] = true
		}
	}
	return set
}

// Has reports whether the set satisfies the required scope.
// The admin scope satisfies every check.
func (s ScopeSet) Has(required Scope) bool {
	if s[ScopeAdmin] {
		return true
	}
	return s[required]
}

// String renders the set back to its comma-separated storage form.
func (s ScopeSet) String() string {
	parts := make([]string, 0, len(s))
	for scope, ok := range s {
		if ok {
			parts = append(parts, string(scope))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
