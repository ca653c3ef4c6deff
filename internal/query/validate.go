// Package query performs a cheap surface check on generated FOFA queries before they are
// sent to the search API. It does not parse the FOFA grammar; the remote service remains
// the authority on semantic correctness.
package query

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrEmpty is returned for empty or whitespace-only queries
	ErrEmpty = errors.New("query is empty")
	// ErrUnbalancedQuotes is returned when the number of double quotes is odd
	ErrUnbalancedQuotes = errors.New("unbalanced double quotes")
	// ErrUnbalancedParens is returned when opening and closing parentheses differ in count
	ErrUnbalancedParens = errors.New("unbalanced parentheses")
	// ErrNoTerms is returned when the query has neither an operator nor any word character
	ErrNoTerms = errors.New("query contains no field operator or search term")
)

// Check returns the first reason q is malformed, or nil if it passes.
func Check(q string) error {
	if strings.TrimSpace(q) == "" {
		return ErrEmpty
	}

	if strings.Count(q, `"`)%2 != 0 {
		return ErrUnbalancedQuotes
	}

	if strings.Count(q, "(") != strings.Count(q, ")") {
		return ErrUnbalancedParens
	}

	if strings.ContainsAny(q, "=:") {
		return nil
	}

	for _, r := range q {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return nil
		}
	}

	return ErrNoTerms
}

// Validate reports whether q is well-formed enough to send to FOFA.
func Validate(q string) bool {
	return Check(q) == nil
}
