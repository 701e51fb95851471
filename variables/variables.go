// Package variables resolves ${name} placeholders in timeout specs and
// messages. The enforcement core only depends on the Resolver interface; the
// concrete implementations here cover the common cases (a static map, and a
// pass-through for callers that do not use variables).
package variables

import (
	"fmt"
	"regexp"
	"strings"
)

// Resolver substitutes variable placeholders in a string. Implementations
// return a data-validity error when a referenced variable does not exist.
type Resolver interface {
	ReplaceString(s string) (string, error)
}

var placeholderPattern = regexp.MustCompile(`\$\{([^{}]*)\}`)

// MapResolver resolves ${name} placeholders from a static map. Lookup is
// case-insensitive and ignores spaces and underscores in the variable name,
// so "${Max Time}" and "${max_time}" refer to the same entry.
type MapResolver struct {
	values map[string]string
}

// NewMapResolver creates a MapResolver over the given values.
func NewMapResolver(values map[string]string) *MapResolver {
	normalized := make(map[string]string, len(values))
	for name, value := range values {
		normalized[normalizeName(name)] = value
	}

	return &MapResolver{values: normalized}
}

// ReplaceString substitutes every ${name} placeholder. An unknown variable
// fails the whole replacement.
func (r *MapResolver) ReplaceString(s string) (string, error) {
	var missing string

	replaced := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]

		value, ok := r.values[normalizeName(name)]
		if !ok && missing == "" {
			missing = match
		}

		return value
	})

	if missing != "" {
		return "", fmt.Errorf("variable '%s' not found", missing)
	}

	return replaced, nil
}

func normalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "")
	name = strings.ReplaceAll(name, "_", "")

	return name
}

// NopResolver returns its input unchanged. Useful when timeout specs are
// already concrete.
type NopResolver struct{}

// ReplaceString returns s unchanged and never fails.
func (NopResolver) ReplaceString(s string) (string, error) {
	return s, nil
}

// Compile-time interface checks.
var (
	_ Resolver = (*MapResolver)(nil)
	_ Resolver = NopResolver{}
)
