// Package normalize canonicalizes raw textual metadata values so that
// equivalent representations compare equal. Values that look like structured
// JSON are parsed and re-serialized in canonical form (sorted keys, no
// insignificant whitespace); everything else is treated as an opaque string.
// Parse failures never surface as errors.
package normalize

import (
	"encoding/json"
	"strings"
)

// ForComparison canonicalizes a value for equality testing.
// Nil stays nil. The result is trimmed; an all-whitespace value becomes the
// canonical empty string; a parseable JSON value is re-serialized so that
// whitespace and key-order differences compare equal. The result is used
// only for comparison and is never stored or submitted.
func ForComparison(value *string) *string {
	if value == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		empty := ""
		return &empty
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return &trimmed
	}

	canonical, err := json.Marshal(parsed)
	if err != nil {
		return &trimmed
	}

	out := string(canonical)
	return &out
}

// Resolve returns the parsed structured form of a value for use as a patch
// payload. Nil resolves to nil (an explicit clear). An all-whitespace value
// resolves to the empty string, which is a valid payload distinct from nil.
// A value that fails to parse as JSON resolves to the trimmed string.
func Resolve(value *string) any {
	if value == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return ""
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return trimmed
	}

	return parsed
}

// Equal reports whether two values are equal after canonicalization.
// Nil only equals nil; use EqualFoldEmpty where absence and the empty
// string should be treated as the same.
func Equal(a, b *string) bool {
	na, nb := ForComparison(a), ForComparison(b)
	if na == nil || nb == nil {
		return na == nil && nb == nil
	}
	return *na == *nb
}

// EqualFoldEmpty reports whether two values are equal after
// canonicalization, treating nil and the empty string as equivalent.
func EqualFoldEmpty(a, b *string) bool {
	return foldEmpty(a) == foldEmpty(b)
}

func foldEmpty(v *string) string {
	n := ForComparison(v)
	if n == nil {
		return ""
	}
	return *n
}
