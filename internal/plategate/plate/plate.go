// Package plate canonicalizes recognized plate text and checks it against
// a configurable set of plate-format grammars.
package plate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// DefaultFormats are the plate layouts accepted when no formats are
// configured: ABC-12-34, ABC-123-D, 123-ABC-4 (hyphens optional) and ABC1234.
var DefaultFormats = []string{
	`^[A-Z]{3}-?\d{2}-?\d{2}$`,
	`^[A-Z]{3}-?\d{3}-?[A-Z]$`,
	`^\d{3}-?[A-Z]{3}-?\d$`,
	`^[A-Z]{3}\d{4}$`,
}

// Normalize returns the canonical plate key: every whitespace rune removed
// and letters uppercased. Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw))
}

// Validator matches normalized plates against a fixed set of grammars.
// It is safe for concurrent use.
type Validator struct {
	formats []*regexp.Regexp
}

// NewValidator compiles patterns. An empty list yields DefaultFormats.
func NewValidator(patterns []string) (*Validator, error) {
	if len(patterns) == 0 {
		patterns = DefaultFormats
	}

	v := &Validator{formats: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile plate format %q: %w", p, err)
		}
		v.formats = append(v.formats, re)
	}
	if len(v.formats) == 0 {
		return nil, fmt.Errorf("no plate formats configured")
	}
	return v, nil
}

// MustValidator is NewValidator that panics on a bad pattern. Intended for
// package-level defaults and tests.
func MustValidator(patterns []string) *Validator {
	v, err := NewValidator(patterns)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate reports whether plate matches at least one configured format.
// The input is normalized first.
func (v *Validator) Validate(plate string) bool {
	p := Normalize(plate)
	if p == "" {
		return false
	}
	for _, re := range v.formats {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// Formats returns the source patterns in configuration order.
func (v *Validator) Formats() []string {
	out := make([]string, len(v.formats))
	for i, re := range v.formats {
		out[i] = re.String()
	}
	return out
}
