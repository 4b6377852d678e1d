// Package location canonicalizes free-text place names and decides whether a
// candidate place satisfies a searched one.
package location

import (
	"strings"
	"unicode"
)

// Normalize lower-cases s, replaces punctuation with spaces and collapses
// runs of whitespace.
func Normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// Primary returns the normalized first comma-separated segment of s, which
// for "Paris, France" is "paris".
func Primary(s string) string {
	head, _, _ := strings.Cut(s, ",")
	return Normalize(head)
}

// maxVariants bounds the expansions of one name.
const maxVariants = 16

// Variants returns the normalized form of s plus every expansion of the
// abbreviations it uses. An abbreviation is only expanded where it stands as
// a whole comma segment or ends one ("Austin, TX", "Chennai TN"); full
// names are never contracted, so two full names cannot meet through a
// shared abbreviation. An input that normalizes to nothing is returned
// unchanged.
func Variants(s string) []string {
	n := Normalize(s)
	if n == "" {
		return []string{s}
	}

	var options [][]string
	for _, segment := range strings.Split(s, ",") {
		words := strings.Fields(Normalize(segment))
		for i, w := range words {
			opts := []string{w}
			if i == len(words)-1 {
				opts = append(opts, abbreviations[w]...)
			}
			options = append(options, opts)
		}
	}

	forms := []string{""}
	for _, opts := range options {
		next := make([]string, 0, len(forms)*len(opts))
		for _, f := range forms {
			for _, o := range opts {
				if len(next) == maxVariants {
					break
				}
				next = append(next, strings.TrimSpace(f+" "+o))
			}
		}
		forms = next
	}
	// forms[0] keeps every word as written, which is n.
	return forms
}
