package intel

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/handiism/quartus-catalog/internal/model"
)

// editionTokens maps title words to editions.
var editionTokens = map[string]model.Edition{
	"Pro":      model.EditionPro,
	"Standard": model.EditionStandard,
	"Lite":     model.EditionLite,
}

// platformTokens maps title words to platforms.
var platformTokens = map[string]model.Platform{
	"Windows": model.PlatformWindows,
	"Linux":   model.PlatformLinux,
}

// ClassificationError is returned when a title names no category, or more
// than one, from a lookup table.
type ClassificationError struct {
	Kind    string
	Title   string
	Matches []string
}

func (e *ClassificationError) Error() string {
	if len(e.Matches) == 0 {
		return fmt.Sprintf("unknown %s for %q", e.Kind, e.Title)
	}
	return fmt.Sprintf("ambiguous %s for %q: %s", e.Kind, e.Title, strings.Join(e.Matches, ", "))
}

// ClassifyEdition finds the single edition named in a page title.
func ClassifyEdition(title string) (model.Edition, error) {
	return lookupOne(title, "edition", editionTokens)
}

// ClassifyPlatform finds the single platform named in a page title.
func ClassifyPlatform(title string) (model.Platform, error) {
	return lookupOne(title, "platform", platformTokens)
}

// classifyPlatformOptional is ClassifyPlatform for pages that may omit the
// platform. No match yields PlatformUnknown, several matches still fail.
func classifyPlatformOptional(title string) (model.Platform, error) {
	p, err := ClassifyPlatform(title)
	var ce *ClassificationError
	if errors.As(err, &ce) && len(ce.Matches) == 0 {
		return model.PlatformUnknown, nil
	}
	return p, err
}

func lookupOne[T comparable](title, kind string, table map[string]T) (T, error) {
	var (
		found   T
		matches []string
	)
	seen := make(map[T]bool)
	for _, word := range titleWords(title) {
		v, ok := table[word]
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		found = v
		matches = append(matches, word)
	}

	if len(matches) != 1 {
		var zero T
		return zero, &ClassificationError{Kind: kind, Title: title, Matches: matches}
	}
	return found, nil
}

// titleWords splits a title into runs of letters and digits, so that
// "Intel® Quartus® Prime Pro Edition" yields "Pro" but "Product" does not.
func titleWords(title string) []string {
	return strings.FieldsFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
