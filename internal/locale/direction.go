// Package locale resolves the reading direction of the requested display language.
package locale

import (
	"golang.org/x/text/language"

	"github.com/stemsi/quiz-overview/internal/binning"
)

var rtlScripts = map[string]struct{}{
	"Arab": {},
	"Hebr": {},
	"Syrc": {},
	"Thaa": {},
	"Nkoo": {},
	"Adlm": {},
	"Rohg": {},
}

// Direction returns the reading direction of a BCP 47 tag such as "he" or "ar-EG".
// Unparseable tags read left to right.
func Direction(tag string) binning.Direction {
	if tag == "" {
		return binning.LeftToRight
	}
	t, err := language.Parse(tag)
	if err != nil {
		return binning.LeftToRight
	}
	script, _ := t.Script()
	if _, ok := rtlScripts[script.String()]; ok {
		return binning.RightToLeft
	}
	return binning.LeftToRight
}

// FromAcceptLanguage picks the direction of the most preferred language in an
// Accept-Language header.
func FromAcceptLanguage(header string) binning.Direction {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return binning.LeftToRight
	}
	return Direction(tags[0].String())
}
