package detect

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Locale holds the number formatting symbols used when classifying and
// converting numeric values.
type Locale struct {
	Tag      language.Tag
	Decimal  rune
	Group    rune
	Negative string
	Positive string
}

// Invariant formats numbers with '.' as the decimal separator and ',' as the
// group separator, independent of any language.
var Invariant = Locale{
	Tag:      language.Und,
	Decimal:  '.',
	Group:    ',',
	Negative: "-",
	Positive: "+",
}

// Languages whose conventional decimal separator is a comma, with their group
// separator.
var commaDecimalGroups = map[string]rune{
	"da": '.',
	"de": '.',
	"el": '.',
	"es": '.',
	"id": '.',
	"it": '.',
	"nl": '.',
	"pt": '.',
	"ro": '.',
	"sl": '.',
	"tr": '.',
	"vi": '.',
	"cs": '\u00a0',
	"fi": '\u00a0',
	"fr": '\u202f',
	"hu": '\u00a0',
	"nb": '\u00a0',
	"pl": '\u00a0',
	"ru": '\u00a0',
	"sk": '\u00a0',
	"sv": '\u00a0',
	"uk": '\u00a0',
}

// Regions that override their language's convention.
var regionOverrides = map[string]Locale{
	"de-CH": {Decimal: '.', Group: '\''},
	"it-CH": {Decimal: '.', Group: '\''},
	"fr-CH": {Decimal: '.', Group: '\u202f'},
	"pt-BR": {Decimal: ',', Group: '.'},
}

// LocaleFor derives number formatting symbols for a language tag.
func LocaleFor(tag language.Tag) Locale {
	if tag == language.Und {
		return Invariant
	}

	l := Invariant
	l.Tag = tag

	base, _ := tag.Base()
	if group, ok := commaDecimalGroups[base.String()]; ok {
		l.Decimal = ','
		l.Group = group
	}

	if region, conf := tag.Region(); conf == language.Exact {
		if o, ok := regionOverrides[base.String()+"-"+region.String()]; ok {
			l.Decimal = o.Decimal
			l.Group = o.Group
		}
	}
	return l
}

// ParseLocale parses a BCP 47 tag. The empty string, "und" and "invariant"
// select the Invariant locale.
func ParseLocale(s string) (Locale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "und", "invariant":
		return Invariant, nil
	}
	tag, err := language.Parse(s)
	if err != nil {
		return Locale{}, fmt.Errorf("parse locale %q: %w", s, err)
	}
	return LocaleFor(tag), nil
}

// String returns the BCP 47 tag of the locale.
func (l Locale) String() string {
	return l.Tag.String()
}

// isGroup reports whether r separates digit groups. Locales grouping with a
// non-breaking space also accept a plain space.
func (l Locale) isGroup(r rune) bool {
	if r == l.Group {
		return true
	}
	return r == ' ' && (l.Group == '\u00a0' || l.Group == '\u202f')
}
