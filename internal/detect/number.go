package detect

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

type numberStyle uint8

const (
	allowTrailingSign numberStyle = 1 << iota
	allowDecimal
	allowGroups
)

const (
	integerStyle numberStyle = 0
	numberStyles             = allowTrailingSign | allowDecimal | allowGroups
)

// numberSpace is the whitespace permitted around a number.
const numberSpace = "\t\n\v\f\r "

// normalize rewrites a locale formatted number into the form strconv accepts:
// an optional leading '-', ASCII digits and at most one '.'. It reports false
// if s does not match the grammar for style.
func (l Locale) normalize(s string, style numberStyle) (string, bool) {
	s = strings.Trim(s, numberSpace)

	neg, signed := false, false
	switch {
	case strings.HasPrefix(s, l.Negative):
		neg, signed = true, true
		s = s[len(l.Negative):]
	case strings.HasPrefix(s, l.Positive):
		signed = true
		s = s[len(l.Positive):]
	}
	if !signed && style&allowTrailingSign != 0 {
		switch {
		case strings.HasSuffix(s, l.Negative):
			neg = true
			s = s[:len(s)-len(l.Negative)]
		case strings.HasSuffix(s, l.Positive):
			s = s[:len(s)-len(l.Positive)]
		}
	}

	var b strings.Builder
	b.Grow(len(s) + 1)
	if neg {
		b.WriteByte('-')
	}

	digits, intDigits := 0, 0
	seenDecimal := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
			if !seenDecimal {
				intDigits++
			}
		case style&allowDecimal != 0 && !seenDecimal && r == l.Decimal:
			seenDecimal = true
			b.WriteByte('.')
		case style&allowGroups != 0 && !seenDecimal && intDigits > 0 && l.isGroup(r):
		default:
			return "", false
		}
	}
	if digits == 0 {
		return "", false
	}
	return b.String(), true
}

// parseInt32 parses a locale formatted 32-bit integer: optional surrounding
// whitespace and an optional leading sign.
func (l Locale) parseInt32(s string) (int32, bool) {
	n, ok := l.normalize(s, integerStyle)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(n, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(v), true
}

// parseFloat parses a locale formatted number: surrounding whitespace, a
// leading or trailing sign, group separators in the integral part and one
// decimal separator. Exponents are not accepted. Values beyond the float64
// range become infinities. The symbols "NaN" and "Infinity" (optionally
// signed, any case) are accepted as well.
func (l Locale) parseFloat(s string) (float64, bool) {
	if v, ok := l.parseSymbol(s); ok {
		return v, true
	}
	n, ok := l.normalize(s, numberStyles)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(n, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return v, true
}

const (
	nanSymbol      = "NaN"
	infinitySymbol = "Infinity"
)

func (l Locale) parseSymbol(s string) (float64, bool) {
	s = strings.Trim(s, numberSpace)
	if strings.EqualFold(s, nanSymbol) {
		return math.NaN(), true
	}
	sign := 1
	switch {
	case strings.HasPrefix(s, l.Negative):
		sign, s = -1, s[len(l.Negative):]
	case strings.HasPrefix(s, l.Positive):
		s = s[len(l.Positive):]
	}
	if strings.EqualFold(s, infinitySymbol) {
		return math.Inf(sign), true
	}
	return 0, false
}
