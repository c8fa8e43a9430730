// Package detect infers the type of an untyped flag value and converts it to
// a typed representation.
//
// Classification is an ordered first-match cascade: Boolean, Integer, Double,
// Structured, String. Integer is tried before Double, so "42" is an integer.
// "NaN" and "Infinity" are doubles.
// The structured checks compare the opening delimiter against the
// trimmed value and the closing delimiter against the raw value (the array
// check uses the raw value on both ends); values with trailing whitespace
// after a closing brace fall through to String.
package detect

import (
	"errors"
	"fmt"
	"strings"
)

// Type is the inferred type of a flag value.
type Type int

const (
	TypeNone Type = iota
	TypeBoolean
	TypeInteger
	TypeDouble
	TypeString
	TypeStructured
)

var typeNames = [...]string{
	TypeNone:       "none",
	TypeBoolean:    "boolean",
	TypeInteger:    "integer",
	TypeDouble:     "double",
	TypeString:     "string",
	TypeStructured: "structured",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ErrUnsupportedType is returned when no rule accepts a value.
var ErrUnsupportedType = errors.New("unsupported value type")

// UnsupportedTypeError carries the value that could not be classified.
type UnsupportedTypeError struct {
	Value string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedType, e.Value)
}

func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}

// Value is a converted flag value. Exactly one field matching Type is set.
type Value struct {
	Type      Type
	Boolean   bool
	Integer   int32
	Double    float64
	String    string
	Structure []byte
}

// rule classifies and converts a value in one step.
type rule struct {
	typ   Type
	name  string
	parse func(l Locale, value string) (Value, bool)
}

var defaultRules = []rule{
	{TypeBoolean, "boolean", parseBoolean},
	{TypeInteger, "integer", parseInteger},
	{TypeDouble, "double", parseDouble},
	{TypeStructured, "json", parseJSON},
	{TypeStructured, "xml", parseXML},
	{TypeStructured, "yaml", parseYAML},
	{TypeString, "string", parseString},
}

// Detector classifies values using a fixed locale. A Detector is immutable
// and safe for concurrent use.
type Detector struct {
	locale Locale
	rules  []rule
}

// Option configures a Detector.
type Option func(*Detector)

// WithLocale sets the locale used to parse numbers.
func WithLocale(l Locale) Option {
	return func(d *Detector) { d.locale = l }
}

// New returns a Detector using the Invariant locale unless overridden.
func New(opts ...Option) *Detector {
	d := &Detector{locale: Invariant, rules: defaultRules}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Locale returns the locale the detector parses numbers with.
func (d *Detector) Locale() Locale {
	return d.locale
}

// Detect returns the type of value.
func (d *Detector) Detect(value string) (Type, error) {
	v, err := d.Resolve(value)
	if err != nil {
		return TypeNone, err
	}
	return v.Type, nil
}

// Resolve classifies value and converts it to its typed representation.
func (d *Detector) Resolve(value string) (Value, error) {
	for _, r := range d.rules {
		if v, ok := r.parse(d.locale, value); ok {
			v.Type = r.typ
			return v, nil
		}
	}
	return Value{}, &UnsupportedTypeError{Value: value}
}

func parseBoolean(_ Locale, value string) (Value, bool) {
	switch s := strings.TrimSpace(value); {
	case strings.EqualFold(s, "true"):
		return Value{Boolean: true}, true
	case strings.EqualFold(s, "false"):
		return Value{Boolean: false}, true
	}
	return Value{}, false
}

func parseInteger(l Locale, value string) (Value, bool) {
	n, ok := l.parseInt32(value)
	return Value{Integer: n}, ok
}

func parseDouble(l Locale, value string) (Value, bool) {
	f, ok := l.parseFloat(value)
	return Value{Double: f}, ok
}

func parseJSON(_ Locale, value string) (Value, bool) {
	trimmed := strings.TrimSpace(value)
	object := strings.HasPrefix(trimmed, "{") && strings.HasSuffix(value, "}")
	array := strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]")
	return structured(value, object || array)
}

func parseXML(_ Locale, value string) (Value, bool) {
	trimmed := strings.TrimSpace(value)
	return structured(value, strings.HasPrefix(trimmed, "<") && strings.HasSuffix(value, ">"))
}

func parseYAML(_ Locale, value string) (Value, bool) {
	return structured(value, strings.HasPrefix(strings.TrimSpace(value), "---"))
}

func structured(value string, ok bool) (Value, bool) {
	if !ok {
		return Value{}, false
	}
	return Value{Structure: []byte(value)}, true
}

func parseString(_ Locale, value string) (Value, bool) {
	return Value{String: value}, true
}
