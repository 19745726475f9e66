package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// NotFoundText is the placeholder rendered for any field that could not be
// extracted or looked up.
const NotFoundText = "Not Found"

// Value is a text field that is either a concrete string or the NotFound
// sentinel. The zero value is NotFound.
type Value struct {
	text  string
	found bool
}

// NotFound is the sentinel for an absent field.
var NotFound = Value{}

// Found wraps a present field value. An empty string is still present.
func Found(s string) Value {
	return Value{text: s, found: true}
}

// ValueOf converts stored text into a Value. Blank cells and the literal
// placeholder both map to NotFound.
func ValueOf(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" || s == NotFoundText {
		return NotFound
	}
	return Found(s)
}

// IsFound reports whether the value is present.
func (v Value) IsFound() bool { return v.found }

// String returns the text, or NotFoundText for the sentinel.
func (v Value) String() string {
	if !v.found {
		return NotFoundText
	}
	return v.text
}

// MarshalJSON renders the value as a plain JSON string.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts a JSON string; the placeholder text decodes to NotFound.
func (v *Value) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == NotFoundText {
		*v = NotFound
		return nil
	}
	*v = Found(s)
	return nil
}

// MarshalYAML renders the value as a plain string.
func (v Value) MarshalYAML() (any, error) {
	return v.String(), nil
}

// Amount is an optional non-negative integer derived from scraped text.
type Amount struct {
	Int64 int64
	Valid bool
}

// Some returns a valid Amount.
func Some(n int64) Amount {
	return Amount{Int64: n, Valid: true}
}

// ParseAmount reads a stored amount. Anything that is not a plain integer is
// treated as absent.
func ParseAmount(s string) Amount {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return Amount{}
	}
	return Some(n)
}

// String returns the decimal value, or NotFoundText when absent.
func (a Amount) String() string {
	if !a.Valid {
		return NotFoundText
	}
	return strconv.FormatInt(a.Int64, 10)
}

// MarshalJSON renders a valid amount as a decimal string, matching how the
// store keeps it, and an absent amount as the placeholder.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*a = ParseAmount(s)
	return nil
}

// MarshalYAML renders the amount as a plain string.
func (a Amount) MarshalYAML() (any, error) {
	return a.String(), nil
}
