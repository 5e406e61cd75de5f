// Package validation collects field-level input violations.
package validation

import (
	"errors"
	"net/mail"
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"
)

// Violations maps a field name to a snake_case reason.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err returns nil when there are no violations, an *Error otherwise.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &Error{Violations: v}
}

// ErrInvalid is matched by every *Error through errors.Is.
var ErrInvalid = errors.New("validation error")

// Error carries violations through service boundaries.
type Error struct {
	Violations Violations
}

func (e *Error) Unwrap() error { return ErrInvalid }

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f, reason := range e.Violations {
		fields = append(fields, f+"="+reason)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func RequiredID(field string, id uint, v Violations) {
	if id == 0 {
		v[field] = "required"
	}
}

func PositiveFloat(field string, val float64, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

func NonNegativeFloat(field string, val float64, v Violations) {
	if val < 0 {
		v[field] = "must_not_be_negative"
	}
}

func RangeFloat(field string, val, minVal, maxVal float64, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

func MaxLen(field, value string, n int, v Violations) {
	if utf8.RuneCountInString(value) > n {
		v[field] = "too_long"
	}
}

// OneOf accepts an empty value; pair it with Required when the field is mandatory.
func OneOf(field, value string, allowed []string, v Violations) {
	if value != "" && !slices.Contains(allowed, value) {
		v[field] = "invalid_choice"
	}
}

// Email accepts an empty value.
func Email(field, value string, v Violations) {
	if value == "" {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		v[field] = "invalid_email"
	}
}

var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

// GSTIN checks the 15-character Indian GST identification number layout. Empty is accepted.
func GSTIN(field, value string, v Violations) {
	if value != "" && !gstinPattern.MatchString(value) {
		v[field] = "invalid_gstin"
	}
}
