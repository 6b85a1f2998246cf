// Package dateutils provides the date parsing and format translation used
// by the import pipeline. Templates declare their date format in the
// conventional dd/MM/yyyy notation; this package translates that notation
// into Go layouts and Postgres to_date patterns.
package dateutils

import (
	"fmt"
	"strings"
	"time"
)

// DateLayoutISO is the canonical output format of the pipeline.
const DateLayoutISO = "2006-01-02"

// CommonLayouts is a list of fallback layouts tried when a value does not
// match the template's declared format. Real exports mix formats more often
// than their documentation admits.
var CommonLayouts = []string{
	DateLayoutISO,
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
}

// patternToGo maps dd/MM/yyyy-style tokens to Go reference-time tokens.
// Longest tokens first so "yyyy" wins over "yy".
var patternToGo = []struct{ from, to string }{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"dd", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

// patternToPostgres maps the same tokens to Postgres to_date patterns.
var patternToPostgres = []struct{ from, to string }{
	{"yyyy", "YYYY"},
	{"yy", "YY"},
	{"MMMM", "FMMonth"},
	{"MMM", "Mon"},
	{"MM", "MM"},
	{"dd", "DD"},
}

// GoLayout translates a dd/MM/yyyy-style pattern into a Go time layout.
// An empty pattern translates to the ISO layout.
func GoLayout(pattern string) string {
	if pattern == "" {
		return DateLayoutISO
	}
	layout := pattern
	for _, m := range patternToGo {
		layout = strings.ReplaceAll(layout, m.from, m.to)
	}
	return layout
}

// PostgresFormat translates a dd/MM/yyyy-style pattern into the format
// string expected by Postgres to_date().
func PostgresFormat(pattern string) string {
	if pattern == "" {
		return "YYYY-MM-DD"
	}
	format := pattern
	for _, m := range patternToPostgres {
		format = strings.ReplaceAll(format, m.from, m.to)
	}
	return format
}

// Parse parses a date string, trying the template's declared pattern first
// and the common fallback layouts after it.
func Parse(value, pattern string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if pattern != "" {
		if t, err := time.Parse(GoLayout(pattern), value); err == nil {
			return t, nil
		}
	}
	for _, layout := range CommonLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", value)
}

// ToISO normalizes a date string to YYYY-MM-DD using Parse.
func ToISO(value, pattern string) (string, error) {
	t, err := Parse(value, pattern)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayoutISO), nil
}
