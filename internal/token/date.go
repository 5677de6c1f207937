package token

import (
	"strconv"
	"strings"
	"time"
)

const dateExample = "YYYY-MM-DD"

// Date accepts calendar dates written as three hyphen-separated numbers
// (year-month-day). Tokens with a different shape are not candidates.
//
// A token that has already produced a FormatError is treated as not a
// candidate on later calls until Reset, so repeated scans of the same input
// report each bad date once.
type Date struct {
	rejected map[string]struct{}
}

// NewDate returns a Date validator.
func NewDate() *Date { return &Date{rejected: make(map[string]struct{})} }

// Validate implements Validator.
func (d *Date) Validate(tok, _ string, _ Options) (Match, bool, error) {
	if _, seen := d.rejected[tok]; seen {
		return Match{}, false, nil
	}
	if _, ok, err := d.parse(tok); !ok || err != nil {
		return Match{}, false, err
	}
	return Match{Value: tok}, true, nil
}

// parse returns the date at midnight UTC.
func (d *Date) parse(tok string) (time.Time, bool, error) {
	parts := strings.Split(tok, "-")
	if len(parts) != 3 {
		return time.Time{}, false, nil
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return time.Time{}, false, nil
		}
		nums[i] = n
	}
	year, month, day := nums[0], nums[1], nums[2]
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false, d.reject(tok, "%s is not a valid date.")
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false, d.reject(tok, "%s is not a valid date.")
	}
	return t, true, nil
}

func (d *Date) reject(tok, format string) error {
	if d.rejected == nil {
		d.rejected = make(map[string]struct{})
	}
	d.rejected[tok] = struct{}{}
	return &FormatError{Token: tok, Format: format}
}

// Example implements Validator.
func (d *Date) Example() string { return dateExample }

// Reset implements Validator.
func (d *Date) Reset() { d.rejected = make(map[string]struct{}) }

// FutureDate is a Date that must fall strictly after today.
type FutureDate struct {
	Date
	now func() time.Time
}

// NewFutureDate returns a FutureDate validator. A nil clock uses time.Now.
func NewFutureDate(now func() time.Time) *FutureDate {
	if now == nil {
		now = time.Now
	}
	return &FutureDate{Date: Date{rejected: make(map[string]struct{})}, now: now}
}

// Validate implements Validator.
func (f *FutureDate) Validate(tok, _ string, _ Options) (Match, bool, error) {
	if _, seen := f.rejected[tok]; seen {
		return Match{}, false, nil
	}
	t, ok, err := f.parse(tok)
	if !ok || err != nil {
		return Match{}, false, err
	}
	y, m, dd := f.now().Date()
	today := time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
	if !t.After(today) {
		return Match{}, false, f.reject(tok, "%s is not in the future.")
	}
	return Match{Value: tok}, true, nil
}
