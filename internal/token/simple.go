package token

import (
	"regexp"
	"strings"
)

// timespanRE matches "<1-3 digits> <unit>" across the previous and current token.
var timespanRE = regexp.MustCompile(`(?i)^\d{1,3} (day|days|month|months|year|years)$`)

// Timespan matches a two-token span such as "3 days" or "1 year". The match
// consumes the previous token as well. It never returns a FormatError since a
// lone number or unit is ambiguous rather than wrong.
type Timespan struct{}

// Validate implements Validator.
func (Timespan) Validate(tok, prev string, _ Options) (Match, bool, error) {
	if prev == "" {
		return Match{}, false, nil
	}
	span := prev + " " + tok
	if !timespanRE.MatchString(span) {
		return Match{}, false, nil
	}
	return Match{Value: strings.ToLower(span), WithPrevious: true}, true, nil
}

// Example implements Validator.
func (Timespan) Example() string { return "X (days|months|years)" }

// Reset implements Validator.
func (Timespan) Reset() {}

// Toggle maps enable/activate to "enable" and disable/deactivate to "disable".
type Toggle struct{}

// Validate implements Validator.
func (Toggle) Validate(tok, _ string, _ Options) (Match, bool, error) {
	switch strings.ToLower(tok) {
	case "enable", "activate":
		return Match{Value: "enable"}, true, nil
	case "disable", "deactivate":
		return Match{Value: "disable"}, true, nil
	}
	return Match{}, false, nil
}

// Example implements Validator.
func (Toggle) Example() string { return "enable|disable" }

// Reset implements Validator.
func (Toggle) Reset() {}

// Search accepts any token not listed in the slot's exclusion list.
type Search struct{}

// Validate implements Validator.
func (Search) Validate(tok, _ string, opts Options) (Match, bool, error) {
	if tok == "" || opts.Excludes(tok) {
		return Match{}, false, nil
	}
	return Match{Value: tok}, true, nil
}

// Example implements Validator.
func (Search) Example() string { return "anything" }

// Reset implements Validator.
func (Search) Reset() {}

// CatchAll implements CatchAll.
func (Search) CatchAll() bool { return true }
