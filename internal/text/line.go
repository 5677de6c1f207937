// Package text wraps a single inbound chat line and its whitespace-split
// tokens. Comparisons are case-insensitive using Unicode case folding so that
// "Cancel", "CANCEL" and "cancel" are treated alike by every caller.
package text

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// fold returns the case-folded form of s. A cases.Caser is stateful, so one
// is built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Line is one inbound line of text plus its tokens.
type Line struct {
	raw    string
	tokens []string
}

// NewLine trims surrounding whitespace and splits raw on runs of whitespace.
func NewLine(raw string) Line {
	raw = strings.TrimSpace(raw)
	return Line{raw: raw, tokens: strings.Fields(raw)}
}

// Text returns the trimmed line.
func (l Line) Text() string { return l.raw }

// Tokens returns a copy of the whitespace-split tokens.
func (l Line) Tokens() []string {
	out := make([]string, len(l.tokens))
	copy(out, l.tokens)
	return out
}

// Empty reports whether the line has no tokens.
func (l Line) Empty() bool { return len(l.tokens) == 0 }

// Is reports whether the whole line equals s, ignoring case and collapsing
// inner whitespace.
func (l Line) Is(s string) bool {
	return fold(strings.Join(l.tokens, " ")) == fold(strings.Join(strings.Fields(s), " "))
}

// OneOf reports whether the whole line equals any of vals.
func (l Line) OneOf(vals ...string) bool {
	for _, v := range vals {
		if l.Is(v) {
			return true
		}
	}
	return false
}

// Has reports whether any token equals any of words.
func (l Line) Has(words ...string) bool {
	for _, w := range words {
		fw := fold(w)
		for _, t := range l.tokens {
			if fold(t) == fw {
				return true
			}
		}
	}
	return false
}

// HasAll reports whether every word appears as a token.
func (l Line) HasAll(words ...string) bool {
	for _, w := range words {
		if !l.Has(w) {
			return false
		}
	}
	return true
}

// Contains reports whether sub occurs anywhere in the line.
func (l Line) Contains(sub string) bool {
	return strings.Contains(fold(l.raw), fold(sub))
}

// Match reports whether re matches the line.
func (l Line) Match(re *regexp.Regexp) bool {
	return re != nil && re.MatchString(l.raw)
}

// Blank reports whether raw carries no content once whitespace and trailing
// punctuation (".", "?", ",") are removed.
func Blank(raw string) bool {
	return strings.TrimRight(strings.TrimSpace(raw), ".?,") == ""
}

// SplitLines splits a multi-line message into its non-blank lines.
func SplitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	parts := strings.Split(raw, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if Blank(p) {
			continue
		}
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
