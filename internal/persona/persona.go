// Package persona gives the bot its voice: every reply is addressed to a
// user and picked from a small set of phrasings.
package persona

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	addressedTemplates = []string{
		"{mention}: {message}.",
	}
	errorTemplates = []string{
		"{mention}: {message}. Sorry.",
		"Uh {mention}, {message}. Sorry homie.",
		"Sorry {mention}, {message}.",
		"{mention}... {message}. Woops!",
		"Bad news {mention}, {message}.",
		"Yikes {mention}, {message}. C'est la vie.",
		"{mention} you donut, {message}.",
		"Damn it {mention}, {message}!",
	}
	confirmTemplates = []string{
		"{mention} you asked me to {message}. Ready?",
	}
	acknowledgeTemplates = []string{
		"Ok {mention}, {message}.",
		"No problem {mention}, {message}.",
		"You got it {mention}, {message}.",
		"Sure thing {mention}, {message}.",
	}
	completeTemplates = []string{
		"Great news {mention}, {message}.",
		"Good news {mention}, {message}.",
		"You can breathe again {mention}, {message}.",
		"FYI {mention}, {message}.",
		"P.S. {mention}, {message}.",
		"Hey {mention}, just letting you know {message}.",
	}
)

var pronounRE = regexp.MustCompile(`^i(['\s])`)

// Persona renders replies. The zero value is not usable; call New.
type Persona struct {
	pick func(n int) int
}

// Option configures a Persona.
type Option func(*Persona)

// WithPicker replaces the random template choice. pick(n) must return a
// value in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(p *Persona) {
		if pick != nil {
			p.pick = pick
		}
	}
}

// New returns a Persona that picks templates at random.
func New(opts ...Option) *Persona {
	p := &Persona{pick: rand.IntN}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Persona) render(set []string, mention, message string) string {
	t := set[p.pick(len(set))]
	// Templates supply their own closing punctuation.
	message = strings.TrimSuffix(message, ".")
	return strings.NewReplacer("{mention}", mention, "{message}", message).Replace(t)
}

// sentence lowercases the first letter so message can follow a comma, then
// restores a leading "I".
func (p *Persona) sentence(message string) string {
	r, size := utf8.DecodeRuneInString(message)
	if r == utf8.RuneError {
		return message
	}
	message = cases.Lower(language.English).String(string(r)) + message[size:]
	return pronounRE.ReplaceAllString(message, "I$1")
}

// Addressed prefixes message with the mention.
func (p *Persona) Addressed(mention, message string) string {
	return p.render(addressedTemplates, mention, message)
}

// Error apologises for message.
func (p *Persona) Error(mention, message string) string {
	return p.render(errorTemplates, mention, p.sentence(message))
}

// Confirm asks the user to confirm the rendered command.
func (p *Persona) Confirm(mention, command string) string {
	return p.render(confirmTemplates, mention, p.sentence(command))
}

// Acknowledge accepts a request.
func (p *Persona) Acknowledge(mention, message string) string {
	return p.render(acknowledgeTemplates, mention, p.sentence(message))
}

// Complete reports that something finished.
func (p *Persona) Complete(mention, message string) string {
	return p.render(completeTemplates, mention, p.sentence(message))
}
