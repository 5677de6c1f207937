package command

import (
	"fmt"
	"strings"
)

// Status is the result of parsing one inbound line.
type Status int

const (
	// StatusOK means every slot is satisfied and the command may run.
	StatusOK Status = iota
	// StatusNeedsConfirmation means the command is complete but the user
	// must confirm before it runs.
	StatusNeedsConfirmation
	// StatusContinue means more input is needed.
	StatusContinue
	// StatusCancel means the user abandoned the command.
	StatusCancel
	// StatusError means the input can never form this command.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNeedsConfirmation:
		return "ok_needs_confirmation"
	case StatusContinue:
		return "continue"
	case StatusCancel:
		return "cancel"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Entry is one reply line: a printf template and its arguments.
type Entry struct {
	Template string
	Args     []string
}

// Render formats the entry, passing each argument through decorate first
// when it is non-nil (used for platform emphasis).
func (e Entry) Render(decorate func(string) string) string {
	if len(e.Args) == 0 {
		return e.Template
	}
	args := make([]any, len(e.Args))
	for i, a := range e.Args {
		if decorate != nil {
			a = decorate(a)
		}
		args[i] = a
	}
	return fmt.Sprintf(e.Template, args...)
}

// Outcome is a parse status plus the ordered reply entries explaining it.
type Outcome struct {
	Status Status
	Errors []Entry
}

// AddError appends an entry.
func (o *Outcome) AddError(template string, args ...string) {
	o.Errors = append(o.Errors, Entry{Template: template, Args: args})
}

// Messages renders every entry in order.
func (o Outcome) Messages(decorate func(string) string) []string {
	out := make([]string, 0, len(o.Errors))
	for _, e := range o.Errors {
		out = append(out, e.Render(decorate))
	}
	return out
}

// Text renders every entry joined by newlines.
func (o Outcome) Text(decorate func(string) string) string {
	return strings.Join(o.Messages(decorate), "\n")
}
