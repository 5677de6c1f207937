package parser

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-bot/internal/command"
	"github.com/tbourn/go-chat-bot/internal/text"
	"github.com/tbourn/go-chat-bot/internal/token"
)

// CancelWords abandon a command when sent as the whole line.
var CancelWords = []string{
	"no", "no thanks", "nevermind", "never mind", "stop", "oops", "abort",
	"cancel", "forget it", "forget about it",
}

// ConfirmWords approve a command that is waiting for confirmation.
var ConfirmWords = []string{
	"yes", "yes please", "y", "yup", "yep", "ok", "okay", "go", "engage",
	"excelsior", "cool", "lets get it", "let's get it", "make it happen",
	"make it so", "roll it", "do it",
}

type slotState struct {
	Slot
	validators []token.Validator
	satisfied  bool
}

// SchemaParser parses lines for a single command. Obtain one per command
// from Schema.NewParser.
type SchemaParser struct {
	schema *Schema
	slots  []slotState
	parses int
	log    zerolog.Logger
}

var _ command.Parser = (*SchemaParser)(nil)

// Schema returns the compiled schema.
func (p *SchemaParser) Schema() *Schema { return p.schema }

// Parses returns how many lines have been parsed.
func (p *SchemaParser) Parses() int { return p.parses }

// Satisfied reports whether every slot has a value.
func (p *SchemaParser) Satisfied() bool {
	for _, st := range p.slots {
		if !st.satisfied {
			return false
		}
	}
	return true
}

// Missing returns the unsatisfied slot names in template order.
func (p *SchemaParser) Missing() []string {
	var out []string
	for _, sl := range p.schema.slots {
		for _, st := range p.slots {
			if st.Name == sl.Name && !st.satisfied {
				out = append(out, sl.Name)
			}
		}
	}
	return out
}

// Parse implements command.Parser.
func (p *SchemaParser) Parse(cmd *command.Command, line text.Line) command.Outcome {
	p.parses++
	out := command.Outcome{Status: command.StatusOK}
	p.log.Debug().Str("guid", cmd.ID()).Int("parses", p.parses).Str("line", line.Text()).Msg("parsing line")

	if line.OneOf(CancelWords...) {
		out.Status = command.StatusCancel
		return out
	}

	if cmd.Ready() && cmd.Waiting() {
		if line.OneOf(ConfirmWords...) {
			out.Status = command.StatusOK
		} else {
			out.Status = command.StatusNeedsConfirmation
		}
		return out
	}

	raw := line.Text()
	if p.parses == 1 {
		rest, ok := p.schema.stripPreconditions(raw)
		if !ok {
			out.Status = command.StatusError
			out.AddError("Badly formatted %s.", cmd.Name())
			out.AddError("I expected something like: %s", p.schema.Exemplar())
			return out
		}
		raw = rest
	}

	tokens := p.scanFlags(cmd, strings.Fields(raw))

	var tokenErrs []command.Entry
	tokens = p.match(cmd, tokens, false, &tokenErrs)
	if !p.Satisfied() && len(tokens) > 0 {
		p.match(cmd, tokens, true, &tokenErrs)
	}

	if !p.Satisfied() {
		out.Status = command.StatusContinue
		out.AddError("Working on that %s for you.", cmd.Name())
		out.AddError("I expected something like: %s", p.schema.Exemplar())
		missing := p.Missing()
		out.AddError("Please give me "+oxfordTemplate(len(missing)), missing...)
		out.Errors = append(out.Errors, tokenErrs...)
		return out
	}

	// Stray format errors do not block a satisfied command; keep them so the
	// caller can log them.
	out.Errors = append(out.Errors, tokenErrs...)
	if p.parses > 1 {
		out.Status = command.StatusNeedsConfirmation
	}
	return out
}

// scanFlags sets a true target for each declared --flag present and removes
// it from the token stream.
func (p *SchemaParser) scanFlags(cmd *command.Command, tokens []string) []string {
	if len(p.schema.flags) == 0 {
		return tokens
	}
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		matched := false
		if strings.HasPrefix(tok, "--") {
			name := strings.ToLower(strings.TrimPrefix(tok, "--"))
			for _, f := range p.schema.flags {
				if strings.EqualFold(f, name) {
					cmd.SetTarget(f, true, false)
					matched = true
					break
				}
			}
		}
		if !matched {
			kept = append(kept, tok)
		}
	}
	return kept
}

// match runs one pass over every unsatisfied slot. With surface set, caches
// are reset first and format errors are collected and their tokens dropped.
func (p *SchemaParser) match(cmd *command.Command, tokens []string, surface bool, errs *[]command.Entry) []string {
	for i := range p.slots {
		st := &p.slots[i]
		if st.satisfied {
			continue
		}
		for _, v := range st.validators {
			if surface {
				v.Reset()
			}
			tokens = p.scan(cmd, st, v, tokens, surface, errs)
			if st.satisfied && !st.Options.Repeatable {
				break
			}
		}
	}
	return tokens
}

func (p *SchemaParser) scan(cmd *command.Command, st *slotState, v token.Validator, tokens []string, surface bool, errs *[]command.Entry) []string {
	kept := make([]string, 0, len(tokens))
	prev := ""
	for _, tok := range tokens {
		if st.satisfied && !st.Options.Repeatable {
			kept = append(kept, tok)
			continue
		}
		m, ok, err := v.Validate(tok, prev, st.Options)
		switch {
		case err != nil:
			var fe *token.FormatError
			if !errors.As(err, &fe) {
				p.log.Warn().Err(err).Str("slot", st.Name).Msg("validator failed")
				kept = append(kept, tok)
				prev = tok
				continue
			}
			if !surface {
				kept = append(kept, tok)
				prev = tok
				continue
			}
			*errs = append(*errs, command.Entry{Template: fe.Format, Args: []string{fe.Token}})
			prev = ""
		case ok:
			if m.WithPrevious && len(kept) > 0 {
				kept = kept[:len(kept)-1]
			}
			cmd.SetTarget(st.Name, m.Value, st.Options.Repeatable)
			st.satisfied = true
			p.log.Debug().Str("slot", st.Name).Str("value", m.Value).Msg("slot matched")
			prev = ""
		default:
			kept = append(kept, tok)
			prev = tok
		}
	}
	return kept
}

// Final implements command.Parser: the template with collected values.
func (p *SchemaParser) Final(cmd *command.Command) string {
	return placeholderRE.ReplaceAllStringFunc(p.schema.def.Command, func(ph string) string {
		v, err := cmd.Target(ph[1 : len(ph)-1])
		if err != nil {
			return ph
		}
		return v
	})
}

// oxfordTemplate returns "the %s", "the %s and %s" or "the %s, %s, and %s".
func oxfordTemplate(n int) string {
	switch {
	case n <= 1:
		return "the %s"
	case n == 2:
		return "the %s and %s"
	default:
		return "the " + strings.Repeat("%s, ", n-1) + "and %s"
	}
}
