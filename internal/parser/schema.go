package parser

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-bot/internal/text"
	"github.com/tbourn/go-chat-bot/internal/token"
)

// ErrMalformedSchema is returned by Compile for structurally invalid
// definitions.
var ErrMalformedSchema = errors.New("malformed schema")

// placeholderRE finds {slot} placeholders in a template.
var placeholderRE = regexp.MustCompile(`\{([\w\s]+)\}`)

// Slot is one compiled slot.
type Slot struct {
	Name    string
	Types   []string
	Options token.Options
	// catchAll is true when every validator of the slot is catch-all.
	catchAll bool
}

// Schema is a compiled, immutable definition. Use NewParser to obtain a
// parser with its own satisfaction state for each command.
type Schema struct {
	def      Definition
	pre      []*regexp.Regexp
	slots    []Slot
	flags    []string
	examples map[string]string
	registry *token.Registry
	log      zerolog.Logger
}

// CompileOption configures Compile.
type CompileOption func(*Schema)

// WithLogger sets the logger handed to parsers built from the schema.
func WithLogger(l zerolog.Logger) CompileOption {
	return func(s *Schema) { s.log = l }
}

// Compile validates def against reg and returns a reusable schema.
func Compile(def Definition, reg *token.Registry, opts ...CompileOption) (*Schema, error) {
	def.Name = strings.TrimSpace(def.Name)
	def.Command = strings.TrimSpace(def.Command)
	if def.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrMalformedSchema)
	}
	if def.Command == "" {
		return nil, fmt.Errorf("%w: %s: command template is required", ErrMalformedSchema, def.Name)
	}
	if reg == nil {
		reg = token.DefaultRegistry()
	}

	s := &Schema{
		def:      def,
		examples: make(map[string]string),
		registry: reg,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}

	for _, p := range def.Preconditions {
		re, err := compilePrecondition(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: precondition %q: %v", ErrMalformedSchema, def.Name, p, err)
		}
		s.pre = append(s.pre, re)
	}

	// Slot order: template placeholder order, then any extra slots by name.
	var order []string
	seen := map[string]bool{}
	for _, m := range placeholderRE.FindAllStringSubmatch(def.Command, -1) {
		name := m[1]
		if _, ok := def.Slots[name]; !ok {
			return nil, fmt.Errorf("%w: %s: placeholder {%s} has no slot", ErrMalformedSchema, def.Name, name)
		}
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	var extra []string
	for name := range def.Slots {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	literals := s.literalWords()
	for _, name := range order {
		sd := def.Slots[name]
		if len(sd.Type) == 0 {
			return nil, fmt.Errorf("%w: %s: slot %q declares no type", ErrMalformedSchema, def.Name, name)
		}
		slot := Slot{
			Name:     name,
			Types:    append([]string(nil), sd.Type...),
			Options:  token.Options{Exclude: append(append([]string(nil), sd.Exclude...), literals...), Repeatable: sd.Repeatable},
			catchAll: true,
		}
		examples := make([]string, 0, len(sd.Type))
		for _, tn := range sd.Type {
			v, err := reg.New(tn)
			if err != nil {
				return nil, fmt.Errorf("%s: slot %q: %w", def.Name, name, err)
			}
			examples = append(examples, v.Example())
			if !token.IsCatchAll(v) {
				slot.catchAll = false
			}
		}
		s.examples[name] = strings.Join(examples, " or ")
		s.slots = append(s.slots, slot)
	}

	for _, f := range def.Flags {
		f = strings.TrimLeft(strings.TrimSpace(f), "-")
		if f == "" {
			return nil, fmt.Errorf("%w: %s: empty flag name", ErrMalformedSchema, def.Name)
		}
		s.flags = append(s.flags, f)
	}
	return s, nil
}

// compilePrecondition turns "/re/" into a case-insensitive regexp and any
// other string into a whole-word literal match.
func compilePrecondition(p string) (*regexp.Regexp, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return nil, errors.New("empty precondition")
	}
	if len(p) > 2 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
		return regexp.Compile("(?i)" + p[1:len(p)-1])
	}
	return regexp.Compile(`(?i)(^|\s)` + regexp.QuoteMeta(p) + `(\s|$)`)
}

// literalWords returns the lower-cased non-placeholder words of the template
// plus literal preconditions. Catch-all slots never capture them.
func (s *Schema) literalWords() []string {
	var out []string
	for _, w := range strings.Fields(placeholderRE.ReplaceAllString(s.def.Command, " ")) {
		out = append(out, strings.ToLower(w))
	}
	for _, p := range s.def.Preconditions {
		if !strings.HasPrefix(p, "/") {
			out = append(out, strings.Fields(strings.ToLower(p))...)
		}
	}
	return out
}

// Name returns the command name.
func (s *Schema) Name() string { return s.def.Name }

// Template returns the raw command template.
func (s *Schema) Template() string { return s.def.Command }

// Description returns the help text, if any.
func (s *Schema) Description() string { return s.def.Description }

// Definition returns a copy of the source definition.
func (s *Schema) Definition() Definition { return s.def }

// Slots returns the compiled slots in evaluation order.
func (s *Schema) Slots() []Slot { return append([]Slot(nil), s.slots...) }

// Flags returns the declared flag names without leading dashes.
func (s *Schema) Flags() []string { return append([]string(nil), s.flags...) }

// Exemplar renders the template with each slot shown as {slot:example}.
func (s *Schema) Exemplar() string {
	return placeholderRE.ReplaceAllStringFunc(s.def.Command, func(ph string) string {
		name := ph[1 : len(ph)-1]
		return "{" + name + ":" + s.examples[name] + "}"
	})
}

// Example renders the template with each slot replaced by its example.
func (s *Schema) Example() string {
	return placeholderRE.ReplaceAllStringFunc(s.def.Command, func(ph string) string {
		return s.examples[ph[1:len(ph)-1]]
	})
}

// Keyword returns the first literal word of the template.
func (s *Schema) Keyword() string {
	for _, w := range strings.Fields(s.def.Command) {
		if !strings.HasPrefix(w, "{") {
			return strings.ToLower(w)
		}
	}
	return strings.ToLower(s.def.Name)
}

// Match reports whether line should start this command: the first
// precondition must be present, or, without preconditions, the line must
// begin with the template keyword.
func (s *Schema) Match(line text.Line) bool {
	if len(s.pre) > 0 {
		return line.Match(s.pre[0])
	}
	toks := line.Tokens()
	return len(toks) > 0 && strings.EqualFold(toks[0], s.Keyword())
}

// stripPreconditions removes each precondition from raw in order. It
// reports false if any is missing.
func (s *Schema) stripPreconditions(raw string) (string, bool) {
	for _, re := range s.pre {
		loc := re.FindStringIndex(raw)
		if loc == nil {
			return raw, false
		}
		raw = strings.TrimSpace(raw[:loc[0]] + " " + raw[loc[1]:])
	}
	return raw, true
}

// NewParser returns a parser with fresh validators and satisfaction state.
func (s *Schema) NewParser() *SchemaParser {
	p := &SchemaParser{schema: s, log: s.log.With().Str("command", s.def.Name).Logger()}
	specific := make([]slotState, 0, len(s.slots))
	var catchAll []slotState
	for _, sl := range s.slots {
		st := slotState{Slot: sl}
		for _, tn := range sl.Types {
			// Names were resolved by Compile.
			v, _ := s.registry.New(tn)
			st.validators = append(st.validators, v)
		}
		if sl.catchAll {
			catchAll = append(catchAll, st)
		} else {
			specific = append(specific, st)
		}
	}
	p.slots = append(specific, catchAll...)
	return p
}
