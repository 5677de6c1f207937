// Package token implements typed-token validators: small single-slot value
// parsers used by schema-driven command parsing.
//
// A Validator inspects one input token (plus the token before it) and answers
// in one of three ways:
//
//   - a Match, when the token is a value of the validator's type;
//   - not a candidate (ok == false, err == nil), when the token is simply not
//     of this type and the caller should try something else;
//   - a *FormatError, when the token resembles the type but is malformed
//     (for example "2024-02-30" for a date).
//
// Validators are created through a Registry so schema definitions can refer to
// them by name. Names are resolved once, when a schema is compiled, and
// unknown names fail immediately with ErrUnknownValidator.
package token

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrUnknownValidator is returned when a schema refers to a validator name
// that has not been registered.
var ErrUnknownValidator = errors.New("unknown validator")

// ErrDuplicateValidator is returned by Register when the name is taken.
var ErrDuplicateValidator = errors.New("validator already registered")

// Options carries the per-slot settings a schema passes to its validators.
type Options struct {
	// Exclude lists tokens a catch-all validator must refuse (case-insensitive).
	Exclude []string
	// Repeatable allows the slot to collect more than one value.
	Repeatable bool
}

// Excludes reports whether tok is in the exclusion list.
func (o Options) Excludes(tok string) bool {
	for _, x := range o.Exclude {
		if strings.EqualFold(x, tok) {
			return true
		}
	}
	return false
}

// Match is a successful validation.
type Match struct {
	// Value is the normalized slot value.
	Value string
	// WithPrevious is set when the match consumed the previous token as well
	// as the current one.
	WithPrevious bool
}

// Validator parses a single typed token.
type Validator interface {
	// Validate checks tok (and optionally prev) against the type.
	Validate(tok, prev string, opts Options) (Match, bool, error)
	// Example is a short human-readable sample value.
	Example() string
	// Reset clears any internal duplicate-suppression state.
	Reset()
}

// CatchAll is implemented by validators that accept almost any token. Parsers
// evaluate catch-all slots after every specific slot has had its chance.
type CatchAll interface {
	CatchAll() bool
}

// IsCatchAll reports whether v declares itself catch-all.
func IsCatchAll(v Validator) bool {
	c, ok := v.(CatchAll)
	return ok && c.CatchAll()
}

// FormatError reports a token that looks like the validator's type but is not
// a valid value. Format is a message template with a single %s verb for Token.
type FormatError struct {
	Token  string
	Format string
}

func (e *FormatError) Error() string { return fmt.Sprintf(e.Format, e.Token) }

// Factory builds a fresh validator instance.
type Factory func() Validator

// Registry maps validator names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the built-in validators:
// date, futuredate, search, timespan and toggle.
func DefaultRegistry() *Registry { return DefaultRegistryAt(nil) }

// DefaultRegistryAt is DefaultRegistry with futuredate judged against now.
func DefaultRegistryAt(now func() time.Time) *Registry {
	r := NewRegistry()
	_ = r.Register("date", func() Validator { return NewDate() })
	_ = r.Register("futuredate", func() Validator { return NewFutureDate(now) })
	_ = r.Register("search", func() Validator { return Search{} })
	_ = r.Register("timespan", func() Validator { return Timespan{} })
	_ = r.Register("toggle", func() Validator { return Toggle{} })
	return r
}

// Register adds a factory under name (case-insensitive).
func (r *Registry) Register(name string, f Factory) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || f == nil {
		return fmt.Errorf("register validator %q: name and factory are required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[key]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateValidator, key)
	}
	r.factories[key] = f
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// New builds a validator by name.
func (r *Registry) New(name string) (Validator, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownValidator, name)
	}
	return f(), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
