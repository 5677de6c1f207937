package command

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTargetNotFound is returned when a slot has no collected value.
var ErrTargetNotFound = errors.New("target not found")

// Targets is an ordered slot → value bag. Values are strings, booleans (for
// flags) or ordered string lists (for repeatable slots).
type Targets struct {
	keys []string
	vals map[string]any
}

// NewTargets returns an empty bag.
func NewTargets() *Targets { return &Targets{vals: make(map[string]any)} }

// Set stores v under slot. When repeatable is true and the slot already holds
// a value, the slot is promoted to a list and v is appended, preserving
// insertion order. Otherwise v replaces any previous value.
func (t *Targets) Set(slot string, v any, repeatable bool) {
	prev, exists := t.vals[slot]
	if !exists {
		t.keys = append(t.keys, slot)
		t.vals[slot] = v
		return
	}
	if !repeatable {
		t.vals[slot] = v
		return
	}
	switch p := prev.(type) {
	case []string:
		t.vals[slot] = append(p, fmt.Sprint(v))
	default:
		t.vals[slot] = []string{fmt.Sprint(p), fmt.Sprint(v)}
	}
}

// Get returns the raw value for slot.
func (t *Targets) Get(slot string) (any, error) {
	v, ok := t.vals[slot]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, slot)
	}
	return v, nil
}

// String returns the value for slot rendered as text. Lists are joined with
// ", ".
func (t *Targets) String(slot string) (string, error) {
	v, err := t.Get(slot)
	if err != nil {
		return "", err
	}
	if l, ok := v.([]string); ok {
		return strings.Join(l, ", "), nil
	}
	return fmt.Sprint(v), nil
}

// List returns the value for slot as a list; scalars become one-element lists.
func (t *Targets) List(slot string) ([]string, error) {
	v, err := t.Get(slot)
	if err != nil {
		return nil, err
	}
	if l, ok := v.([]string); ok {
		out := make([]string, len(l))
		copy(out, l)
		return out, nil
	}
	return []string{fmt.Sprint(v)}, nil
}

// Bool reports whether slot holds boolean true. Missing slots are false.
func (t *Targets) Bool(slot string) bool {
	b, _ := t.vals[slot].(bool)
	return b
}

// Has reports whether slot has a value.
func (t *Targets) Has(slot string) bool {
	_, ok := t.vals[slot]
	return ok
}

// Delete removes slot. Deleting a missing slot is a no-op.
func (t *Targets) Delete(slot string) {
	if _, ok := t.vals[slot]; !ok {
		return
	}
	delete(t.vals, slot)
	for i, k := range t.keys {
		if k == slot {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Keys returns slot names in insertion order.
func (t *Targets) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Len returns the number of slots set.
func (t *Targets) Len() int { return len(t.keys) }
