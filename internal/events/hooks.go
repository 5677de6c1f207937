// Package events provides ordered, synchronous subscriber lists.
//
// Hooks fans an event out to every subscriber. Collector does the same but
// gathers what each subscriber returns, in subscription order, so callers can
// take the first answer or count the answers. Subscribers run on the caller's
// goroutine; a panicking subscriber is recovered and logged and the rest
// still run.
package events

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type sub[T any] struct {
	id int
	fn T
}

type list[T any] struct {
	mu     sync.RWMutex
	nextID int
	subs   []sub[T]
}

func (l *list[T]) add(fn T) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.subs = append(l.subs, sub[T]{id: id, fn: fn})
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, s := range l.subs {
			if s.id == id {
				l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

func (l *list[T]) snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, len(l.subs))
	for i, s := range l.subs {
		out[i] = s.fn
	}
	return out
}

func (l *list[T]) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

// Hooks is a list of callbacks for events of type E.
type Hooks[E any] struct {
	name string
	l    list[func(E)]
}

// NewHooks returns an empty hook list; name is used in panic logs.
func NewHooks[E any](name string) *Hooks[E] { return &Hooks[E]{name: name} }

// Subscribe adds fn and returns a function that removes it.
func (h *Hooks[E]) Subscribe(fn func(E)) func() { return h.l.add(fn) }

// Len returns the number of subscribers.
func (h *Hooks[E]) Len() int { return h.l.len() }

// Fire calls every subscriber in order.
func (h *Hooks[E]) Fire(ev E) {
	for _, fn := range h.l.snapshot() {
		func() {
			defer recoverHook(h.name)
			fn(ev)
		}()
	}
}

// Collector is a list of callbacks that answer events of type E with R.
// A subscriber returns ok == false to abstain.
type Collector[E, R any] struct {
	name string
	l    list[func(E) (R, bool)]
}

// NewCollector returns an empty collector; name is used in panic logs.
func NewCollector[E, R any](name string) *Collector[E, R] { return &Collector[E, R]{name: name} }

// Subscribe adds fn and returns a function that removes it.
func (c *Collector[E, R]) Subscribe(fn func(E) (R, bool)) func() { return c.l.add(fn) }

// Len returns the number of subscribers.
func (c *Collector[E, R]) Len() int { return c.l.len() }

// Collect calls every subscriber and returns the answers in order.
func (c *Collector[E, R]) Collect(ev E) []R {
	var out []R
	for _, fn := range c.l.snapshot() {
		if r, ok := c.call(fn, ev); ok {
			out = append(out, r)
		}
	}
	return out
}

// First calls subscribers in order and stops at the first answer.
func (c *Collector[E, R]) First(ev E) (R, bool) {
	for _, fn := range c.l.snapshot() {
		if r, ok := c.call(fn, ev); ok {
			return r, true
		}
	}
	var zero R
	return zero, false
}

func (c *Collector[E, R]) call(fn func(E) (R, bool), ev E) (r R, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("hook", c.name).Interface("panic", p).Msg("hook subscriber panicked")
			ok = false
		}
	}()
	return fn(ev)
}

func recoverHook(name string) {
	if p := recover(); p != nil {
		log.Error().Str("hook", name).Interface("panic", p).Msg("hook subscriber panicked")
	}
}
