// Package engine runs the router on one goroutine.
//
// Transports hand inbound events to Submit from any goroutine. Run owns the
// loop: it applies events to the router in arrival order and calls Tick on
// every timer fire, so handlers never race one another.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-bot/internal/router"
)

// ErrStopped is returned by Submit once Run has returned.
var ErrStopped = errors.New("engine: stopped")

// DefaultTickInterval is how often queued commands are checked.
const DefaultTickInterval = time.Second

// Kind identifies an inbound event.
type Kind int

const (
	KindDirect Kind = iota
	KindGroup
	KindJoin
	KindLeave
	KindPresence
	KindClose
)

func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindGroup:
		return "group"
	case KindJoin:
		return "join"
	case KindLeave:
		return "leave"
	case KindPresence:
		return "presence"
	case KindClose:
		return "close"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k := KindDirect; k <= KindClose; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Event is something a transport observed. DestinationID is the room for
// group, join and leave events and the conversation for direct messages.
type Event struct {
	Kind          Kind
	UserID        string
	DestinationID string
	Text          string
	Presence      string
	Code          int
}

// Engine serializes access to a Router.
type Engine struct {
	router   *router.Router
	interval time.Duration
	log      zerolog.Logger
	events   chan Event
	done     chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithTickInterval sets the tick period. Non-positive values are ignored.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithBuffer sets how many events may wait for the loop.
func WithBuffer(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.events = make(chan Event, n)
		}
	}
}

// New returns an engine for r. Call Run to start it.
func New(r *router.Router, opts ...Option) *Engine {
	e := &Engine{
		router:   r,
		interval: DefaultTickInterval,
		log:      zerolog.Nop(),
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Router returns the engine's router.
func (e *Engine) Router() *router.Router { return e.router }

// Submit hands ev to the loop. It blocks while the buffer is full.
func (e *Engine) Submit(ctx context.Context, ev Event) error {
	select {
	case <-e.done:
		return ErrStopped
	default:
	}
	select {
	case e.events <- ev:
		inboundTotal.WithLabelValues(ev.Kind.String()).Inc()
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events and ticks until ctx is cancelled. Events still
// buffered when ctx ends are dropped.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Info().Dur("tick", e.interval).Msg("engine started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Int("dropped", len(e.events)).Msg("engine stopped")
			return nil
		case ev := <-e.events:
			e.apply(ctx, ev)
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	start := time.Now()
	n := e.router.Tick(ctx)
	ticksTotal.Inc()
	if n > 0 {
		e.log.Debug().Int("ran", n).Dur("elapsed", time.Since(start)).Msg("tick")
	}
}

func (e *Engine) apply(ctx context.Context, ev Event) {
	r := e.router
	switch ev.Kind {
	case KindDirect:
		r.OnDirectMessage(ctx, ev.UserID, ev.DestinationID, ev.Text)
	case KindGroup:
		r.OnGroupMessage(ctx, ev.UserID, ev.DestinationID, ev.Text)
	case KindJoin:
		r.OnJoin(ev.DestinationID, ev.UserID)
	case KindLeave:
		r.OnLeave(ev.DestinationID, ev.UserID)
	case KindPresence:
		r.OnPresenceChange(ev.UserID, ev.Presence)
	case KindClose:
		r.OnClose(ev.Code, ev.Text)
	default:
		e.log.Warn().Int("kind", int(ev.Kind)).Msg("unknown event")
	}
}
