// Package router owns the conversation state machine.
//
// Inbound lines are matched to a pending Command for the same user and
// destination, or routed to a new one through the registered initiators.
// The Command's parser decides what happens next: reply, prompt, confirm,
// cancel or queue. Queued commands are run on Tick and dispatched to their
// handler.
//
// Router is driven from a single goroutine (see package engine). The pending
// table, the registry and the queue each carry their own lock so that
// observers such as the HTTP admin API can read them concurrently.
package router

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-bot/internal/command"
	"github.com/tbourn/go-chat-bot/internal/events"
	"github.com/tbourn/go-chat-bot/internal/parser"
	"github.com/tbourn/go-chat-bot/internal/roster"
	"github.com/tbourn/go-chat-bot/internal/scheduler"
	"github.com/tbourn/go-chat-bot/internal/text"
)

var (
	// ErrNoPendingCommand is returned when no command is pending for a user
	// and destination.
	ErrNoPendingCommand = errors.New("router: no pending command")
	// ErrNoHandler is returned when an initiator is registered without a
	// handler and none is registered under its name.
	ErrNoHandler = errors.New("router: no handler for command")
	// ErrDuplicateCommand is returned when a name is registered twice.
	ErrDuplicateCommand = errors.New("router: duplicate command")
	// ErrNoMatcher is returned when an initiator can never match a line.
	ErrNoMatcher = errors.New("router: initiator has no matcher")
)

// Sink receives everything the router says back to users.
type Sink interface {
	SendAddressed(ctx context.Context, ud command.UserDestination, msg string) error
	SendConfirm(ctx context.Context, ud command.UserDestination, final string) error
	SendError(ctx context.Context, ud command.UserDestination, msg string) error
	SendComplete(ctx context.Context, ud command.UserDestination, msg string) error
}

// Emphasizer is implemented by sinks that can highlight part of a message.
type Emphasizer interface {
	Emphasize(s string) string
}

// Initiator describes a command users can start.
type Initiator struct {
	Name string
	// Roles restricts who may start the command. Empty means everyone.
	Roles []string
	// Schema, when set, parses the command's arguments and provides the
	// default matcher.
	Schema *parser.Schema
	// Match overrides the schema matcher.
	Match func(text.Line) bool
	// Handler runs the command. When nil, the handler registered under Name
	// is used.
	Handler command.Handler
	// Strategy builds a fresh workflow for each new command.
	Strategy func() *command.Strategy
	// Expiry overrides the router's default inactivity window. Negative
	// means never expire.
	Expiry time.Duration
}

func (in Initiator) matches(line text.Line) bool {
	if in.Match != nil {
		return in.Match(line)
	}
	if in.Schema != nil {
		return in.Schema.Match(line)
	}
	return false
}

// Event payloads.
type (
	// MessageEvent is a raw inbound message.
	MessageEvent struct {
		UserID        string
		DestinationID string
		Text          string
	}
	// UnroutedEvent is a line no initiator claimed, or one the user was not
	// allowed to start.
	UnroutedEvent struct {
		UD   command.UserDestination
		Line text.Line
	}
	// RouteEvent asks route providers for an initiator.
	RouteEvent struct {
		UD   command.UserDestination
		Line text.Line
	}
	// AccessEvent asks access checkers whether UD may start Command.
	AccessEvent struct {
		UD      command.UserDestination
		Command string
		Roles   []string
	}
	// CommandEvent is broadcast for commands no specific handler took.
	CommandEvent struct {
		Ctx     context.Context
		Command *command.Command
	}
	// RunEvent reports a finished run.
	RunEvent struct {
		Command  *command.Command
		Response *command.Response
		Duration time.Duration
	}
	// MembershipEvent reports a user joining or leaving a room.
	MembershipEvent struct {
		RoomID string
		UserID string
	}
	// PresenceEvent reports a presence change.
	PresenceEvent struct {
		UserID   string
		Presence string
	}
	// CloseEvent reports the transport connection closing.
	CloseEvent struct {
		Code   int
		Reason string
	}
)

// Router routes lines to commands and runs queued commands.
type Router struct {
	sink   Sink
	queue  *scheduler.Queue
	roster *roster.Roster
	now    func() time.Time
	log    zerolog.Logger
	expiry time.Duration
	mention *regexp.Regexp // bot mention in group messages

	regMu      sync.RWMutex
	initiators []Initiator
	handlers   map[string]command.Handler

	mu      sync.Mutex
	pending map[string]*command.Command

	// Route providers are asked after the registered initiators.
	Routes *events.Collector[RouteEvent, Initiator]
	// Access checkers answer true to grant. A command with roles is only
	// started when at least one checker grants.
	Access *events.Collector[AccessEvent, bool]
	// Commands are generic handlers for commands nothing else handled.
	Commands *events.Collector[CommandEvent, *command.Response]
	// Mutes answer true to ignore everything a user says.
	Mutes *events.Collector[command.UserDestination, bool]

	Unrouted  *events.Hooks[UnroutedEvent]
	Completed *events.Hooks[RunEvent]
	Private   *events.Hooks[MessageEvent]
	Group     *events.Hooks[MessageEvent]
	Joins     *events.Hooks[MembershipEvent]
	Leaves    *events.Hooks[MembershipEvent]
	Presence  *events.Hooks[PresenceEvent]
	Closed    *events.Hooks[CloseEvent]
}

// Option configures a Router.
type Option func(*Router)

// WithClock sets the time source used for new commands and the queue.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the router's logger.
func WithLogger(l zerolog.Logger) Option { return func(r *Router) { r.log = l } }

// WithExpiry sets the default inactivity window. Zero disables expiry.
func WithExpiry(d time.Duration) Option { return func(r *Router) { r.expiry = d } }

// WithQueue replaces the router's queue.
func WithQueue(q *scheduler.Queue) Option { return func(r *Router) { r.queue = q } }

// WithRoster lets the router resolve direct-message conversations.
func WithRoster(ro *roster.Roster) Option { return func(r *Router) { r.roster = ro } }

// WithBotUser sets the bot's user id; group messages are only handled when
// they mention it.
func WithBotUser(id string) Option {
	return func(r *Router) {
		if id != "" {
			r.mention = mentionPattern(id)
		}
	}
}

// New returns a Router that replies through sink.
func New(sink Sink, opts ...Option) *Router {
	r := &Router{
		sink:      sink,
		now:       time.Now,
		log:       zerolog.Nop(),
		expiry:    command.DefaultExpiry,
		handlers:  make(map[string]command.Handler),
		pending:   make(map[string]*command.Command),
		Routes:    events.NewCollector[RouteEvent, Initiator]("route"),
		Access:    events.NewCollector[AccessEvent, bool]("checkaccess"),
		Commands:  events.NewCollector[CommandEvent, *command.Response]("command"),
		Mutes:     events.NewCollector[command.UserDestination, bool]("mute"),
		Unrouted:  events.NewHooks[UnroutedEvent]("unrouted"),
		Completed: events.NewHooks[RunEvent]("completed"),
		Private:   events.NewHooks[MessageEvent]("private"),
		Group:     events.NewHooks[MessageEvent]("group"),
		Joins:     events.NewHooks[MembershipEvent]("join"),
		Leaves:    events.NewHooks[MembershipEvent]("leave"),
		Presence:  events.NewHooks[PresenceEvent]("presence"),
		Closed:    events.NewHooks[CloseEvent]("close"),
	}
	for _, o := range opts {
		o(r)
	}
	if r.queue == nil {
		r.queue = scheduler.NewQueue(r.now)
	}
	return r
}

// RegisterHandler binds h to commands named name. Handlers must be
// registered before initiators that rely on them.
func (r *Router) RegisterHandler(name string, h command.Handler) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || h == nil {
		return fmt.Errorf("%w: %q", ErrNoHandler, name)
	}
	r.regMu.Lock()
	defer r.regMu.Unlock()
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("%w: handler %q", ErrDuplicateCommand, name)
	}
	r.handlers[name] = h
	return nil
}

// Register adds an initiator. Initiators are tried in registration order.
func (r *Router) Register(in Initiator) error {
	in.Name = strings.ToLower(strings.TrimSpace(in.Name))
	if in.Name == "" {
		return fmt.Errorf("%w: empty name", ErrNoMatcher)
	}
	if in.Match == nil && in.Schema == nil {
		return fmt.Errorf("%w: %q", ErrNoMatcher, in.Name)
	}
	r.regMu.Lock()
	defer r.regMu.Unlock()
	for _, have := range r.initiators {
		if have.Name == in.Name {
			return fmt.Errorf("%w: %q", ErrDuplicateCommand, in.Name)
		}
	}
	if in.Handler == nil && r.handlers[in.Name] == nil {
		return fmt.Errorf("%w: %q", ErrNoHandler, in.Name)
	}
	r.initiators = append(r.initiators, in)
	return nil
}

// Initiators returns the registered initiators in order.
func (r *Router) Initiators() []Initiator {
	r.regMu.RLock()
	defer r.regMu.RUnlock()
	return append([]Initiator(nil), r.initiators...)
}

func (r *Router) handler(name string) command.Handler {
	r.regMu.RLock()
	defer r.regMu.RUnlock()
	return r.handlers[strings.ToLower(name)]
}

// Pending returns the command waiting on ud.
func (r *Router) Pending(ud command.UserDestination) (*command.Command, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd, ok := r.pending[ud.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPendingCommand, ud)
	}
	return cmd, nil
}

// PendingCount returns the number of pending commands.
func (r *Router) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Discard drops the command pending on ud without replying.
func (r *Router) Discard(ud command.UserDestination) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[ud.Key()]; !ok {
		return fmt.Errorf("%w: %s", ErrNoPendingCommand, ud)
	}
	delete(r.pending, ud.Key())
	pendingGauge.Set(float64(len(r.pending)))
	return nil
}

// store keeps cmd unless another command already took its slot, in which
// case that one is returned.
func (r *Router) store(cmd *command.Command) *command.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := cmd.UserDestination().Key()
	if have, ok := r.pending[key]; ok {
		return have
	}
	r.pending[key] = cmd
	pendingGauge.Set(float64(len(r.pending)))
	return cmd
}

func (r *Router) remove(ud command.UserDestination) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, ud.Key())
	pendingGauge.Set(float64(len(r.pending)))
}

// Queue schedules cmd to run delay from now.
func (r *Router) Queue(cmd *command.Command, delay time.Duration) {
	r.queue.Schedule(cmd, delay)
	queueDepth.Set(float64(r.queue.Len()))
}

// QueueAt schedules cmd to run at t.
func (r *Router) QueueAt(cmd *command.Command, at time.Time) {
	r.queue.ScheduleAt(cmd, at)
	queueDepth.Set(float64(r.queue.Len()))
}

// Jobs returns a snapshot of the queue.
func (r *Router) Jobs() []scheduler.Job { return r.queue.Snapshot() }

// Muted reports whether any mute subscriber silences ud.
func (r *Router) Muted(ud command.UserDestination) bool {
	for _, muted := range r.Mutes.Collect(ud) {
		if muted {
			return true
		}
	}
	return false
}

func (r *Router) emphasize(s string) string {
	if e, ok := r.sink.(Emphasizer); ok {
		return e.Emphasize(s)
	}
	return s
}
