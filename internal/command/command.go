// Package command defines the stateful unit of work the bot runs on behalf of
// a user: a Command, the (user, destination) pair that owns it, the slot
// values collected while parsing, and the response vocabulary handlers use.
//
// Lifecycle: fresh → parsing → ready → (waiting for confirmation) →
// dispatched → done, expired or cancelled. Expiry is a sliding window reset
// by every Touch, not an absolute deadline.
//
// A Command is not safe for concurrent use; the router's event loop owns it.
package command

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-chat-bot/internal/text"
)

// DefaultExpiry is the idle time after which an unfinished command lapses.
const DefaultExpiry = 10 * time.Minute

// UserDestination identifies one conversation: a user in a room or DM.
type UserDestination struct {
	UserID        string
	DestinationID string
}

// Key returns the pending-table key for the pair.
func (ud UserDestination) Key() string { return ud.UserID + "/" + ud.DestinationID }

func (ud UserDestination) String() string { return ud.Key() }

// Parser turns inbound lines into slot values on a command.
type Parser interface {
	// Parse consumes one line for cmd and reports the resulting status.
	Parse(cmd *Command, line text.Line) Outcome
	// Final renders the command as it will be executed, for confirmation.
	Final(cmd *Command) string
}

// Command is one unit of work.
type Command struct {
	id       string
	name     string
	created  time.Time
	touched  time.Time
	expiry   time.Duration
	ready    bool
	waiting  bool
	targets  *Targets
	handler  Handler
	strategy *Strategy
	parser   Parser
	ud       UserDestination
	now      func() time.Time
}

// Option configures a Command.
type Option func(*Command)

// WithExpiry sets the idle expiry; 0 disables expiry.
func WithExpiry(d time.Duration) Option {
	return func(c *Command) {
		if d >= 0 {
			c.expiry = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Command) {
		if now != nil {
			c.now = now
		}
	}
}

// WithHandler binds an explicit handler.
func WithHandler(h Handler) Option { return func(c *Command) { c.handler = h } }

// WithStrategy attaches a multi-phase strategy.
func WithStrategy(s *Strategy) Option { return func(c *Command) { c.strategy = s } }

// WithParser attaches a parser.
func WithParser(p Parser) Option { return func(c *Command) { c.parser = p } }

// New creates a command named name for ud.
func New(name string, ud UserDestination, opts ...Option) *Command {
	c := &Command{
		id:      uuid.NewString(),
		name:    name,
		expiry:  DefaultExpiry,
		targets: NewTargets(),
		ud:      ud,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.created = c.now()
	c.touched = c.created
	return c
}

// ID returns the unique command id.
func (c *Command) ID() string { return c.id }

// Name returns the command name.
func (c *Command) Name() string { return c.name }

// UserDestination returns the owning pair.
func (c *Command) UserDestination() UserDestination { return c.ud }

// Created returns the creation time.
func (c *Command) Created() time.Time { return c.created }

// Touched returns the last activity time.
func (c *Command) Touched() time.Time { return c.touched }

// Expiry returns the idle expiry (0 = never).
func (c *Command) Expiry() time.Duration { return c.expiry }

// SetExpiry changes the idle expiry; 0 disables expiry. Handlers that park
// a command far in the future use it so the command survives until it runs.
func (c *Command) SetExpiry(d time.Duration) {
	if d >= 0 {
		c.expiry = d
	}
}

// Touch resets the idle clock.
func (c *Command) Touch() { c.touched = c.now() }

// IsExpired reports whether the command has been idle longer than its expiry.
func (c *Command) IsExpired() bool {
	return c.expiry != 0 && c.now().Sub(c.touched) > c.expiry
}

// SetReady marks the command complete.
func (c *Command) SetReady(v bool) { c.ready = v }

// Ready reports whether every slot is satisfied.
func (c *Command) Ready() bool { return c.ready }

// SetWaiting marks the command as awaiting a yes/no.
func (c *Command) SetWaiting(v bool) { c.waiting = v }

// Waiting reports whether confirmation is pending.
func (c *Command) Waiting() bool { return c.waiting }

// Targets exposes the slot bag.
func (c *Command) Targets() *Targets { return c.targets }

// SetTarget stores a slot value; see Targets.Set.
func (c *Command) SetTarget(slot string, v any, repeatable bool) {
	c.targets.Set(slot, v, repeatable)
}

// Target returns a slot value rendered as text.
func (c *Command) Target(slot string) (string, error) {
	s, err := c.targets.String(slot)
	if err != nil {
		return "", fmt.Errorf("command %s: %w", c.name, err)
	}
	return s, nil
}

// Handler returns the bound handler, if any.
func (c *Command) Handler() Handler { return c.handler }

// Strategy returns the attached strategy, if any.
func (c *Command) Strategy() *Strategy { return c.strategy }

// Parser returns the attached parser, if any.
func (c *Command) Parser() Parser { return c.parser }

// Ingest touches the command and feeds line to its parser. Commands without
// a parser are complete as soon as they receive a line.
func (c *Command) Ingest(line text.Line) Outcome {
	c.Touch()
	if c.parser == nil {
		return Outcome{Status: StatusOK}
	}
	return c.parser.Parse(c, line)
}

// Final renders the command for confirmation, falling back to its name.
func (c *Command) Final() string {
	if c.parser == nil {
		return c.name
	}
	return c.parser.Final(c)
}
