// Package addons holds the bot's built-in commands: help, notify, remind
// and ban. Their argument schemas live in the command definitions file;
// Install binds each compiled schema to the handler of the same name.
package addons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-bot/internal/command"
	"github.com/tbourn/go-chat-bot/internal/parser"
	"github.com/tbourn/go-chat-bot/internal/roster"
	"github.com/tbourn/go-chat-bot/internal/router"
)

// Replier is how addons talk back. persona.Sink implements it.
type Replier interface {
	SendAddressed(ctx context.Context, ud command.UserDestination, msg string) error
	SendAcknowledge(ctx context.Context, ud command.UserDestination, msg string) error
	SendComplete(ctx context.Context, ud command.UserDestination, msg string) error
	SendError(ctx context.Context, ud command.UserDestination, msg string) error
	SendMessage(ctx context.Context, destinationID, text string) error
}

// Deps are the collaborators shared by all addons.
type Deps struct {
	Router *router.Router
	Roster *roster.Roster
	Reply  Replier
	Now    func() time.Time
	Log    zerolog.Logger
}

// Addons is the set of built-in commands.
type Addons struct {
	deps   Deps
	Help   *Help
	Notify *Notify
	Remind *Remind
	Ban    *Ban
}

// New builds the addons.
func New(d Deps) *Addons {
	if d.Now == nil {
		d.Now = time.Now
	}
	notify := NewNotify(d)
	return &Addons{
		deps:   d,
		Help:   NewHelp(d),
		Notify: notify,
		Remind: NewRemind(d, notify),
		Ban:    NewBan(d),
	}
}

func (a *Addons) handlers() map[string]command.Handler {
	return map[string]command.Handler{
		"help":   a.Help.Handle,
		"notify": a.Notify.Handle,
		"remind": a.Remind.Handle,
		"ban":    a.Ban.Handle,
	}
}

// Install registers the addon handlers and one initiator per schema. A
// schema without a matching handler is an error.
func (a *Addons) Install(schemas []*parser.Schema) error {
	r := a.deps.Router
	for name, h := range a.handlers() {
		if err := r.RegisterHandler(name, h); err != nil {
			return err
		}
	}
	for _, s := range schemas {
		def := s.Definition()
		in := router.Initiator{
			Name:   s.Name(),
			Roles:  def.Roles,
			Schema: s,
		}
		if def.Expiry != nil {
			in.Expiry = *def.Expiry
			if in.Expiry == 0 {
				in.Expiry = -1
			}
		}
		if strings.EqualFold(s.Name(), "remind") {
			in.Strategy = NewRemindStrategy
		}
		if err := r.Register(in); err != nil {
			return fmt.Errorf("install %s: %w", s.Name(), err)
		}
	}
	r.Mutes.Subscribe(a.Ban.Muted)
	return nil
}

// lookupUser resolves "alice", "@alice" or a raw user id.
func lookupUser(ro *roster.Roster, ref string) (*roster.User, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "@")
	if u, err := ro.UserByName(ref); err == nil {
		return u, nil
	}
	return ro.User(strings.Trim(ref, "<>"))
}

func (d Deps) mention(userID string) string {
	if u, err := d.Roster.User(userID); err == nil {
		return u.Mention()
	}
	return "<@" + userID + ">"
}

func (d Deps) reply(err error, ud command.UserDestination, what string) {
	if err != nil {
		d.Log.Warn().Err(err).Str("ud", ud.Key()).Msg(what + " reply failed")
	}
}
