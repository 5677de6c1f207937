package persona

import (
	"context"
	"fmt"

	"github.com/tbourn/go-chat-bot/internal/command"
	"github.com/tbourn/go-chat-bot/internal/roster"
)

// Transport delivers plain text to a destination.
type Transport interface {
	SendChat(ctx context.Context, destinationID, text string) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, destinationID, text string) error

// SendChat implements Transport.
func (f TransportFunc) SendChat(ctx context.Context, destinationID, text string) error {
	return f(ctx, destinationID, text)
}

// Sink styles router replies with a Persona and hands them to a Transport.
// Users are mentioned by roster name when known.
type Sink struct {
	Persona   *Persona
	Roster    *roster.Roster
	Transport Transport
}

// NewSink wires a Sink.
func NewSink(p *Persona, r *roster.Roster, t Transport) *Sink {
	return &Sink{Persona: p, Roster: r, Transport: t}
}

func (s *Sink) mention(userID string) string {
	if s.Roster != nil {
		if u, err := s.Roster.User(userID); err == nil && u.Name != "" {
			return u.Mention()
		}
	}
	return "<@" + userID + ">"
}

func (s *Sink) send(ctx context.Context, ud command.UserDestination, msg string) error {
	if err := s.Transport.SendChat(ctx, ud.DestinationID, msg); err != nil {
		return fmt.Errorf("send to %s: %w", ud.DestinationID, err)
	}
	return nil
}

// SendAddressed sends msg addressed to the user.
func (s *Sink) SendAddressed(ctx context.Context, ud command.UserDestination, msg string) error {
	return s.send(ctx, ud, s.Persona.Addressed(s.mention(ud.UserID), msg))
}

// SendConfirm asks the user to confirm final.
func (s *Sink) SendConfirm(ctx context.Context, ud command.UserDestination, final string) error {
	return s.send(ctx, ud, s.Persona.Confirm(s.mention(ud.UserID), final))
}

// SendError reports msg as an error.
func (s *Sink) SendError(ctx context.Context, ud command.UserDestination, msg string) error {
	return s.send(ctx, ud, s.Persona.Error(s.mention(ud.UserID), msg))
}

// SendComplete reports that msg is done.
func (s *Sink) SendComplete(ctx context.Context, ud command.UserDestination, msg string) error {
	return s.send(ctx, ud, s.Persona.Complete(s.mention(ud.UserID), msg))
}

// SendAcknowledge accepts a request.
func (s *Sink) SendAcknowledge(ctx context.Context, ud command.UserDestination, msg string) error {
	return s.send(ctx, ud, s.Persona.Acknowledge(s.mention(ud.UserID), msg))
}

// SendMessage sends text as-is.
func (s *Sink) SendMessage(ctx context.Context, destinationID, text string) error {
	return s.Transport.SendChat(ctx, destinationID, text)
}

// Emphasize renders s in bold.
func (s *Sink) Emphasize(v string) string { return "*" + v + "*" }
