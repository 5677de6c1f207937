package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-bot/internal/command"
	"github.com/tbourn/go-chat-bot/internal/engine"
	"github.com/tbourn/go-chat-bot/internal/repo"
)

// Submitter accepts events for the engine loop. *engine.Engine implements it.
type Submitter interface {
	Submit(ctx context.Context, ev engine.Event) error
}

// Inbound is a chat message delivered by a transport.
type Inbound struct {
	MessageID     string
	UserID        string
	DestinationID string
	Text          string
	// Group marks a room message; it is only routed when it mentions the bot.
	Group bool
}

// InboxService validates inbound events, drops redeliveries and hands the
// rest to the engine.
type InboxService struct {
	DB           *gorm.DB
	Engine       Submitter
	ReceiptTTL   time.Duration
	MaxTextRunes int
	Now          func() time.Time
}

func (s *InboxService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Accept submits a message. With a MessageID, a second delivery of the same
// id within ReceiptTTL returns ErrDuplicateMessage and is not submitted.
func (s *InboxService) Accept(ctx context.Context, in Inbound) error {
	tr := otel.Tracer("services/InboxService")
	ctx, span := tr.Start(ctx, "Accept",
		trace.WithAttributes(
			attribute.String("user.id", in.UserID),
			attribute.String("destination.id", in.DestinationID),
			attribute.Bool("message.group", in.Group),
		),
	)
	defer span.End()

	in.Text = strings.TrimSpace(in.Text)
	switch {
	case strings.TrimSpace(in.UserID) == "":
		return ErrUserRequired
	case in.Text == "":
		return ErrEmptyText
	case s.MaxTextRunes > 0 && utf8.RuneCountInString(in.Text) > s.MaxTextRunes:
		return ErrTooLong
	case in.Group && strings.TrimSpace(in.DestinationID) == "":
		return ErrDestinationRequired
	}

	if in.MessageID != "" && s.DB != nil {
		if _, err := repo.CreateReceipt(ctx, s.DB, in.MessageID, in.UserID, in.DestinationID, s.now(), s.ReceiptTTL); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				span.SetAttributes(attribute.Bool("message.duplicate", true))
				return ErrDuplicateMessage
			}
			return err
		}
	}

	kind := engine.KindDirect
	if in.Group {
		kind = engine.KindGroup
	}
	err := s.submit(ctx, engine.Event{Kind: kind, UserID: in.UserID, DestinationID: in.DestinationID, Text: in.Text})
	if err != nil && in.MessageID != "" && s.DB != nil {
		// Let the transport redeliver.
		_ = repo.DeleteReceipt(ctx, s.DB, in.MessageID)
	}
	return err
}

// Notify submits a non-message event (join, leave, presence, close).
func (s *InboxService) Notify(ctx context.Context, ev engine.Event) error {
	tr := otel.Tracer("services/InboxService")
	ctx, span := tr.Start(ctx, "Notify",
		trace.WithAttributes(attribute.String("event.kind", ev.Kind.String())),
	)
	defer span.End()

	switch ev.Kind {
	case engine.KindJoin, engine.KindLeave:
		if ev.UserID == "" {
			return ErrUserRequired
		}
		if ev.DestinationID == "" {
			return ErrDestinationRequired
		}
	case engine.KindPresence:
		if ev.UserID == "" {
			return ErrUserRequired
		}
	case engine.KindClose:
	default:
		return fmt.Errorf("unsupported event kind %s", ev.Kind)
	}
	return s.submit(ctx, ev)
}

func (s *InboxService) submit(ctx context.Context, ev engine.Event) error {
	if err := s.Engine.Submit(ctx, ev); err != nil {
		if errors.Is(err, engine.ErrStopped) {
			return ErrEngineUnavailable
		}
		return err
	}
	return nil
}

// PurgeHandler returns a command handler that deletes expired receipts and
// runs again after every interval.
func (s *InboxService) PurgeHandler(interval time.Duration) command.Handler {
	return func(ctx context.Context, _ *command.Command) *command.Response {
		if _, err := repo.PurgeReceipts(ctx, s.DB, s.now()); err != nil {
			return command.Error(fmt.Errorf("purge receipts: %w", err))
		}
		return command.Requeue(interval)
	}
}
