package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/repo"
)

// OutboxService is the bot's outbound transport when it is driven over HTTP:
// every reply is stored per destination for the chat platform to collect.
// It implements persona.Transport.
type OutboxService struct {
	DB  *gorm.DB
	Now func() time.Time
	Log zerolog.Logger
}

// SendChat stores text for destinationID.
func (s *OutboxService) SendChat(ctx context.Context, destinationID, text string) error {
	tr := otel.Tracer("services/OutboxService")
	ctx, span := tr.Start(ctx, "SendChat",
		trace.WithAttributes(attribute.String("destination.id", destinationID)),
	)
	defer span.End()

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	o, err := repo.CreateOutbound(ctx, s.DB, destinationID, text, now)
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.Log.Debug().Str("destination_id", destinationID).Str("outbound_id", o.ID).Msg("message stored")
	return nil
}

// ListPage returns one page of messages sent to destinationID and the total.
func (s *OutboxService) ListPage(ctx context.Context, destinationID string, page, pageSize int) ([]domain.Outbound, int64, error) {
	tr := otel.Tracer("services/OutboxService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("destination.id", destinationID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	total, err := repo.CountOutbound(ctx, s.DB, destinationID)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListOutboundPage(ctx, s.DB, destinationID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Stats returns the message count and newest timestamp for destinationID.
func (s *OutboxService) Stats(ctx context.Context, destinationID string) (int64, *time.Time, error) {
	return repo.OutboundStats(ctx, s.DB, destinationID)
}
