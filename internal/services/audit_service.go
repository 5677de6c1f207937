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
	"github.com/tbourn/go-chat-bot/internal/router"
)

// AuditService keeps one row per command run.
type AuditService struct {
	DB  *gorm.DB
	Now func() time.Time
	Log zerolog.Logger
}

// Record stores ev. It is meant to be subscribed to router.Router.Completed;
// storage failures are logged, never propagated into the engine loop.
func (s *AuditService) Record(ev router.RunEvent) {
	ctx, span := otel.Tracer("services/AuditService").Start(context.Background(), "Record",
		trace.WithAttributes(
			attribute.String("command.name", ev.Command.Name()),
			attribute.String("command.response", ev.Response.Kind.String()),
		),
	)
	defer span.End()

	ud := ev.Command.UserDestination()
	run := &domain.CommandRun{
		CommandID:     ev.Command.ID(),
		Name:          ev.Command.Name(),
		UserID:        ud.UserID,
		DestinationID: ud.DestinationID,
		Response:      ev.Response.Kind.String(),
		DurationMS:    ev.Duration.Milliseconds(),
	}
	if s.Now != nil {
		run.CreatedAt = s.Now().UTC()
	}
	if ev.Response.Err != nil {
		run.Error = ev.Response.Err.Error()
	}
	if err := repo.CreateRun(ctx, s.DB, run); err != nil {
		span.RecordError(err)
		s.Log.Warn().Err(err).Str("command_id", run.CommandID).Msg("audit write failed")
	}
}

// ListPage returns runs newest first, optionally only those of name.
func (s *AuditService) ListPage(ctx context.Context, name string, page, pageSize int) ([]domain.CommandRun, int64, error) {
	tr := otel.Tracer("services/AuditService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(attribute.String("command.name", name)),
	)
	defer span.End()

	total, err := repo.CountRuns(ctx, s.DB, name)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListRunsPage(ctx, s.DB, name, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Stats counts runs per command and response kind.
func (s *AuditService) Stats(ctx context.Context) ([]repo.RunCount, error) {
	ctx, span := otel.Tracer("services/AuditService").Start(ctx, "Stats")
	defer span.End()
	return repo.RunStats(ctx, s.DB)
}
