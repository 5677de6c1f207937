package router

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-chat-bot/internal/command"
)

// Tick runs every due job, then drops pending commands that have been idle
// past their expiry. It returns the number of commands run.
func (r *Router) Tick(ctx context.Context) int {
	jobs := r.queue.Drain()
	for _, j := range jobs {
		if ctx.Err() != nil {
			// Put the rest back for the next tick.
			r.Queue(j.Command, 0)
			continue
		}
		r.RunCommand(ctx, j.Command)
	}
	queueDepth.Set(float64(r.queue.Len()))
	r.expire()
	return len(jobs)
}

func (r *Router) expire() {
	r.mu.Lock()
	var expired []string
	for key, cmd := range r.pending {
		if cmd.IsExpired() {
			delete(r.pending, key)
			expired = append(expired, cmd.Name()+"/"+cmd.ID())
		}
	}
	pendingGauge.Set(float64(len(r.pending)))
	r.mu.Unlock()

	for _, c := range expired {
		expiredTotal.Inc()
		r.log.Warn().Str("command", c).Msg("pending command expired")
	}
}

// RunCommand dispatches cmd and applies a requeue response. Expired commands
// are never handed to a handler.
func (r *Router) RunCommand(ctx context.Context, cmd *command.Command) *command.Response {
	ctx, span := otel.Tracer("router").Start(ctx, "RunCommand",
		trace.WithAttributes(
			attribute.String("command.name", cmd.Name()),
			attribute.String("command.id", cmd.ID()),
		),
	)
	defer span.End()

	start := r.now()
	resp := r.dispatch(ctx, cmd)
	elapsed := r.now().Sub(start)

	span.SetAttributes(attribute.String("command.response", resp.Kind.String()))
	if resp.Err != nil {
		span.RecordError(resp.Err)
		span.SetStatus(codes.Error, resp.Err.Error())
	}

	lg := r.log.With().
		Str("command", cmd.Name()).
		Str("command_id", cmd.ID()).
		Str("response", resp.Kind.String()).
		Logger()
	switch resp.Kind {
	case command.KindRequeue:
		if resp.IsDelta() {
			r.Queue(cmd, resp.Delay)
			lg.Debug().Dur("delay", resp.Delay).Msg("command requeued")
		} else {
			r.QueueAt(cmd, resp.At)
			lg.Debug().Time("at", resp.At).Msg("command requeued")
		}
	case command.KindError:
		lg.Error().Err(resp.Err).Msg("command failed")
	case command.KindNoHandler, command.KindExpired:
		lg.Warn().Msg("command not run")
	default:
		lg.Info().Dur("elapsed", elapsed).Msg("command run")
	}

	responsesTotal.WithLabelValues(cmd.Name(), resp.Kind.String()).Inc()
	runDuration.WithLabelValues(cmd.Name()).Observe(elapsed.Seconds())
	r.Completed.Fire(RunEvent{Command: cmd, Response: resp, Duration: elapsed})
	return resp
}

func (r *Router) dispatch(ctx context.Context, cmd *command.Command) (resp *command.Response) {
	if cmd.IsExpired() {
		return command.Expired()
	}
	defer func() {
		if p := recover(); p != nil {
			resp = command.Error(fmt.Errorf("handler panic: %v", p))
		}
	}()

	if h := cmd.Handler(); h != nil {
		if resp := h(ctx, cmd); resp != nil {
			return resp
		}
	}
	if h := r.handler(cmd.Name()); h != nil {
		if resp := h(ctx, cmd); resp != nil {
			return resp
		}
	}
	if resp, ok := r.Commands.First(CommandEvent{Ctx: ctx, Command: cmd}); ok && resp != nil {
		return resp
	}
	return command.NoHandler()
}
