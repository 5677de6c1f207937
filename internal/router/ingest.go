package router

import (
	"context"

	"github.com/tbourn/go-chat-bot/internal/command"
	"github.com/tbourn/go-chat-bot/internal/text"
)

// Ingest feeds one line from ud into its pending command, or starts a new
// command when an initiator claims the line. It returns the command and the
// parse outcome; cmd is nil when the line was not routed.
func (r *Router) Ingest(ctx context.Context, ud command.UserDestination, line text.Line) (*command.Command, command.Outcome) {
	cmd, err := r.Pending(ud)
	if err != nil {
		cmd = r.route(ud, line)
		if cmd == nil {
			routedTotal.WithLabelValues("unrouted").Inc()
			r.Unrouted.Fire(UnroutedEvent{UD: ud, Line: line})
			return nil, command.Outcome{}
		}
		cmd = r.store(cmd)
		routedTotal.WithLabelValues("new").Inc()
	} else {
		routedTotal.WithLabelValues("pending").Inc()
	}

	lg := r.log.With().
		Str("command", cmd.Name()).
		Str("command_id", cmd.ID()).
		Str("ud", ud.Key()).
		Logger()

	out := cmd.Ingest(line)
	parsedTotal.WithLabelValues(out.Status.String()).Inc()
	lg.Debug().Str("status", out.Status.String()).Msg("line parsed")

	var sendErr error
	switch out.Status {
	case command.StatusError:
		cmd.SetReady(false)
		r.remove(ud)
		sendErr = r.sink.SendError(ctx, ud, out.Text(r.emphasize))
	case command.StatusNeedsConfirmation:
		cmd.SetReady(true)
		cmd.SetWaiting(true)
		sendErr = r.sink.SendConfirm(ctx, ud, cmd.Final())
	case command.StatusOK:
		cmd.SetReady(true)
		cmd.SetWaiting(false)
	case command.StatusContinue:
		cmd.SetReady(false)
		sendErr = r.sink.SendAddressed(ctx, ud, out.Text(r.emphasize))
	case command.StatusCancel:
		cmd.SetReady(false)
		r.remove(ud)
		sendErr = r.sink.SendAddressed(ctx, ud, "Command cancelled")
	}
	if sendErr != nil {
		lg.Warn().Err(sendErr).Msg("reply failed")
	}

	if cmd.Ready() && !cmd.Waiting() {
		r.remove(ud)
		r.Queue(cmd, 0)
		lg.Info().Msg("command queued")
	}
	return cmd, out
}

// route finds an initiator for line and builds a fresh command for it.
// Lines from users who lack the initiator's roles are treated as unrouted.
func (r *Router) route(ud command.UserDestination, line text.Line) *command.Command {
	in, ok := r.match(ud, line)
	if !ok {
		return nil
	}
	if len(in.Roles) > 0 && !r.allowed(ud, in) {
		deniedTotal.WithLabelValues(in.Name).Inc()
		r.log.Warn().Str("command", in.Name).Str("user_id", ud.UserID).Msg("access denied")
		return nil
	}

	expiry := r.expiry
	switch {
	case in.Expiry < 0:
		expiry = 0
	case in.Expiry > 0:
		expiry = in.Expiry
	}
	opts := []command.Option{
		command.WithClock(r.now),
		command.WithExpiry(expiry),
		command.WithHandler(in.Handler),
	}
	if in.Strategy != nil {
		opts = append(opts, command.WithStrategy(in.Strategy()))
	}
	if in.Schema != nil {
		opts = append(opts, command.WithParser(in.Schema.NewParser()))
	}
	cmd := command.New(in.Name, ud, opts...)
	r.log.Info().Str("command", cmd.Name()).Str("command_id", cmd.ID()).Str("ud", ud.Key()).Msg("command started")
	return cmd
}

func (r *Router) match(ud command.UserDestination, line text.Line) (Initiator, bool) {
	for _, in := range r.Initiators() {
		if in.matches(line) {
			return in, true
		}
	}
	return r.Routes.First(RouteEvent{UD: ud, Line: line})
}

func (r *Router) allowed(ud command.UserDestination, in Initiator) bool {
	for _, granted := range r.Access.Collect(AccessEvent{UD: ud, Command: in.Name, Roles: in.Roles}) {
		if granted {
			return true
		}
	}
	return false
}
