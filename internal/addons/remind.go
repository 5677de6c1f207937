package addons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tbourn/go-chat-bot/internal/command"
)

// Remind phases.
const (
	PhaseSchedule command.Phase = "schedule"
	PhaseDeliver  command.Phase = "deliver"
)

// NewRemindStrategy returns the two-step reminder workflow.
func NewRemindStrategy() *command.Strategy {
	return command.NewStrategy("remind", PhaseSchedule, PhaseDeliver)
}

// Remind handles "remind {who} on {date}". The first run parks the command
// until the date; the second delivers the reminder.
type Remind struct {
	deps   Deps
	notify *Notify
}

// NewRemind returns the remind addon. Users who turned notifications off
// are not reminded.
func NewRemind(d Deps, n *Notify) *Remind { return &Remind{deps: d, notify: n} }

// Handle is the command.Handler for remind.
func (r *Remind) Handle(ctx context.Context, cmd *command.Command) *command.Response {
	st := cmd.Strategy()
	if st == nil {
		return command.Error(errors.New("remind requires a strategy"))
	}
	phase, ok := st.Next()
	if !ok {
		return command.OK()
	}
	switch phase {
	case PhaseSchedule:
		return r.schedule(ctx, cmd)
	case PhaseDeliver:
		return r.deliver(ctx, cmd)
	}
	return command.Error(fmt.Errorf("remind: unexpected phase %s", phase))
}

func (r *Remind) schedule(ctx context.Context, cmd *command.Command) *command.Response {
	ud := cmd.UserDestination()
	who, err := cmd.Target("who")
	if err != nil {
		return command.Error(err)
	}
	date, err := cmd.Target("date")
	if err != nil {
		return command.Error(err)
	}
	u, err := lookupUser(r.deps.Roster, who)
	if err != nil {
		r.deps.reply(r.deps.Reply.SendError(ctx, ud, "I don't know who "+who+" is"), ud, "remind")
		return command.Error(err)
	}
	at, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return command.Error(fmt.Errorf("remind: %w", err))
	}
	// Replace the name with the id so delivery survives renames.
	cmd.SetTarget("who", u.ID, false)
	cmd.SetExpiry(0)
	r.deps.reply(r.deps.Reply.SendAcknowledge(ctx, ud, fmt.Sprintf("I'll remind %s on %s", u.Mention(), date)), ud, "remind")
	return command.RequeueAt(at)
}

func (r *Remind) deliver(ctx context.Context, cmd *command.Command) *command.Response {
	ud := cmd.UserDestination()
	whoID, err := cmd.Target("who")
	if err != nil {
		return command.Error(err)
	}
	mention := r.deps.mention(whoID)
	if !r.notify.Enabled(whoID) {
		r.deps.Log.Info().Str("user_id", whoID).Msg("reminder suppressed, notifications off")
		r.deps.reply(r.deps.Reply.SendComplete(ctx, ud, mention+" has notifications turned off, so I didn't remind them"), ud, "remind")
		return command.OK()
	}

	dest := ud.DestinationID
	if conv, err := r.deps.Roster.ConversationWith(whoID); err == nil {
		dest = conv.ID
	}
	msg := fmt.Sprintf("%s, %s asked me to remind you about today.", mention, r.deps.mention(ud.UserID))
	if err := r.deps.Reply.SendMessage(ctx, dest, msg); err != nil {
		return command.Error(err)
	}
	r.deps.reply(r.deps.Reply.SendComplete(ctx, ud, "I reminded "+mention), ud, "remind")
	return command.OK()
}
