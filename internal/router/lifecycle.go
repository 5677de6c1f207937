package router

import (
	"context"
	"regexp"

	"github.com/tbourn/go-chat-bot/internal/command"
	"github.com/tbourn/go-chat-bot/internal/text"
)

// OnDirectMessage handles a private message. When destinationID is empty the
// user's conversation is looked up in the roster.
func (r *Router) OnDirectMessage(ctx context.Context, userID, destinationID, raw string) {
	if text.Blank(raw) {
		return
	}
	if destinationID == "" && r.roster != nil {
		if conv, err := r.roster.ConversationWith(userID); err == nil {
			destinationID = conv.ID
		}
	}
	if destinationID == "" {
		r.log.Warn().Str("user_id", userID).Msg("no conversation for direct message")
		return
	}
	r.Private.Fire(MessageEvent{UserID: userID, DestinationID: destinationID, Text: raw})
	r.OnDirected(ctx, userID, destinationID, raw)
}

// OnGroupMessage handles a room message. Only messages that mention the bot
// are treated as directed; the mention is stripped first.
func (r *Router) OnGroupMessage(ctx context.Context, userID, roomID, raw string) {
	if text.Blank(raw) {
		return
	}
	r.Group.Fire(MessageEvent{UserID: userID, DestinationID: roomID, Text: raw})
	if r.mention == nil {
		return
	}
	body, ok := stripMention(raw, r.mention)
	if !ok {
		return
	}
	r.OnDirected(ctx, userID, roomID, body)
}

// OnDirected ingests every non-blank line of a message addressed to the bot.
func (r *Router) OnDirected(ctx context.Context, userID, destinationID, raw string) {
	ud := command.UserDestination{UserID: userID, DestinationID: destinationID}
	if r.Muted(ud) {
		r.log.Debug().Str("ud", ud.Key()).Msg("muted")
		return
	}
	r.log.Info().Str("ud", ud.Key()).Str("text", raw).Msg("directed")
	for _, l := range text.SplitLines(raw) {
		r.Ingest(ctx, ud, text.NewLine(l))
	}
}

// OnJoin reports a user joining a room.
func (r *Router) OnJoin(roomID, userID string) {
	r.Joins.Fire(MembershipEvent{RoomID: roomID, UserID: userID})
}

// OnLeave reports a user leaving a room.
func (r *Router) OnLeave(roomID, userID string) {
	r.Leaves.Fire(MembershipEvent{RoomID: roomID, UserID: userID})
}

// OnPresenceChange reports a presence change.
func (r *Router) OnPresenceChange(userID, presence string) {
	r.Presence.Fire(PresenceEvent{UserID: userID, Presence: presence})
}

// OnClose reports the transport closing.
func (r *Router) OnClose(code int, reason string) {
	r.log.Warn().Int("code", code).Str("reason", reason).Msg("connection closed")
	r.Closed.Fire(CloseEvent{Code: code, Reason: reason})
}

// mentionPattern matches "<@id>" with optional trailing ".", "," or "?".
func mentionPattern(botID string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|\s)` + regexp.QuoteMeta("<@"+botID+">") + `\.?,?\??`)
}

func stripMention(raw string, re *regexp.Regexp) (string, bool) {
	if !re.MatchString(raw) {
		return "", false
	}
	return re.ReplaceAllString(raw, "$1"), true
}
