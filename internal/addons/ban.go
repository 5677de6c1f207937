package addons

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tbourn/go-chat-bot/internal/command"
)

// Ban handles "ban {user} for {span}". Banned users are muted until the ban
// runs out. Banning another admin needs --force; the bot cannot be banned.
type Ban struct {
	deps Deps

	mu    sync.RWMutex
	until map[string]time.Time
}

// NewBan returns the ban addon.
func NewBan(d Deps) *Ban { return &Ban{deps: d, until: make(map[string]time.Time)} }

// Until returns when userID's ban ends.
func (b *Ban) Until(userID string) (time.Time, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.until[userID]
	return t, ok
}

// Muted is a router mute subscriber. Expired bans are forgotten lazily.
func (b *Ban) Muted(ud command.UserDestination) (bool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.until[ud.UserID]
	if !ok {
		return false, false
	}
	if !b.deps.Now().Before(t) {
		delete(b.until, ud.UserID)
		return false, false
	}
	return true, true
}

// Handle is the command.Handler for ban.
func (b *Ban) Handle(ctx context.Context, cmd *command.Command) *command.Response {
	ud := cmd.UserDestination()
	ref, err := cmd.Target("user")
	if err != nil {
		return command.Error(err)
	}
	span, err := cmd.Target("span")
	if err != nil {
		return command.Error(err)
	}
	fail := func(msg string, err error) *command.Response {
		b.deps.reply(b.deps.Reply.SendError(ctx, ud, msg), ud, "ban")
		return command.Error(err)
	}

	u, err := lookupUser(b.deps.Roster, ref)
	if err != nil {
		return fail("I don't know who "+ref+" is", err)
	}
	switch {
	case u.Bot:
		return fail("I can't ban myself", fmt.Errorf("ban: refusing to ban bot user %s", u.ID))
	case u.ID == ud.UserID:
		return fail("you can't ban yourself", fmt.Errorf("ban: self ban by %s", u.ID))
	case u.HasRole("admin") && !cmd.Targets().Bool("force"):
		return fail(u.Mention()+" is an admin, use --force if you really mean it", fmt.Errorf("ban: %s is an admin", u.ID))
	}

	until, err := addSpan(b.deps.Now(), span)
	if err != nil {
		return command.Error(err)
	}
	b.mu.Lock()
	b.until[u.ID] = until
	b.mu.Unlock()

	b.deps.Log.Info().Str("user_id", u.ID).Time("until", until).Str("by", ud.UserID).Msg("user banned")
	b.deps.reply(b.deps.Reply.SendAcknowledge(ctx, ud, fmt.Sprintf("%s is banned until %s", u.Mention(), until.Format("2006-01-02 15:04 MST"))), ud, "ban")
	return command.OK()
}

// addSpan adds a timespan such as "3 days" or "1 month" to t.
func addSpan(t time.Time, span string) (time.Time, error) {
	f := strings.Fields(strings.ToLower(span))
	if len(f) != 2 {
		return t, fmt.Errorf("ban: bad timespan %q", span)
	}
	n, err := strconv.Atoi(f[0])
	if err != nil {
		return t, fmt.Errorf("ban: bad timespan %q: %w", span, err)
	}
	switch strings.TrimSuffix(f[1], "s") {
	case "day":
		return t.AddDate(0, 0, n), nil
	case "month":
		return t.AddDate(0, n, 0), nil
	case "year":
		return t.AddDate(n, 0, 0), nil
	}
	return t, fmt.Errorf("ban: bad timespan unit %q", f[1])
}
