package addons

import (
	"context"
	"fmt"
	"sync"

	"github.com/tbourn/go-chat-bot/internal/command"
)

// Notify handles "notify {state}" and remembers each user's choice.
// Users receive notifications unless they turned them off.
type Notify struct {
	deps Deps

	mu  sync.RWMutex
	off map[string]bool
}

// NewNotify returns the notify addon.
func NewNotify(d Deps) *Notify { return &Notify{deps: d, off: make(map[string]bool)} }

// Enabled reports whether userID accepts notifications.
func (n *Notify) Enabled(userID string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return !n.off[userID]
}

// Set records userID's preference.
func (n *Notify) Set(userID string, on bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if on {
		delete(n.off, userID)
	} else {
		n.off[userID] = true
	}
}

// Handle is the command.Handler for notify.
func (n *Notify) Handle(ctx context.Context, cmd *command.Command) *command.Response {
	state, err := cmd.Target("state")
	if err != nil {
		return command.Error(err)
	}
	ud := cmd.UserDestination()
	switch state {
	case "enable":
		n.Set(ud.UserID, true)
	case "disable":
		n.Set(ud.UserID, false)
	default:
		return command.Error(fmt.Errorf("notify: unknown state %q", state))
	}
	n.deps.reply(n.deps.Reply.SendAcknowledge(ctx, ud, "notifications "+state+"d"), ud, "notify")
	return command.OK()
}
