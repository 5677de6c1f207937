package router

import "github.com/tbourn/go-chat-bot/internal/roster"

// RosterAccess grants commands to users holding any of the command's roles.
// Subscribe it to Router.Access.
func RosterAccess(ro *roster.Roster) func(AccessEvent) (bool, bool) {
	return func(ev AccessEvent) (bool, bool) {
		u, err := ro.User(ev.UD.UserID)
		if err != nil {
			return false, false
		}
		return u.HasRole(ev.Roles...), true
	}
}
