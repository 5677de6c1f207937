package roster

import (
	"strings"
	"time"
)

// Entity type tags.
const (
	TypeUser         = "User"
	TypeRoom         = "Room"
	TypeConversation = "Conversation"
)

// DefaultUserTTL is how long a user profile is considered fresh.
const DefaultUserTTL = 15 * time.Minute

// User is a chat participant. Users are served stale and refreshed in the
// background once their TTL lapses.
type User struct {
	ID       string   `yaml:"id"        json:"id"`
	Name     string   `yaml:"name"      json:"name"`
	RealName string   `yaml:"real_name" json:"real_name,omitempty"`
	Email    string   `yaml:"email"     json:"email,omitempty"`
	Presence string   `yaml:"presence"  json:"presence,omitempty"`
	Roles    []string `yaml:"roles"     json:"roles,omitempty"`
	Bot      bool     `yaml:"bot"       json:"bot,omitempty"`

	// TTL overrides DefaultUserTTL when positive.
	TTL time.Duration `yaml:"ttl" json:"-"`
}

func (u *User) MapType() string         { return TypeUser }
func (u *User) MapKey() string          { return "id" }
func (u *User) MapProperties() []string { return []string{"id", "name"} }

func (u *User) MapValue(prop string) string {
	switch prop {
	case "id":
		return u.ID
	case "name":
		return u.Name
	case "email":
		return u.Email
	}
	return ""
}

// CachePolicy implements Entity. The bot's own user never expires.
func (u *User) CachePolicy() (Policy, time.Duration) {
	if u.Bot {
		return NeverExpires, 0
	}
	ttl := u.TTL
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	return ServeStaleRefresh, ttl
}

// HasRole reports whether the user carries any of roles.
func (u *User) HasRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range u.Roles {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// Mention returns the chat reference for the user.
func (u *User) Mention() string { return "@" + u.Name }

// Room is a group channel.
type Room struct {
	ID      string   `yaml:"id"      json:"id"`
	Name    string   `yaml:"name"    json:"name"`
	Topic   string   `yaml:"topic"   json:"topic,omitempty"`
	Members []string `yaml:"members" json:"members,omitempty"`
	Private bool     `yaml:"private" json:"private,omitempty"`
}

func (r *Room) MapType() string         { return TypeRoom }
func (r *Room) MapKey() string          { return "id" }
func (r *Room) MapProperties() []string { return []string{"id", "name"} }

func (r *Room) MapValue(prop string) string {
	switch prop {
	case "id":
		return r.ID
	case "name":
		return r.Name
	}
	return ""
}

// CachePolicy implements Entity. Rooms change only through events.
func (r *Room) CachePolicy() (Policy, time.Duration) { return NeverExpires, 0 }

// HasMember reports whether userID is in the room.
func (r *Room) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Conversation is a direct-message channel with one user.
type Conversation struct {
	ID     string `yaml:"id"      json:"id"`
	UserID string `yaml:"user_id" json:"user_id"`
}

func (c *Conversation) MapType() string         { return TypeConversation }
func (c *Conversation) MapKey() string          { return "id" }
func (c *Conversation) MapProperties() []string { return []string{"id", "userid"} }

func (c *Conversation) MapValue(prop string) string {
	switch prop {
	case "id":
		return c.ID
	case "userid":
		return c.UserID
	}
	return ""
}

// CachePolicy implements Entity.
func (c *Conversation) CachePolicy() (Policy, time.Duration) { return ServeStale, 0 }
