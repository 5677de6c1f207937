package roster

import (
	"fmt"
)

// Roster is a Cache with typed accessors for the built-in entities.
type Roster struct {
	*Cache
}

// New returns an empty roster.
func New(opts ...Option) *Roster { return &Roster{Cache: NewCache(opts...)} }

func unmapAs[T Entity](r *Roster, typ, prop, value string) (T, error) {
	var zero T
	e, err := r.Unmap(typ, prop, value)
	if err != nil {
		return zero, err
	}
	t, ok := e.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s::%s(%s) has type %T", ErrNotFound, typ, prop, value, e)
	}
	return t, nil
}

// User looks a user up by id.
func (r *Roster) User(id string) (*User, error) { return unmapAs[*User](r, TypeUser, "id", id) }

// UserByName looks a user up by handle.
func (r *Roster) UserByName(name string) (*User, error) {
	return unmapAs[*User](r, TypeUser, "name", name)
}

// Room looks a room up by id.
func (r *Roster) Room(id string) (*Room, error) { return unmapAs[*Room](r, TypeRoom, "id", id) }

// RoomByName looks a room up by name.
func (r *Roster) RoomByName(name string) (*Room, error) {
	return unmapAs[*Room](r, TypeRoom, "name", name)
}

// Conversation looks a direct-message channel up by id.
func (r *Roster) Conversation(id string) (*Conversation, error) {
	return unmapAs[*Conversation](r, TypeConversation, "id", id)
}

// ConversationWith returns the direct-message channel for a user.
func (r *Roster) ConversationWith(userID string) (*Conversation, error) {
	return unmapAs[*Conversation](r, TypeConversation, "userid", userID)
}

// Rooms returns every cached room.
func (r *Roster) Rooms() []*Room {
	var out []*Room
	for _, e := range r.All(TypeRoom) {
		if room, ok := e.(*Room); ok {
			out = append(out, room)
		}
	}
	return out
}

// Users returns every cached user.
func (r *Roster) Users() []*User {
	var out []*User
	for _, e := range r.All(TypeUser) {
		if u, ok := e.(*User); ok {
			out = append(out, u)
		}
	}
	return out
}
