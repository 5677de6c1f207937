package roster

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Directory is the authoritative source the roster is filled from, usually
// the chat platform's API.
type Directory interface {
	Rooms(ctx context.Context) ([]*Room, error)
	Users(ctx context.Context) ([]*User, error)
	Conversations(ctx context.Context) ([]*Conversation, error)
	User(ctx context.Context, id string) (*User, error)
}

// StaticDirectory serves a fixed snapshot, typically loaded from a YAML seed
// file. It is safe for concurrent use.
type StaticDirectory struct {
	mu            sync.RWMutex
	userTTL       time.Duration
	users         []*User
	rooms         []*Room
	conversations []*Conversation
}

type directoryFile struct {
	Users         []*User         `yaml:"users"`
	Rooms         []*Room         `yaml:"rooms"`
	Conversations []*Conversation `yaml:"conversations"`
}

// NewStaticDirectory returns a directory over the given entities.
func NewStaticDirectory(users []*User, rooms []*Room, convs []*Conversation) *StaticDirectory {
	return &StaticDirectory{users: users, rooms: rooms, conversations: convs}
}

// LoadDirectory decodes a YAML seed document:
//
//	users:
//	  - {id: U1, name: alice, roles: [admin]}
//	rooms:
//	  - {id: C1, name: general, members: [U1]}
//	conversations:
//	  - {id: D1, user_id: U1}
func LoadDirectory(r io.Reader) (*StaticDirectory, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f directoryFile
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode roster seed: %w", err)
	}
	return NewStaticDirectory(f.Users, f.Rooms, f.Conversations), nil
}

// LoadDirectoryFile reads a seed file from path.
func LoadDirectoryFile(path string) (*StaticDirectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadDirectory(f)
}

// Rooms implements Directory.
func (d *StaticDirectory) Rooms(context.Context) ([]*Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Room(nil), d.rooms...), nil
}

// SetUserTTL sets the TTL given to users whose seed entry has none.
func (d *StaticDirectory) SetUserTTL(ttl time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.userTTL = ttl
}

func (d *StaticDirectory) copyUser(u *User) *User {
	cp := *u
	if cp.TTL <= 0 {
		cp.TTL = d.userTTL
	}
	return &cp
}

// Users implements Directory. Users are returned as copies.
func (d *StaticDirectory) Users(context.Context) ([]*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*User, len(d.users))
	for i, u := range d.users {
		out[i] = d.copyUser(u)
	}
	return out, nil
}

// Conversations implements Directory.
func (d *StaticDirectory) Conversations(context.Context) ([]*Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Conversation(nil), d.conversations...), nil
}

// User implements Directory. It returns a copy so callers can map it
// without aliasing the snapshot.
func (d *StaticDirectory) User(_ context.Context, id string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.ID == id {
			return d.copyUser(u), nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
}

// PutUser inserts or replaces a user in the snapshot.
func (d *StaticDirectory) PutUser(u *User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, have := range d.users {
		if have.ID == u.ID {
			d.users[i] = u
			return
		}
	}
	d.users = append(d.users, u)
}

// Replace swaps in the contents of other, keeping d's user TTL.
func (d *StaticDirectory) Replace(other *StaticDirectory) {
	other.mu.RLock()
	users, rooms, convs := other.users, other.rooms, other.conversations
	other.mu.RUnlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users, d.rooms, d.conversations = users, rooms, convs
}
