package roster

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-bot/internal/command"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newClock() *clock { return &clock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)} }

func TestMap_RemapReplacesChangedRoutes(t *testing.T) {
	r := New()
	u := &User{ID: "U1", Name: "alice"}
	if err := r.Map(u); err != nil {
		t.Fatalf("map: %v", err)
	}
	if got, err := r.UserByName("alice"); err != nil || got.ID != "U1" {
		t.Fatalf("by name: %v %v", got, err)
	}

	u.Name = "alicia"
	if err := r.Map(u); err != nil {
		t.Fatalf("remap: %v", err)
	}
	if _, err := r.UserByName("alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old route should be gone, err=%v", err)
	}
	if got, err := r.UserByName("alicia"); err != nil || got != u {
		t.Fatalf("new route missing: %v %v", got, err)
	}
	if r.Len() != 1 {
		t.Fatalf("len=%d", r.Len())
	}

	// Re-mapping with a new struct for the same key replaces the entry too.
	u2 := &User{ID: "U1", Name: "ally"}
	_ = r.Map(u2)
	if _, err := r.UserByName("alicia"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("route from previous struct should be gone")
	}
	if got, _ := r.User("U1"); got != u2 {
		t.Fatalf("primary entry not replaced")
	}
}

func TestMap_RejectsEmptyKey(t *testing.T) {
	if err := New().Map(&User{Name: "nobody"}); !errors.Is(err, ErrUnmappable) {
		t.Fatalf("want ErrUnmappable, got %v", err)
	}
}

func TestForgetAndPurge(t *testing.T) {
	r := New()
	room := &Room{ID: "C1", Name: "general"}
	_ = r.Map(room)
	_ = r.Map(&Conversation{ID: "D1", UserID: "U1"})

	r.Forget(room)
	if _, err := r.Room("C1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("room by id should be gone")
	}
	if _, err := r.RoomByName("general"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("room by name should be gone")
	}
	if c, err := r.ConversationWith("U1"); err != nil || c.ID != "D1" {
		t.Fatalf("conversation lookup: %v %v", c, err)
	}
	r.Forget(room) // no-op

	r.Purge()
	if r.Len() != 0 {
		t.Fatalf("purge left %d", r.Len())
	}
	if _, err := r.Conversation("D1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("conversation should be purged")
	}
}

func TestUnmap_ServeStaleRefresh(t *testing.T) {
	clk := newClock()
	r := New(WithClock(clk.Now))
	var refreshed []string
	r.OnRefresh(TypeUser, func(e Entity) { refreshed = append(refreshed, e.MapValue("id")) })

	u := &User{ID: "U1", Name: "alice", TTL: time.Minute}
	_ = r.Map(u)

	if _, err := r.User("U1"); err != nil || len(refreshed) != 0 {
		t.Fatalf("fresh read must not refresh: err=%v refreshed=%v", err, refreshed)
	}

	clk.t = clk.t.Add(2 * time.Minute)
	before := testutil.ToFloat64(lookups.WithLabelValues(TypeUser, "stale"))
	got, err := r.User("U1")
	if err != nil || got != u {
		t.Fatalf("stale read must return cached value: %v %v", got, err)
	}
	if len(refreshed) != 1 || refreshed[0] != "U1" {
		t.Fatalf("refreshed=%v", refreshed)
	}
	_, _ = r.UserByName("alice")
	if len(refreshed) != 2 {
		t.Fatalf("each stale read triggers one refresh, got %d", len(refreshed))
	}
	if d := testutil.ToFloat64(lookups.WithLabelValues(TypeUser, "stale")) - before; d != 2 {
		t.Fatalf("stale counter delta=%v", d)
	}

	// Re-mapping makes the entry fresh again.
	_ = r.Map(&User{ID: "U1", Name: "alice", TTL: time.Minute})
	_, _ = r.User("U1")
	if len(refreshed) != 2 {
		t.Fatalf("fresh read after remap must not refresh")
	}
}

func TestUnmap_OtherPolicies(t *testing.T) {
	clk := newClock()
	r := New(WithClock(clk.Now))
	calls := 0
	r.OnRefresh(TypeUser, func(Entity) { calls++ })
	r.OnRefresh(TypeConversation, func(Entity) { calls++ })

	_ = r.Map(&User{ID: "B1", Name: "bot", Bot: true})
	_ = r.Map(&Conversation{ID: "D1", UserID: "U1"})
	clk.t = clk.t.Add(1000 * time.Hour)

	if _, err := r.User("B1"); err != nil {
		t.Fatalf("never-expires read: %v", err)
	}
	if _, err := r.Conversation("D1"); err != nil {
		t.Fatalf("serve-stale read: %v", err)
	}
	if calls != 0 {
		t.Fatalf("no refresh expected, got %d", calls)
	}
	if !strings.Contains(ServeStaleRefresh.String(), "refresh") {
		t.Fatalf("policy string")
	}
}

func TestSyncer_RunsPhasesInOrder(t *testing.T) {
	r := New()
	_ = r.Map(&User{ID: "OLD", Name: "gone"})
	dir := NewStaticDirectory(
		[]*User{{ID: "U1", Name: "alice", Roles: []string{"admin"}}},
		[]*Room{{ID: "C1", Name: "general", Members: []string{"U1"}}},
		[]*Conversation{{ID: "D1", UserID: "U1"}},
	)
	ready := false
	s := &Syncer{Roster: r, Directory: dir, Bot: &User{ID: "B1", Name: "bot", Bot: true}, Log: zerolog.Nop(), OnReady: func() { ready = true }}
	cmd := command.New(CommandSync, command.UserDestination{}, command.WithStrategy(NewSyncStrategy()), command.WithExpiry(0))

	var kinds []command.Kind
	for i := 0; i < 4; i++ {
		kinds = append(kinds, s.Handle(context.Background(), cmd).Kind)
	}
	want := []command.Kind{command.KindRequeue, command.KindRequeue, command.KindRequeue, command.KindOK}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds=%v", kinds)
		}
	}
	if !ready {
		t.Fatalf("OnReady not called")
	}
	if _, err := r.User("OLD"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("purge phase did not run")
	}
	if u, err := r.User("U1"); err != nil || !u.HasRole("ADMIN") {
		t.Fatalf("user not synced: %v %v", u, err)
	}
	if room, err := r.RoomByName("general"); err != nil || !room.HasMember("U1") {
		t.Fatalf("room not synced: %v %v", room, err)
	}
	if _, err := r.User("B1"); err != nil {
		t.Fatalf("bot user must survive purge: %v", err)
	}

	noStrategy := command.New(CommandSync, command.UserDestination{})
	if got := s.Handle(context.Background(), noStrategy); got.Kind != command.KindError {
		t.Fatalf("missing strategy should error, got %v", got.Kind)
	}
}

func TestRefresher_DedupesAndRemaps(t *testing.T) {
	clk := newClock()
	r := New(WithClock(clk.Now))
	dir := NewStaticDirectory([]*User{{ID: "U1", Name: "alice", TTL: time.Minute}}, nil, nil)
	var queued []*command.Command
	rf := NewRefresher(r, dir, func(c *command.Command) { queued = append(queued, c) }, zerolog.Nop())

	_ = r.Map(&User{ID: "U1", Name: "alice", TTL: time.Minute})
	clk.t = clk.t.Add(time.Hour)
	_, _ = r.User("U1")
	_, _ = r.User("U1")
	if len(queued) != 1 || queued[0].Name() != CommandUserRefresh {
		t.Fatalf("expected one queued refresh, got %d", len(queued))
	}

	dir.PutUser(&User{ID: "U1", Name: "alice2", TTL: time.Minute})
	if got := rf.Handle(context.Background(), queued[0]); got.Kind != command.KindOK {
		t.Fatalf("refresh kind=%v err=%v", got.Kind, got.Err)
	}
	if u, err := r.UserByName("alice2"); err != nil || u.ID != "U1" {
		t.Fatalf("refreshed user not mapped: %v %v", u, err)
	}

	// The in-flight marker is cleared, so a later stale read queues again.
	clk.t = clk.t.Add(time.Hour)
	_, _ = r.User("U1")
	if len(queued) != 2 {
		t.Fatalf("expected second refresh, got %d", len(queued))
	}

	missing := command.New(CommandUserRefresh, command.UserDestination{})
	missing.SetTarget("id", "NOPE", false)
	if got := rf.Handle(context.Background(), missing); got.Kind != command.KindError {
		t.Fatalf("unknown user refresh should error")
	}
}

func TestLoadDirectory(t *testing.T) {
	doc := `
users:
  - {id: U1, name: alice, roles: [admin]}
rooms:
  - {id: C1, name: general, members: [U1]}
conversations:
  - {id: D1, user_id: U1}
`
	d, err := LoadDirectory(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ctx := context.Background()
	users, _ := d.Users(ctx)
	rooms, _ := d.Rooms(ctx)
	convs, _ := d.Conversations(ctx)
	if len(users) != 1 || users[0].Roles[0] != "admin" || len(rooms) != 1 || len(convs) != 1 || convs[0].UserID != "U1" {
		t.Fatalf("decoded users=%v rooms=%v convs=%v", users, rooms, convs)
	}
	if _, err := LoadDirectory(strings.NewReader("people: []\n")); err == nil {
		t.Fatalf("unknown keys must be rejected")
	}
}
