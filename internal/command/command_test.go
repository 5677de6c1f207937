package command

import (
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-chat-bot/internal/text"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestCommand_SlidingExpiry(t *testing.T) {
	clk := newClock()
	ud := UserDestination{UserID: "U1", DestinationID: "D1"}
	c := New("remind", ud, WithClock(clk.Now), WithExpiry(10*time.Second))

	if c.IsExpired() {
		t.Fatalf("fresh command must not be expired")
	}
	if c.ID() == "" || c.Name() != "remind" || c.UserDestination() != ud {
		t.Fatalf("identity not set: %q %q %v", c.ID(), c.Name(), c.UserDestination())
	}

	clk.Advance(10 * time.Second)
	if c.IsExpired() {
		t.Fatalf("exactly at expiry should not be expired yet")
	}
	clk.Advance(time.Second)
	if !c.IsExpired() {
		t.Fatalf("expected expired after 11s idle")
	}

	c.Touch()
	if c.IsExpired() {
		t.Fatalf("touch must reset the idle clock")
	}
	clk.Advance(9 * time.Second)
	c.Touch()
	clk.Advance(9 * time.Second)
	if c.IsExpired() {
		t.Fatalf("window must slide with each touch")
	}
}

func TestCommand_ZeroExpiryNeverExpires(t *testing.T) {
	clk := newClock()
	c := New("sync", UserDestination{}, WithClock(clk.Now), WithExpiry(0))
	clk.Advance(1000 * time.Hour)
	if c.IsExpired() {
		t.Fatalf("expiry 0 must never expire")
	}
}

func TestCommand_DefaultsAndUniqueIDs(t *testing.T) {
	a := New("x", UserDestination{})
	b := New("x", UserDestination{})
	if a.ID() == b.ID() {
		t.Fatalf("ids must be unique")
	}
	if a.Expiry() != DefaultExpiry {
		t.Fatalf("default expiry=%v", a.Expiry())
	}
}

func TestCommand_TargetsRepeatableAndNotFound(t *testing.T) {
	c := New("ban", UserDestination{})
	c.SetTarget("user", "alice", true)
	c.SetTarget("user", "bob", true)
	c.SetTarget("user", "carol", true)
	l, err := c.Targets().List("user")
	if err != nil || len(l) != 3 || l[0] != "alice" || l[2] != "carol" {
		t.Fatalf("repeatable list=%v err=%v", l, err)
	}
	if s, _ := c.Target("user"); s != "alice, bob, carol" {
		t.Fatalf("rendered=%q", s)
	}

	c.SetTarget("span", "3 days", false)
	c.SetTarget("span", "4 days", false)
	if s, _ := c.Target("span"); s != "4 days" {
		t.Fatalf("scalar overwrite=%q", s)
	}

	if _, err := c.Target("missing"); !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("want ErrTargetNotFound, got %v", err)
	}

	c.SetTarget("force", true, false)
	if !c.Targets().Bool("force") || c.Targets().Bool("span") {
		t.Fatalf("Bool mismatch")
	}

	c.Targets().Delete("span")
	if c.Targets().Has("span") {
		t.Fatalf("Delete failed")
	}
	keys := c.Targets().Keys()
	if len(keys) != 2 || keys[0] != "user" || keys[1] != "force" {
		t.Fatalf("keys=%v", keys)
	}
}

func TestCommand_IngestWithoutParser(t *testing.T) {
	clk := newClock()
	c := New("ping", UserDestination{}, WithClock(clk.Now))
	clk.Advance(time.Minute)
	out := c.Ingest(text.NewLine("ping"))
	if out.Status != StatusOK {
		t.Fatalf("status=%v", out.Status)
	}
	if !c.Touched().Equal(clk.Now()) {
		t.Fatalf("Ingest must touch")
	}
	if c.Final() != "ping" {
		t.Fatalf("Final=%q", c.Final())
	}
}

func TestStrategy_Phases(t *testing.T) {
	s := NewStrategy("roster_sync", "purge", "rooms", "users", "ready")
	if _, ok := s.Current(); ok {
		t.Fatalf("fresh strategy has no current phase")
	}
	var seen []Phase
	for p, ok := s.Next(); ok; p, ok = s.Next() {
		seen = append(seen, p)
	}
	if len(seen) != 4 || seen[0] != "purge" || seen[3] != "ready" || !s.Done() {
		t.Fatalf("seen=%v done=%v", seen, s.Done())
	}
	if err := s.Set("users"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if p, _ := s.Current(); p != "users" {
		t.Fatalf("current=%v", p)
	}
	if err := s.Set("bogus"); !errors.Is(err, ErrUnknownPhase) {
		t.Fatalf("want ErrUnknownPhase, got %v", err)
	}
	s.Reset()
	if p, _ := s.Next(); p != "purge" {
		t.Fatalf("after reset next=%v", p)
	}
}

func TestOutcome_Render(t *testing.T) {
	var o Outcome
	o.AddError("Working on that %s for you.", "ban")
	o.AddError("I expected something like: %s", "ban {user:anything}")
	o.AddError("plain")
	got := o.Text(func(s string) string { return "*" + s + "*" })
	want := "Working on that *ban* for you.\nI expected something like: *ban {user:anything}*\nplain"
	if got != want {
		t.Fatalf("got %q", got)
	}
	if StatusNeedsConfirmation.String() != "ok_needs_confirmation" || KindRequeue.String() != "requeue" {
		t.Fatalf("string forms changed")
	}
}

func TestResponse_Requeue(t *testing.T) {
	r := Requeue(5 * time.Second)
	if r.Kind != KindRequeue || !r.IsDelta() || r.Delay != 5*time.Second {
		t.Fatalf("relative requeue: %+v", r)
	}
	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	r = RequeueAt(at)
	if r.IsDelta() || !r.At.Equal(at) {
		t.Fatalf("absolute requeue: %+v", r)
	}
}
