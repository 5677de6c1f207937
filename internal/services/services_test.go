package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-bot/internal/command"
	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/engine"
	"github.com/tbourn/go-chat-bot/internal/router"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:services_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Receipt{}, &domain.Outbound{}, &domain.CommandRun{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fakeEngine struct {
	events []engine.Event
	err    error
}

func (f *fakeEngine) Submit(_ context.Context, ev engine.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func fixedNow() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func TestInbox_Accept_Validation(t *testing.T) {
	svc := &InboxService{Engine: &fakeEngine{}, MaxTextRunes: 5}
	ctx := context.Background()
	cases := []struct {
		in   Inbound
		want error
	}{
		{Inbound{Text: "hi"}, ErrUserRequired},
		{Inbound{UserID: "U1", Text: "   "}, ErrEmptyText},
		{Inbound{UserID: "U1", Text: "toolong"}, ErrTooLong},
		{Inbound{UserID: "U1", Text: "hi", Group: true}, ErrDestinationRequired},
	}
	for _, tc := range cases {
		if err := svc.Accept(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("Accept(%+v) = %v, want %v", tc.in, err, tc.want)
		}
	}
}

func TestInbox_Accept_SubmitsAndDedupes(t *testing.T) {
	db := newTestDB(t)
	eng := &fakeEngine{}
	svc := &InboxService{DB: db, Engine: eng, ReceiptTTL: time.Hour, Now: fixedNow}
	ctx := context.Background()

	in := Inbound{MessageID: "m1", UserID: "U1", DestinationID: "C1", Text: "  <@B1> help ban ", Group: true}
	if err := svc.Accept(ctx, in); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := svc.Accept(ctx, in); !errors.Is(err, ErrDuplicateMessage) {
		t.Fatalf("second Accept = %v, want ErrDuplicateMessage", err)
	}
	if len(eng.events) != 1 {
		t.Fatalf("events=%+v", eng.events)
	}
	ev := eng.events[0]
	if ev.Kind != engine.KindGroup || ev.Text != "<@B1> help ban" || ev.DestinationID != "C1" {
		t.Fatalf("event=%+v", ev)
	}

	// Without a message id nothing is deduplicated.
	direct := Inbound{UserID: "U1", DestinationID: "D1", Text: "help"}
	_ = svc.Accept(ctx, direct)
	_ = svc.Accept(ctx, direct)
	if len(eng.events) != 3 || eng.events[2].Kind != engine.KindDirect {
		t.Fatalf("events=%+v", eng.events)
	}
}

func TestInbox_Accept_StoppedEngineReleasesReceipt(t *testing.T) {
	db := newTestDB(t)
	eng := &fakeEngine{err: engine.ErrStopped}
	svc := &InboxService{DB: db, Engine: eng, ReceiptTTL: time.Hour, Now: fixedNow}
	ctx := context.Background()
	in := Inbound{MessageID: "m9", UserID: "U1", DestinationID: "D1", Text: "help"}

	if err := svc.Accept(ctx, in); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("Accept = %v, want ErrEngineUnavailable", err)
	}
	eng.err = nil
	if err := svc.Accept(ctx, in); err != nil {
		t.Fatalf("redelivery after failure should be accepted: %v", err)
	}
}

func TestInbox_Notify(t *testing.T) {
	eng := &fakeEngine{}
	svc := &InboxService{Engine: eng}
	ctx := context.Background()

	if err := svc.Notify(ctx, engine.Event{Kind: engine.KindJoin, UserID: "U1"}); !errors.Is(err, ErrDestinationRequired) {
		t.Fatalf("join without room = %v", err)
	}
	if err := svc.Notify(ctx, engine.Event{Kind: engine.KindPresence}); !errors.Is(err, ErrUserRequired) {
		t.Fatalf("presence without user = %v", err)
	}
	if err := svc.Notify(ctx, engine.Event{Kind: engine.KindDirect, UserID: "U1"}); err == nil {
		t.Fatalf("messages must go through Accept")
	}
	if err := svc.Notify(ctx, engine.Event{Kind: engine.KindLeave, UserID: "U1", DestinationID: "C1"}); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := svc.Notify(ctx, engine.Event{Kind: engine.KindClose, Code: 1000}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(eng.events) != 2 {
		t.Fatalf("events=%+v", eng.events)
	}
}

func TestInbox_PurgeHandler_Requeues(t *testing.T) {
	db := newTestDB(t)
	svc := &InboxService{DB: db, Engine: &fakeEngine{}, ReceiptTTL: time.Minute, Now: fixedNow}
	ctx := context.Background()
	if err := svc.Accept(ctx, Inbound{MessageID: "m1", UserID: "U1", DestinationID: "D1", Text: "x"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc.Now = func() time.Time { return fixedNow().Add(time.Hour) }

	resp := svc.PurgeHandler(30*time.Minute)(ctx, command.New("receipt_purge", command.UserDestination{}))
	if resp.Kind != command.KindRequeue || resp.Delay != 30*time.Minute {
		t.Fatalf("resp=%+v", resp)
	}
	var n int64
	db.Model(&domain.Receipt{}).Count(&n)
	if n != 0 {
		t.Fatalf("expired receipt not purged: %d", n)
	}
}

func TestOutbox_SendAndList(t *testing.T) {
	db := newTestDB(t)
	svc := &OutboxService{DB: db, Now: fixedNow}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := svc.SendChat(ctx, "D1", fmt.Sprintf("reply %d", i)); err != nil {
			t.Fatalf("SendChat: %v", err)
		}
	}
	if err := svc.SendChat(ctx, "D2", "elsewhere"); err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	items, total, err := svc.ListPage(ctx, "D1", 2, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 3 || len(items) != 1 || !strings.HasPrefix(items[0].Text, "reply") {
		t.Fatalf("total=%d items=%+v", total, items)
	}
}

func TestAudit_RecordListStats(t *testing.T) {
	db := newTestDB(t)
	svc := &AuditService{DB: db, Now: fixedNow}
	ctx := context.Background()
	ud := command.UserDestination{UserID: "U1", DestinationID: "D1"}

	ban := command.New("ban", ud)
	svc.Record(router.RunEvent{Command: ban, Response: command.OK(), Duration: 3 * time.Millisecond})
	svc.Record(router.RunEvent{Command: ban, Response: command.Error(errors.New("boom"))})
	svc.Record(router.RunEvent{Command: command.New("remind", ud), Response: command.Requeue(time.Hour)})

	runs, total, err := svc.ListPage(ctx, "ban", 1, 10)
	if err != nil || total != 2 || len(runs) != 2 {
		t.Fatalf("ListPage runs=%+v total=%d err=%v", runs, total, err)
	}
	var sawErr bool
	for _, r := range runs {
		if r.CommandID != ban.ID() || r.UserID != "U1" || r.DestinationID != "D1" {
			t.Fatalf("run=%+v", r)
		}
		if r.Response == "error" && r.Error == "boom" {
			sawErr = true
		}
	}
	if !sawErr {
		t.Fatalf("error run not recorded: %+v", runs)
	}

	stats, err := svc.Stats(ctx)
	if err != nil || len(stats) != 3 {
		t.Fatalf("stats=%+v err=%v", stats, err)
	}
	if stats[2].Name != "remind" || stats[2].Response != "requeue" || stats[2].Count != 1 {
		t.Fatalf("stats=%+v", stats)
	}
}
