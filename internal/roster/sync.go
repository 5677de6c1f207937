package roster

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-bot/internal/command"
)

// Command names handled by this package.
const (
	CommandSync        = "roster_sync"
	CommandUserRefresh = "user_refresh"
)

// Sync phases, in order.
const (
	PhasePurge command.Phase = "purge"
	PhaseRooms command.Phase = "rooms"
	PhaseUsers command.Phase = "users"
	PhaseReady command.Phase = "ready"
)

// NewSyncStrategy returns the startup sync workflow.
func NewSyncStrategy() *command.Strategy {
	return command.NewStrategy(CommandSync, PhasePurge, PhaseRooms, PhaseUsers, PhaseReady)
}

// NewSyncCommand returns a roster_sync command ready to queue. It never
// expires, since it runs across several ticks without user input.
func NewSyncCommand() *command.Command {
	return command.New(CommandSync, command.UserDestination{}, command.WithStrategy(NewSyncStrategy()), command.WithExpiry(0))
}

// Syncer fills the roster from a Directory, one phase per run.
type Syncer struct {
	Roster    *Roster
	Directory Directory
	// Bot is re-mapped after every purge so the bot can always find itself.
	Bot *User
	Log zerolog.Logger
	// OnReady is called once the last phase completes.
	OnReady func()
}

// Handle is a command.Handler for CommandSync. Each call runs the next
// phase and requeues until the workflow is done.
func (s *Syncer) Handle(ctx context.Context, cmd *command.Command) *command.Response {
	st := cmd.Strategy()
	if st == nil {
		return command.Error(errors.New("roster sync requires a strategy"))
	}
	phase, ok := st.Next()
	if !ok {
		return command.OK()
	}
	lg := s.Log.With().Str("phase", string(phase)).Logger()

	switch phase {
	case PhasePurge:
		s.Roster.Purge()
		if s.Bot != nil {
			if err := s.Roster.Map(s.Bot); err != nil {
				return command.Error(err)
			}
		}
	case PhaseRooms:
		rooms, err := s.Directory.Rooms(ctx)
		if err != nil {
			return command.Error(fmt.Errorf("sync rooms: %w", err))
		}
		for _, r := range rooms {
			if err := s.Roster.Map(r); err != nil {
				lg.Warn().Err(err).Msg("skipping room")
			}
		}
		lg.Info().Int("rooms", len(rooms)).Msg("rooms synced")
	case PhaseUsers:
		users, err := s.Directory.Users(ctx)
		if err != nil {
			return command.Error(fmt.Errorf("sync users: %w", err))
		}
		for _, u := range users {
			if err := s.Roster.Map(u); err != nil {
				lg.Warn().Err(err).Msg("skipping user")
			}
		}
		convs, err := s.Directory.Conversations(ctx)
		if err != nil {
			return command.Error(fmt.Errorf("sync conversations: %w", err))
		}
		for _, c := range convs {
			if err := s.Roster.Map(c); err != nil {
				lg.Warn().Err(err).Msg("skipping conversation")
			}
		}
		lg.Info().Int("users", len(users)).Int("conversations", len(convs)).Msg("users synced")
	case PhaseReady:
		lg.Info().Int("entities", s.Roster.Len()).Msg("roster ready")
		if s.OnReady != nil {
			s.OnReady()
		}
		return command.OK()
	}
	return command.Requeue(0)
}

// Refresher turns stale user reads into background refresh commands and
// runs them. Only one refresh per user is in flight at a time.
type Refresher struct {
	roster    *Roster
	directory Directory
	enqueue   func(*command.Command)
	log       zerolog.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// NewRefresher wires a refresher and registers it for stale User reads.
// enqueue schedules a command for the next tick.
func NewRefresher(r *Roster, dir Directory, enqueue func(*command.Command), log zerolog.Logger) *Refresher {
	rf := &Refresher{
		roster:    r,
		directory: dir,
		enqueue:   enqueue,
		log:       log,
		inflight:  make(map[string]bool),
	}
	r.OnRefresh(TypeUser, rf.Stale)
	return rf
}

// Stale is the RefreshFunc registered for users.
func (rf *Refresher) Stale(e Entity) {
	id := e.MapValue(e.MapKey())
	rf.mu.Lock()
	if rf.inflight[id] {
		rf.mu.Unlock()
		return
	}
	rf.inflight[id] = true
	rf.mu.Unlock()

	cmd := command.New(CommandUserRefresh, command.UserDestination{UserID: id}, command.WithExpiry(0))
	cmd.SetTarget("id", id, false)
	rf.enqueue(cmd)
}

// Handle is a command.Handler for CommandUserRefresh.
func (rf *Refresher) Handle(ctx context.Context, cmd *command.Command) *command.Response {
	id, err := cmd.Target("id")
	if err != nil {
		return command.Error(err)
	}
	defer func() {
		rf.mu.Lock()
		delete(rf.inflight, id)
		rf.mu.Unlock()
	}()

	u, err := rf.directory.User(ctx, id)
	if err != nil {
		rf.log.Warn().Err(err).Str("user_id", id).Msg("user refresh failed")
		return command.Error(err)
	}
	if err := rf.roster.Map(u); err != nil {
		return command.Error(err)
	}
	rf.log.Debug().Str("user_id", id).Msg("user refreshed")
	return command.OK()
}
