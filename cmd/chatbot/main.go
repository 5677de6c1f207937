// Command chatbot runs the conversational command engine behind an HTTP
// webhook: chat platforms post messages and events in, replies land in the
// outbox.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-chat-bot/internal/addons"
	"github.com/tbourn/go-chat-bot/internal/command"
	"github.com/tbourn/go-chat-bot/internal/config"
	"github.com/tbourn/go-chat-bot/internal/engine"
	httpapi "github.com/tbourn/go-chat-bot/internal/http"
	"github.com/tbourn/go-chat-bot/internal/http/handlers"
	"github.com/tbourn/go-chat-bot/internal/observability"
	"github.com/tbourn/go-chat-bot/internal/parser"
	"github.com/tbourn/go-chat-bot/internal/persona"
	"github.com/tbourn/go-chat-bot/internal/repo"
	"github.com/tbourn/go-chat-bot/internal/roster"
	"github.com/tbourn/go-chat-bot/internal/router"
	"github.com/tbourn/go-chat-bot/internal/services"
	"github.com/tbourn/go-chat-bot/internal/sysutil"
	"github.com/tbourn/go-chat-bot/internal/token"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

const (
	purgeCommand  = "receipt_purge"
	purgeInterval = time.Hour
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	lg := sysutil.SetupLogging(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.Engine.BotName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		log.Fatal().Err(err).Msg("chatbot exited")
	}
	log.Info().Msg("chatbot stopped")
}

func run(ctx context.Context, cfg config.Config, lg zerolog.Logger) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version, cfg.Engine.BotUserID)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			lg.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Roster: seeded from YAML, refreshed in the background.
	dir := roster.NewStaticDirectory(nil, nil, nil)
	if cfg.Engine.RosterPath != "" {
		seed, err := roster.LoadDirectoryFile(cfg.Engine.RosterPath)
		switch {
		case err == nil:
			dir = seed
		case errors.Is(err, os.ErrNotExist):
			lg.Warn().Str("file", cfg.Engine.RosterPath).Msg("roster seed missing, starting empty")
		default:
			return fmt.Errorf("roster seed: %w", err)
		}
	}
	dir.SetUserTTL(cfg.Engine.RosterUserTTL)
	ro := roster.New(roster.WithLogger(lg.With().Str("component", "roster").Logger()))
	bot := &roster.User{ID: cfg.Engine.BotUserID, Name: cfg.Engine.BotName, Bot: true}

	outbox := &services.OutboxService{DB: db, Log: lg.With().Str("component", "outbox").Logger()}
	audit := &services.AuditService{DB: db, Log: lg.With().Str("component", "audit").Logger()}
	sink := persona.NewSink(persona.New(), ro, outbox)

	r := router.New(sink,
		router.WithRoster(ro),
		router.WithBotUser(cfg.Engine.BotUserID),
		router.WithExpiry(cfg.Engine.CommandExpiry),
		router.WithLogger(lg.With().Str("component", "router").Logger()),
	)
	r.Access.Subscribe(router.RosterAccess(ro))
	r.Completed.Subscribe(audit.Record)

	syncer := &roster.Syncer{
		Roster:    ro,
		Directory: dir,
		Bot:       bot,
		Log:       lg.With().Str("component", "roster_sync").Logger(),
		OnReady:   func() { lg.Info().Int("entities", ro.Len()).Msg("roster ready") },
	}
	refresher := roster.NewRefresher(ro, dir, func(c *command.Command) { r.Queue(c, 0) }, lg.With().Str("component", "user_refresh").Logger())

	eng := engine.New(r,
		engine.WithTickInterval(cfg.Engine.TickInterval),
		engine.WithLogger(lg.With().Str("component", "engine").Logger()),
	)
	inbox := &services.InboxService{
		DB:           db,
		Engine:       eng,
		ReceiptTTL:   cfg.ReceiptTTL,
		MaxTextRunes: cfg.Engine.MaxTextRunes,
	}

	for name, h := range map[string]command.Handler{
		roster.CommandSync:        syncer.Handle,
		roster.CommandUserRefresh: refresher.Handle,
		purgeCommand:              inbox.PurgeHandler(purgeInterval),
	} {
		if err := r.RegisterHandler(name, h); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}

	schemas, err := loadSchemas(cfg.Engine.SchemaPath, lg)
	if err != nil {
		return err
	}
	builtins := addons.New(addons.Deps{Router: r, Roster: ro, Reply: sink, Log: lg.With().Str("component", "addons").Logger()})
	if err := builtins.Install(schemas); err != nil {
		return fmt.Errorf("install commands: %w", err)
	}

	r.Queue(roster.NewSyncCommand(), 0)
	r.Queue(command.New(purgeCommand, command.UserDestination{}, command.WithExpiry(0)), purgeInterval)

	h := handlers.New(inbox, outbox, audit)
	gin.SetMode(cfg.GinMode)
	g := gin.New()
	httpapi.RegisterRoutes(g, cfg, h, httpapi.ReceiptLookup(db))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           g,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return eng.Run(gctx) })
	grp.Go(func() error {
		lg.Info().Str("addr", srv.Addr).Str("base", cfg.APIBasePath).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if cfg.Engine.WatchRoster && cfg.Engine.RosterPath != "" {
		w := &engine.SeedWatcher{
			Path:      cfg.Engine.RosterPath,
			Directory: dir,
			Resync:    func() { r.Queue(roster.NewSyncCommand(), 0) },
			Log:       lg.With().Str("component", "seed_watcher").Logger(),
		}
		grp.Go(func() error { return w.Run(gctx) })
	}
	return grp.Wait()
}

// loadSchemas reads and compiles every command definition. Any invalid
// definition stops startup.
func loadSchemas(path string, lg zerolog.Logger) ([]*parser.Schema, error) {
	defs, err := parser.LoadDefinitionsFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	reg := token.DefaultRegistry()
	schemas := make([]*parser.Schema, 0, len(defs))
	for _, d := range defs {
		s, err := parser.Compile(d, reg, parser.WithLogger(lg.With().Str("command", d.Name).Logger()))
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", d.Name, err)
		}
		schemas = append(schemas, s)
	}
	lg.Info().Int("commands", len(schemas)).Str("file", path).Msg("command schemas loaded")
	return schemas, nil
}
