package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/NoobAuthor/gamemaster/internal/api"
	"github.com/NoobAuthor/gamemaster/internal/config"
	"github.com/NoobAuthor/gamemaster/internal/presence"
	"github.com/NoobAuthor/gamemaster/internal/session"
	"github.com/NoobAuthor/gamemaster/internal/store"
	"github.com/NoobAuthor/gamemaster/internal/ws"
	staticserver "github.com/NoobAuthor/gamemaster/static"
)

const version = "v1.0.0"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Gamemaster - Escape room game master server

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 3001 or PORT env var)

Environment Variables:
  PORT                  Port to listen on (default: 3001)
  ROOM_COUNT            Number of rooms to seed (default: 5)
  DEFAULT_DURATION      Countdown seconds per session (default: 3600)
  DEFAULT_FREE_HINTS    Free hints per session (default: 3)
  HINT_PENALTY_SECONDS  Time penalty once free hints run out (default: 120)
  DB_HOST               Postgres host; unset runs the in-memory store
  DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE
`, os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Gamemaster %s\n", version)
		return
	}

	_ = godotenv.Load()
	cfg := config.FromEnv()
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(cw)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if cfg.DBHost != "" {
		pg, err := store.NewPostgres(ctx, cfg.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pg.Close()
		st = pg
		log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("using postgres store")
	} else {
		st = store.NewMemory()
		log.Warn().Msg("DB_HOST not set, using in-memory store (state lost on restart)")
	}

	coord := session.NewCoordinator(st, session.Defaults{
		Duration:       cfg.DefaultDuration,
		FreeHints:      cfg.DefaultFreeHints,
		PenaltySeconds: cfg.HintPenaltySeconds,
	})
	if err := coord.Load(ctx, cfg.RoomCount); err != nil {
		log.Fatal().Err(err).Msg("failed to load rooms")
	}
	tracker := presence.NewTracker()

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	})

	sock := ws.New(coord, tracker)
	io := sock.Mount(r)
	defer io.Close()

	api.New(cfg, st, coord, tracker).Register(r)

	// Serve the console/display frontend for all other routes
	r.NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	ticker := session.NewTicker(coord, clockwork.NewRealClock())
	go ticker.Run(ctx)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
