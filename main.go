// Command twixelwall is the main entrypoint for the chat-driven pixel wall.
// It:
//   - Loads configuration and initializes structured logging.
//   - Ensures the canvas file exists (bootstrapping a blank one if needed).
//   - Optionally connects to Postgres (pixel journal + token storage) and
//     runs idempotent migrations.
//   - Starts the Twitch chat listener, the single-threaded wall worker, and
//     the OAuth token refresher.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status,
//     /canvas, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/twixelwall/chat"
	"github.com/onnwee/twixelwall/config"
	"github.com/onnwee/twixelwall/db"
	"github.com/onnwee/twixelwall/oauth"
	"github.com/onnwee/twixelwall/server"
	"github.com/onnwee/twixelwall/telemetry"
	"github.com/onnwee/twixelwall/twitchapi"
	"github.com/onnwee/twixelwall/wall"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("twixelwall", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Optional Postgres: pixel journal + stored OAuth tokens. The bot runs
	// fine without it on an env-provided token.
	var database *sql.DB
	if cfg.DBDsn != "" {
		database, err = db.Connect(cfg.DBDsn)
		if err != nil {
			slog.Error("failed to open db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()

		// Versioned migrations first; fall back to embedded SQL for
		// deployments that predate version tracking.
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.RunMigrations(database); err != nil {
			slog.Warn("versioned migrations failed, attempting embedded SQL fallback",
				slog.Any("err", err), slog.String("component", "db_migrate"))
			if err := db.Migrate(context.Background(), database); err != nil {
				slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
				os.Exit(1)
			}
		}
	} else {
		slog.Info("DB_DSN not set; pixel journal and token storage disabled")
	}

	// Wall worker + canvas bootstrap
	bot := wall.New(cfg, database)
	if err := bot.Bootstrap(); err != nil {
		slog.Error("canvas bootstrap failed", slog.String("path", cfg.CanvasPath), slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Chat listener feeding the wall's queue
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Info("chat listener disabled", slog.Any("reason", err))
	} else {
		go chat.StartListener(ctx, database, cfg, bot.Queue())
	}
	go bot.Run(ctx)

	// Centralized OAuth token refresher (keeps the stored chat token fresh)
	if database != nil && cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		tc := &twitchapi.Client{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}
		oauth.StartRefresher(ctx, database, "twitch", 5*time.Minute, 15*time.Minute,
			func(vctx context.Context, accessToken string) (time.Duration, error) {
				v, err := tc.Validate(vctx, accessToken)
				if err != nil {
					return 0, err
				}
				return time.Duration(v.ExpiresIn) * time.Second, nil
			},
			func(rctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
				res, err := tc.Refresh(rctx, refreshToken)
				if err != nil {
					return "", "", time.Time{}, "", err
				}
				return res.AccessToken, res.RefreshToken, twitchapi.ComputeExpiry(res.ExpiresIn), strings.Join(res.Scope, " "), nil
			})
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/canvas/metrics)
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		if err := server.Start(ctx, database, cfg, bot, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
