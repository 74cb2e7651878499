package chat

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/twixelwall/config"
	dbpkg "github.com/onnwee/twixelwall/db"
	"github.com/onnwee/twixelwall/telemetry"
)

// Message is one chat line as delivered by the transport. The text is free
// form; only whitespace-delimited tokens matter downstream.
type Message struct {
	Login string
	Text  string
	At    time.Time
}

const maxBackoff = 2 * time.Minute

// StartListener connects to Twitch IRC for the configured channel and
// forwards every PRIVMSG into out. It reconnects with exponential backoff
// until ctx is cancelled. database may be nil when no token storage is
// configured.
func StartListener(ctx context.Context, database *sql.DB, cfg *config.Config, out chan<- Message) {
	if cfg.TwitchChannel == "" || cfg.TwitchBotUsername == "" {
		slog.Info("twitch creds not set; skipping chat listener")
		return
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		token, err := resolveToken(ctx, database, cfg)
		if err != nil {
			slog.Warn("no usable twitch oauth token", slog.Any("err", err))
		} else {
			started := time.Now()
			if err := runSession(ctx, cfg, token, out); err != nil {
				slog.Error("twitch chat session ended", slog.Any("err", err))
			}
			if time.Since(started) > time.Minute {
				backoff = time.Second
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// resolveToken prefers the env token and falls back to the stored one.
// gempir's client wants the "oauth:" prefix.
func resolveToken(ctx context.Context, database *sql.DB, cfg *config.Config) (string, error) {
	token := cfg.TwitchOAuthToken
	if token == "" {
		if database == nil {
			return "", errors.New("TWITCH_OAUTH_TOKEN unset and no database for stored tokens")
		}
		access, _, _, _, err := dbpkg.GetOAuthToken(ctx, database, "twitch")
		if err != nil {
			return "", err
		}
		if access == "" {
			return "", errors.New("no stored twitch token; run the /auth/twitch/start flow")
		}
		token = access
	}
	if !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	return token, nil
}

// runSession joins the channel and blocks until the connection drops or ctx
// is cancelled. Messages that don't fit in the queue are dropped rather than
// blocking the IRC read loop.
func runSession(ctx context.Context, cfg *config.Config, token string, out chan<- Message) error {
	client := twitch.NewClient(cfg.TwitchBotUsername, token)

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		telemetry.MessagesSeen.Inc()
		m := Message{Login: msg.User.Name, Text: msg.Message, At: time.Now().UTC()}
		select {
		case out <- m:
		default:
			telemetry.QueueDropped.Inc()
			slog.Debug("inbound queue full; dropping message", slog.String("login", m.Login))
		}
	})

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessionCtx.Done()
		client.Disconnect()
	}()

	client.Join(cfg.TwitchChannel)
	slog.Info("joining twitch chat", slog.String("channel", cfg.TwitchChannel), slog.String("bot", cfg.TwitchBotUsername))
	return client.Connect()
}
