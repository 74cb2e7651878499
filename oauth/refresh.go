// Package oauth keeps the stored Twitch chat token fresh. A background
// goroutine wakes on a jittered interval, probes the stored access token
// against the provider's validate endpoint, and refreshes the oauth_tokens
// row when the token is invalid or its remaining lifetime falls inside the
// configured window, so the chat listener always finds a usable token when
// it (re)connects.
package oauth

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"time"

	dbpkg "github.com/onnwee/twixelwall/db"
)

// RefreshFunc performs the provider-specific refresh and returns
// (access, refresh, expiry, scope).
type RefreshFunc func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error)

// ValidateFunc probes a stored access token and returns its remaining
// lifetime as reported by the provider. An error means the token is no
// longer usable.
type ValidateFunc func(ctx context.Context, accessToken string) (time.Duration, error)

// StartRefresher launches a goroutine that periodically checks the token row
// for provider, probes it via validate, and refreshes it via fn.
// interval: how often to wake up and check.
// window: refresh when remaining lifetime <= window.
// validate may be nil; the stored expiry is then the only signal.
func StartRefresher(ctx context.Context, db *sql.DB, provider string, interval, window time.Duration, validate ValidateFunc, fn RefreshFunc) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	// Randomize initial delay to spread load across instances.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval / 2)))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(jittered(interval)):
			}
			refreshOnce(ctx, db, provider, window, validate, fn)
		}
	}()
}

// jittered returns interval ±20% for scheduling diversity, floored at half
// the interval.
func jittered(interval time.Duration) time.Duration {
	jitterRange := int64(interval / 5)
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
	next := interval + jitter
	if next < interval/2 {
		next = interval / 2
	}
	return next
}

func refreshOnce(ctx context.Context, db *sql.DB, provider string, window time.Duration, validate ValidateFunc, fn RefreshFunc) {
	access, refresh, expiry, _, err := dbpkg.GetOAuthToken(ctx, db, provider)
	if err != nil {
		slog.Debug("token refresher: read stored token", slog.String("provider", provider), slog.Any("err", err))
		return
	}
	if refresh == "" {
		// nothing stored yet; the OAuth callback will populate the row
		return
	}
	if validate != nil && access != "" {
		// the provider's answer supersedes the stored expiry: Twitch asks
		// bots to validate their token at least hourly
		remaining, verr := validate(ctx, access)
		if verr != nil {
			slog.Warn("stored token failed validation, refreshing",
				slog.String("provider", provider), slog.Any("err", verr))
		}
		expiry = probedExpiry(remaining, verr, time.Now())
	}
	if !needsRefresh(expiry, window, time.Now()) {
		return
	}
	access, newRefresh, newExpiry, scope, err := fn(ctx, refresh)
	if err != nil {
		slog.Warn("token refresh failed", slog.String("provider", provider), slog.Any("err", err))
		return
	}
	if newRefresh == "" {
		newRefresh = refresh
	}
	if err := dbpkg.UpsertOAuthToken(ctx, db, provider, access, newRefresh, newExpiry, scope); err != nil {
		slog.Error("token refresh: store failed", slog.String("provider", provider), slog.Any("err", err))
		return
	}
	slog.Info("oauth token refreshed", slog.String("provider", provider), slog.Time("expires_at", newExpiry))
}

// probedExpiry converts a validation probe result into an effective expiry:
// a failed probe yields the zero time so needsRefresh triggers eagerly, a
// successful one anchors the provider-reported remaining lifetime at now.
func probedExpiry(remaining time.Duration, probeErr error, now time.Time) time.Time {
	if probeErr != nil {
		return time.Time{}
	}
	return now.Add(remaining)
}

// needsRefresh reports whether a token expiring at expiry should be
// refreshed now given the window. A zero expiry is treated as unknown and
// refreshed eagerly.
func needsRefresh(expiry time.Time, window time.Duration, now time.Time) bool {
	if expiry.IsZero() {
		return true
	}
	return expiry.Sub(now) <= window
}
