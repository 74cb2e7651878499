// Package server exposes the HTTP surface: health, status, metrics, the raw
// canvas file, and the Twitch OAuth flow. It injects correlation IDs into
// request contexts for consistent logging and includes permissive CORS for
// development.
package server

import (
	"database/sql"
	"sync"
	"time"

	"github.com/onnwee/twixelwall/config"
	"github.com/onnwee/twixelwall/wall"
)

const (
	// Maximum number of in-flight OAuth states to keep in memory.
	maxOAuthStates = 10000
)

// Handlers holds dependencies for all HTTP handlers. db and bot may be nil
// in reduced deployments (no Postgres, status-only probes).
type Handlers struct {
	db         *sql.DB
	cfg        *config.Config
	bot        *wall.Bot
	stateStore map[string]time.Time
	stateMu    sync.RWMutex
}

// NewHandlers creates a Handlers instance with the given dependencies.
func NewHandlers(db *sql.DB, cfg *config.Config, bot *wall.Bot) *Handlers {
	return &Handlers{
		db:         db,
		cfg:        cfg,
		bot:        bot,
		stateStore: make(map[string]time.Time),
	}
}

// cleanExpiredStates removes expired OAuth states. Call with stateMu held.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, expiry := range h.stateStore {
		if now.After(expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState records a new OAuth state, cleaning up periodically so the
// store can't grow without bound.
func (h *Handlers) addOAuthState(state string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}
	if len(h.stateStore) >= maxOAuthStates {
		// refusing the state fails the flow, which beats memory exhaustion
		return
	}
	h.stateStore[state] = expiry
}

// takeOAuthState consumes a state, reporting whether it was valid.
func (h *Handlers) takeOAuthState(state string) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	expiry, ok := h.stateStore[state]
	if !ok {
		return false
	}
	delete(h.stateStore, state)
	return time.Now().Before(expiry)
}
