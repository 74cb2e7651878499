package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
)

// HandleStatus returns a lightweight status summary: canvas file state,
// queue depth, and which optional features are enabled.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := map[string]any{
		"channel":       h.cfg.TwitchChannel,
		"alpha_enabled": h.cfg.AllowAlpha,
		"journal":       h.db != nil,
	}

	canvasInfo := map[string]any{
		"path":   h.cfg.CanvasPath,
		"width":  h.cfg.CanvasWidth,
		"height": h.cfg.CanvasHeight,
	}
	if fi, err := os.Stat(h.cfg.CanvasPath); err == nil {
		canvasInfo["size_bytes"] = fi.Size()
		canvasInfo["modified_at"] = fi.ModTime().UTC()
	}
	resp["canvas"] = canvasInfo

	if h.bot != nil {
		resp["queue_depth"] = h.bot.QueueDepth()
		resp["queue_capacity"] = h.bot.QueueCapacity()
	}

	if h.db != nil {
		var total int
		if err := h.db.QueryRowContext(r.Context(), `SELECT COUNT(*) FROM pixel_events`).Scan(&total); err == nil {
			resp["pixels_journaled"] = total
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}
