package server

import (
	"net/http"
	"os"
)

// HandleCanvas serves the current canvas file as-is. The atomic publish
// rename guarantees a reader always gets a complete image: an open file
// handle keeps the pre-rename inode, a fresh open gets the post-rename one,
// never a torn mix.
func (h *Handlers) HandleCanvas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := os.Stat(h.cfg.CanvasPath); err != nil {
		http.Error(w, "canvas not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, h.cfg.CanvasPath)
}
