package gateway

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// handleStream is GET /mcp: an SSE session. The gateway announces the
// message endpoint first, then emits keep-alive comments until the client
// disconnects. All envelope traffic flows over POST /mcp.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sessionID := uuid.NewString()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Mcp-Session-Id", sessionID)

	fmt.Fprintf(w, "event: endpoint\ndata: /mcp?session_id=%s\n\n", sessionID)
	flusher.Flush()

	s.log.InfoContext(r.Context(), "sse session opened",
		"session_id", sessionID,
		"remote", r.RemoteAddr,
	)

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.log.InfoContext(r.Context(), "sse session closed", "session_id", sessionID)
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}
