package httpd

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/courseportal/portal/internal/notify"
)

const keepAliveInterval = 25 * time.Second

// Tables whose rows belong to one student. Students only see their own rows.
var studentScopedTables = map[string]bool{
	"tickets":              true,
	"late_day_claims":      true,
	"late_day_adjustments": true,
}

// Changes streams change events as server-sent events. Query parameters
// table, event and filter (column=eq.value) select what is delivered.
func (h *Handler) Changes(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "live updates are disabled")
		return
	}

	q := r.URL.Query()
	filter, err := notify.ParseFilter(q.Get("table"), q.Get("event"), q.Get("filter"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if id := identity(r); !id.IsTA() {
		if filter.Table == "" {
			writeError(w, http.StatusBadRequest, "table is required")
			return
		}
		if studentScopedTables[filter.Table] {
			if filter.Column != "" && (filter.Column != "student_erp" || filter.Value != id.ERP) {
				writeError(w, http.StatusForbidden, "you can only follow your own records")
				return
			}
			filter.Column = "student_erp"
			filter.Value = id.ERP
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := h.hub.Subscribe(r.Context(), filter)

	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				h.logger.Warn().Err(err).Str("table", evt.Table).Msg("Failed to encode change event")
				continue
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		}
	}
}
