package www

import (
	"context"
	"net/http"
	"time"

	"github.com/antomihe/SustainableCity/store"
)

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbOK := h.engine.DB().PingContext(ctx) == nil
	redis := "disabled"
	if h.engine.LiveState().RedisEnabled() {
		redis = "connected"
		if err := h.engine.LiveState().Ping(ctx); err != nil {
			redis = "unreachable"
		}
	}
	messaging := "disabled"
	if h.engine.MsgClient().Enabled() {
		messaging = "disconnected"
		if h.engine.MessagingConnected() {
			messaging = "connected"
		}
	}

	status, code := "ok", http.StatusOK
	if !dbOK {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	h.jsonStatus(w, code, map[string]any{
		"status":    status,
		"database":  dbOK,
		"redis":     redis,
		"messaging": messaging,
		"mode":      h.engine.AppConfig().App.Mode,
	})
}

func (h *Handlers) apiAuditLog(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	var entries []*store.AuditEntry
	entityType, entityID := r.URL.Query().Get("entity_type"), r.URL.Query().Get("entity_id")
	if entityType != "" && entityID != "" {
		entries, err = h.engine.DB().ListEntityAudit(entityType, entityID)
	} else {
		entries, err = h.engine.DB().ListAuditLog(limit)
	}
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, nonNil(entries))
}
