package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/streamctl/db"
	"github.com/onnwee/streamctl/telemetry"
)

func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

type handlers struct {
	deps Deps
}

func (h *handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports ready only when the database answers a ping.
func (h *handlers) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, 2*time.Second)
	defer cancel()
	if err := h.deps.DB.PingContext(ctx); err != nil {
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, 5*time.Second)
	defer cancel()
	log := telemetry.LoggerWithCorr(ctx)

	messages, err := db.CountMessages(ctx, h.deps.DB, h.deps.Room)
	if err != nil {
		log.Error("status: count messages", "err", err)
	}
	dispatches, err := db.CountDispatches(ctx, h.deps.DB, h.deps.Room)
	if err != nil {
		log.Error("status: count dispatches", "err", err)
	}

	backlog := 0
	if h.deps.BacklogLen != nil {
		backlog = h.deps.BacklogLen()
	}

	writeJSON(w, map[string]any{
		"room":             h.deps.Room,
		"uptime_seconds":   int(time.Since(h.deps.StartedAt).Seconds()),
		"backlog_len":      backlog,
		"messages_stored":  messages,
		"dispatch_counts":  dispatches,
		"commands_defined": len(h.deps.Registry.Names()),
	})
}

// handleCommands lists the registered commands: the JSON counterpart of the
// generated help file.
func (h *handlers) handleCommands(w http.ResponseWriter, r *http.Request) {
	type cmdInfo struct {
		Name            string   `json:"name"`
		Usage           string   `json:"usage"`
		Params          []string `json:"params,omitempty"`
		Summary         string   `json:"summary,omitempty"`
		CooldownMaxUses int      `json:"cooldown_max_uses,omitempty"`
		CooldownSeconds int      `json:"cooldown_seconds,omitempty"`
	}
	out := make([]cmdInfo, 0)
	for _, c := range h.deps.Registry.Commands() {
		info := cmdInfo{
			Name:    c.Name,
			Usage:   h.deps.Prefix + c.Name,
			Params:  c.Params,
			Summary: c.Summary,
		}
		for _, p := range c.Params {
			info.Usage += " [" + p + "]"
		}
		if c.Cooldown.Enabled() {
			info.CooldownMaxUses = c.Cooldown.MaxUses
			info.CooldownSeconds = int(c.Cooldown.Window.Seconds())
		}
		out = append(out, info)
	}
	writeJSON(w, out)
}

func (h *handlers) handleRecentChat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, 5*time.Second)
	defer cancel()

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	rows, err := db.RecentMessages(ctx, h.deps.DB, h.deps.Room, limit)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("recent chat query failed", "err", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	type msg struct {
		Author   string `json:"author"`
		UID      int64  `json:"uid"`
		Message  string `json:"message"`
		PostedAt string `json:"posted_at"`
	}
	out := make([]msg, 0, len(rows))
	for _, row := range rows {
		out = append(out, msg{Author: row.Author, UID: row.AuthorUID, Message: row.Message, PostedAt: row.PostedAt})
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
