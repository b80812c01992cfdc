package audit

import (
	"context"
	"strings"
	"time"

	"aquawatch.org/internal/auth"
	"aquawatch.org/internal/ids"
	"aquawatch.org/internal/obs"
)

type ctxKey string

const requestMetaKey ctxKey = "audit_request_meta"

// RequestMeta carries the request context used only for audit
// enrichment: caller address and user agent.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta attaches request metadata to the context.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	if meta.IPAddress == "" && meta.UserAgent == "" {
		return ctx
	}
	return context.WithValue(ctx, requestMetaKey, meta)
}

func requestMetaFromContext(ctx context.Context) RequestMeta {
	if ctx == nil {
		return RequestMeta{}
	}
	if v, ok := ctx.Value(requestMetaKey).(RequestMeta); ok {
		return v
	}
	return RequestMeta{}
}

// Recorder persists security events through the audit store. Writes are
// strictly best-effort: a failure is logged and discarded, never
// surfaced to the operation that triggered the event. The primary state
// change has its own transaction and has already committed.
type Recorder struct {
	store auth.AuditStore
	now   func() time.Time
}

var _ auth.Recorder = (*Recorder)(nil)

// NewRecorder builds a Recorder over the given store. A nil store
// disables persistence; events still reach the structured log.
func NewRecorder(store auth.AuditStore) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record appends the event. Never returns an error and never panics
// past this boundary.
func (r *Recorder) Record(ctx context.Context, rec auth.AuditRecord) {
	if r == nil || strings.TrimSpace(rec.Action) == "" {
		return
	}
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = r.now().UTC()
	}
	meta := requestMetaFromContext(ctx)
	if rec.IPAddress == "" {
		rec.IPAddress = meta.IPAddress
	}
	if rec.UserAgent == "" {
		rec.UserAgent = meta.UserAgent
	}

	entry := map[string]any{
		"ts":      rec.OccurredAt.Format(time.RFC3339Nano),
		"type":    "audit",
		"action":  rec.Action,
		"outcome": rec.Outcome,
	}
	if rec.ActorName != "" {
		entry["actor"] = rec.ActorName
	}
	if rec.ResourceType != "" {
		entry["resource_type"] = rec.ResourceType
	}
	if rec.ResourceID != "" {
		entry["resource_id"] = rec.ResourceID
	}
	obs.LogRequest(entry)

	if r.store == nil {
		return
	}
	if err := r.store.Append(ctx, &rec); err != nil {
		obs.LogRequest(map[string]any{
			"ts":    r.now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "audit append failed",
			"error": err.Error(),
		})
	}
}
