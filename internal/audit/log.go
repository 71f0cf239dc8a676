package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"thittam.org/internal/auth"
	"thittam.org/internal/obs"
)

// Audit event names.
const (
	SessionStart      = "session.start"
	SessionEnd        = "session.end"
	ProfileSave       = "profile.save"
	ApplicationCreate = "application.create"
	ReminderSave      = "reminder.save"
	ReminderDelete    = "reminder.delete"
	GrievanceSubmit   = "grievance.submit"
	PortalOpen        = "portal.open"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with request and session context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	attrs := []slog.Attr{
		slog.String("type", "audit"),
		slog.String("event", event),
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, slog.String("request_id", rid))
	}
	if sid, ok := auth.SessionFromContext(ctx); ok {
		attrs = append(attrs, slog.String("session_id", sid))
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	attrs = append(attrs, slog.Any("fields", copyFields))

	if ctx == nil {
		ctx = context.Background()
	}
	obs.Logger().LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	return nil
}
