package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/todosync/schema"
)

type contextKey int

const (
	userKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithUser annotates the logger with the identity if present.
func WithUser(ctx context.Context, identity schema.Identity) pslog.Logger {
	log := pslog.Ctx(ctx)
	if identity != "" {
		if current, ok := ctx.Value(userKey).(schema.Identity); ok && current == identity {
			return log
		}
		log = log.With("user", identity)
	}
	return log
}

// WithPage annotates the logger with a OneNote page id when available.
func WithPage(log pslog.Logger, page schema.Page) pslog.Logger {
	if page.ID != "" {
		log = log.With("page", page.ID)
	}
	return log
}

// ContextWithUser stores the user marker on the context for log de-duplication.
func ContextWithUser(ctx context.Context, identity schema.Identity) context.Context {
	if ctx == nil || identity == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey, identity)
}

// ContextWithUserLogger attaches the logger and user marker to the context.
func ContextWithUserLogger(ctx context.Context, log pslog.Logger, identity schema.Identity) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithUser(ctx, identity)
}
