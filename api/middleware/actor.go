package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const ctxActor contextKey = "actor"

// ActorHeader names the operator performing an admin mutation. Authentication
// happens upstream; the value is recorded on ledger rows for audit.
const ActorHeader = "X-PF-Actor"

const maxActorLength = 128

// Actor copies the operator header into the request context and log fields.
func Actor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get(ActorHeader))
			if len(actor) > maxActorLength {
				actor = actor[:maxActorLength]
			}
			if actor == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// ActorFromContext returns the operator recorded by Actor, if any.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActor).(string); ok {
		return v
	}
	return ""
}

// WithActor injects the operator identifier into the context.
func WithActor(ctx context.Context, actor string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}
