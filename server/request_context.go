package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestMeta carries the per-request metadata handlers read from context.
type RequestMeta struct {
	RequestID      string
	IdempotencyKey string
	ForwardedProto string
}

type metaContextKey struct{}

// withRequestMeta extracts the request metadata headers and stores them in
// the request context. A missing request id is filled in so every log line
// is correlatable.
func withRequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := &RequestMeta{
			RequestID:      strings.TrimSpace(r.Header.Get("Request-Id")),
			IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		}
		if meta.RequestID == "" {
			meta.RequestID = uuid.NewString()
		}
		if proto, _, ok := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ","); ok || proto != "" {
			meta.ForwardedProto = strings.TrimSpace(proto)
		}
		w.Header().Set("Request-Id", meta.RequestID)
		ctx := context.WithValue(r.Context(), metaContextKey{}, meta)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// metaFromContext returns the request metadata, or an empty value when the
// middleware did not run.
func metaFromContext(ctx context.Context) *RequestMeta {
	if meta, ok := ctx.Value(metaContextKey{}).(*RequestMeta); ok {
		return meta
	}
	return &RequestMeta{}
}

func requestIDField(ctx context.Context) zap.Field {
	return zap.String("request_id", metaFromContext(ctx).RequestID)
}
