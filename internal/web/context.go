package web

import (
	"context"
	"net/http"

	"github.com/stagepipe/omcbridge/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already processed by TrustedRealIP middleware
	ua := r.Header.Get("User-Agent")
	ctx = core.ContextWithClientIP(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, ua)
	return ctx
}
