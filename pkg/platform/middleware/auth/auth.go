package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "prereg/pkg/domain"
	request "prereg/pkg/platform/middleware/request"
	"prereg/pkg/requestcontext"
)

// CallerResolver turns a bearer credential into the caller's identity.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, token string) (*CallerClaims, error)
}

// CallerClaims is what the identity subsystem vouches for.
type CallerClaims struct {
	UserID string
	Roles  []string
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireCaller resolves the caller once per request and stores it in the
// context. Requests without a resolvable caller never reach a handler.
func RequireCaller(resolver CallerResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := resolver.ResolveCaller(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid subject",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid token subject")
				return
			}

			ctx = requestcontext.WithCaller(ctx, userID, claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
