package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/pkg/auth"
	"github.com/repoqa/repoqa-backend/internal/pkg/logger"
	"github.com/repoqa/repoqa-backend/internal/pkg/response"
	"go.uber.org/zap"
)

// RequireAction rejects requests whose bearer token may not perform action
// with 401 (no valid token) or 403 (valid token, insufficient role).
func RequireAction(gate *auth.Gate, action auth.Action) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			principal, err := gate.Authorize(ctx, bearerToken(r), action)
			if err != nil {
				ctxzap.Warn(ctx, "request not authorized",
					zap.String("action", action.String()),
					zap.Error(err),
				)

				if errors.Is(err, entity.ErrForbidden) {
					response.Error(w, http.StatusForbidden, "insufficient role")
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="repoqa"`)
				response.Error(w, http.StatusUnauthorized, "invalid or missing token")
				return
			}

			ctx = logger.AddFields(ctx,
				zap.String("subject_id", principal.SubjectID),
				zap.String("role", string(principal.Role)),
			)
			ctx = auth.WithPrincipal(ctx, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
