package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/alone-wolf/rutify/internal/domain"
	"github.com/alone-wolf/rutify/internal/service"
	"github.com/alone-wolf/rutify/internal/tokencodec"

	"github.com/google/uuid"
)

type claimsKey struct{}

const touchTimeout = 5 * time.Second

// requireBearer admits requests whose Authorization bearer authorizes as kind.
// For user sessions the subject must also be a user id.
func requireBearer(auth service.Authorizer, kind domain.TokenKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer, ok := bearerFrom(r)
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			claims, err := auth.Authorize(r.Context(), bearer, kind)
			if err != nil {
				writeError(w, r, err, "")
				return
			}
			if kind == domain.TokenKindUserSession {
				if _, err := uuid.Parse(claims.Subject); err != nil {
					writeMessage(w, http.StatusUnauthorized, "unauthorized")
					return
				}
			}

			go func(ctx context.Context) {
				ctx, cancel := context.WithTimeout(ctx, touchTimeout)
				defer cancel()
				auth.TouchLastUsed(ctx, bearer)
			}(context.WithoutCancel(r.Context()))

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

func bearerFrom(r *http.Request) (string, bool) {
	raw := r.Header.Get("Authorization")
	if len(raw) < len("Bearer ") || !strings.EqualFold(raw[:len("Bearer ")], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(raw[len("Bearer "):])
	return tok, tok != ""
}

func claimsFrom(ctx context.Context) (tokencodec.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(tokencodec.Claims)
	return c, ok
}

// userIDFrom is only meaningful behind requireBearer(UserSession).
func userIDFrom(ctx context.Context) (domain.UserID, bool) {
	c, ok := claimsFrom(ctx)
	if !ok {
		return domain.UserID{}, false
	}
	id, err := uuid.Parse(c.Subject)
	return id, err == nil
}
