// Package ws serves the subscriber stream: one websocket per authorized
// notify bearer, fed from a broadcast subscription.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/alone-wolf/rutify/internal/broadcast"
	"github.com/alone-wolf/rutify/internal/domain"
	"github.com/alone-wolf/rutify/internal/dto"
	"github.com/alone-wolf/rutify/internal/observability/middleware"
	"github.com/alone-wolf/rutify/internal/service"

	"github.com/gorilla/websocket"
)

const (
	maxMessageSize     = 4 << 10
	writeWait          = 10 * time.Second
	pongWaitMultiplier = 2
	touchTimeout       = 5 * time.Second
)

type Config struct {
	PingInterval   time.Duration
	AllowedOrigins []string
}

type subscriber interface {
	Subscribe() (*broadcast.Subscription, error)
}

type Handler struct {
	auth     service.Authorizer
	bus      subscriber
	cfg      Config
	upgrader websocket.Upgrader
}

func NewHandler(auth service.Authorizer, bus subscriber, cfg Config) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Handler{
		auth: auth,
		bus:  bus,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

// ServeHTTP authorizes the query token before upgrading; a rejected token
// gets a plain 401 and never becomes a websocket.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := newSession(middleware.RequestIDFromContext(ctx))
	sess.setState(StateAuthorizing)

	bearer := r.URL.Query().Get("token")
	claims, err := h.auth.Authorize(ctx, bearer, domain.TokenKindNotifyBearer)
	if err != nil {
		sess.setState(StateClosed)
		if errors.Is(err, domain.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		sess.log.Error("websocket authorization failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sub, err := h.bus.Subscribe()
	if err != nil {
		sess.setState(StateClosed)
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sess.setState(StateClosed)
		sub.Close()
		sess.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	go func() {
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
		defer cancel()
		h.auth.TouchLastUsed(tctx, bearer)
	}()

	sess.log = sess.log.With("token_id", claims.Subject, "usage", claims.Usage)
	sess.run(ctx, conn, sub, h.cfg.PingInterval)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Errors: msg})
}

var _ http.Handler = (*Handler)(nil)
