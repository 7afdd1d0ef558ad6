package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alone-wolf/rutify/internal/broadcast"
	"github.com/alone-wolf/rutify/internal/observability/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type State int32

const (
	StateConnecting State = iota
	StateAuthorizing
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorizing:
		return "authorizing"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type session struct {
	id    string
	state atomic.Int32
	log   *slog.Logger
}

func newSession(requestID string) *session {
	id := uuid.NewString()
	return &session{
		id:  id,
		log: slog.Default().With("session_id", id, "request_id", requestID),
	}
}

func (s *session) setState(st State) { s.state.Store(int32(st)) }

func (s *session) State() State { return State(s.state.Load()) }

// run forwards events until the client goes away, a write fails or the
// broadcaster shuts down. Token expiry is not rechecked while open.
func (s *session) run(parent context.Context, conn *websocket.Conn, sub *broadcast.Subscription, pingInterval time.Duration) {
	ctx, cancel := context.WithCancel(parent)
	readerDone := make(chan struct{})

	s.setState(StateOpen)
	metrics.WSSessionsActive.Inc()
	s.log.Info("websocket session opened")

	defer func() {
		cancel()
		sub.Close()
		_ = conn.Close()
		<-readerDone
		s.setState(StateClosed)
		metrics.WSSessionsActive.Dec()
		s.log.Info("websocket session closed")
	}()

	pongWait := pingInterval * pongWaitMultiplier
	go s.readLoop(conn, pongWait, cancel, readerDone)
	go s.pingLoop(ctx, conn, pingInterval, cancel)

	for {
		ev, err := sub.Recv(ctx)
		if err != nil {
			var lag *broadcast.LagError
			switch {
			case errors.As(err, &lag):
				s.log.Warn("subscriber lagged, events skipped", "skipped", lag.Skipped)
				continue
			case errors.Is(err, broadcast.ErrClosed):
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
			}
			return
		}

		payload, err := json.Marshal(ev)
		if err != nil {
			s.log.Error("failed to encode event", "err", err)
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.log.Debug("websocket write failed", "err", err)
			return
		}
	}
}

// readLoop discards client payloads; it exists to notice close frames,
// dead peers and pong replies.
func (s *session) readLoop(conn *websocket.Conn, pongWait time.Duration, cancel context.CancelFunc, done chan<- struct{}) {
	defer close(done)
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("websocket read ended", "err", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (s *session) pingLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration, cancel context.CancelFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.log.Debug("websocket ping failed", "err", err)
				cancel()
				return
			}
		}
	}
}
