package rutifyclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type Event struct {
	Event     string       `json:"event"`
	Data      Notification `json:"data"`
	Timestamp time.Time    `json:"timestamp"`
}

// Listen streams events to handle until ctx is done, the server closes the
// stream or handle returns an error. The client's token must be a notify token.
func (c *Client) Listen(ctx context.Context, handle func(Event) error) error {
	target, err := websocketURL(c.baseURL, c.token)
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return &APIError{Status: resp.StatusCode, Message: "unauthorized"}
		}
		return fmt.Errorf("dial %s: %w", c.baseURL, err)
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if err := handle(ev); err != nil {
			if errors.Is(err, ErrStopListening) {
				return nil
			}
			return err
		}
	}
}

// ErrStopListening may be returned by a Listen handler to end the stream cleanly.
var ErrStopListening = errors.New("stop listening")
