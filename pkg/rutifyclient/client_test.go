package rutifyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestSendPostsJSONWithBearer(t *testing.T) {
	var got Notification
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/notify", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	err := New(srv.URL+"/").WithToken("tok").Send(context.Background(), Notification{Message: "temp high", Device: "sensor-1"})
	require.NoError(t, err)
	require.Equal(t, "Bearer tok", auth)
	require.Equal(t, "temp high", got.Message)
	require.Equal(t, "sensor-1", got.Device)
}

func TestErrorsCarryServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":"token not found"}`))
	}))
	defer srv.Close()

	err := New(srv.URL).RevokeToken(context.Background(), 7)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "token not found", apiErr.Message)
}

func TestListNotificationsReadsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","data":[{"id":2,"message":"b"},{"id":1,"message":"a"}],"meta":{"total":2}}`))
	}))
	defer srv.Close()

	items, total, err := New(srv.URL).ListNotifications(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Equal(t, "b", items[0].Message)
}

func TestWebsocketURL(t *testing.T) {
	got, err := websocketURL("https://relay.example.com/base/", "a b")
	require.NoError(t, err)
	require.Equal(t, "wss://relay.example.com/base/ws?token=a+b", got)

	_, err = websocketURL("ftp://nope", "x")
	require.Error(t, err)
}

func TestListenDeliversEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "good" {
			http.Error(w, `{"errors":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range []string{"one", "two"} {
			ev := Event{Event: "notify", Data: Notification{Message: msg}, Timestamp: time.Now().UTC()}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"), time.Now().Add(time.Second))
	}))
	defer srv.Close()

	var got []string
	err := New(srv.URL).WithToken("good").Listen(context.Background(), func(ev Event) error {
		got = append(got, ev.Data.Message)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two"}, got)

	err = New(srv.URL).WithToken("bad").Listen(context.Background(), func(Event) error { return nil })
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestRunCLIUsage(t *testing.T) {
	var stderr bytes.Buffer
	err := RunCLI("rutifyctl", nil, nil, &stderr)
	var usage UsageError
	require.True(t, errors.As(err, &usage))
	require.Contains(t, usage.Error(), "rutifyctl")

	err = RunCLI("rutifyctl", []string{"bogus"}, nil, &stderr)
	require.True(t, errors.As(err, &usage))
	require.Empty(t, stderr.String())
}

func TestRunCLILoginThenTokenList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			_, _ = w.Write([]byte(`{"user_id":"u1","username":"alice","jwt_token":"sess","expires_at":"2999-01-01T00:00:00Z"}`))
		case "/auth/tokens":
			if r.Header.Get("Authorization") != "Bearer sess" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`[{"id":3,"usage":"sensor-1","token_type":"notify_bearer","expires_at":"2999-01-01T00:00:00Z"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	state := filepath.Join(t.TempDir(), "state.json")
	var stdout, stderr bytes.Buffer

	err := RunCLI("rutifyctl", []string{"login", "-url", srv.URL, "-state", state, "-username", "alice", "-password", "pw"}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	require.Contains(t, stdout.String(), "logged in as alice")

	stdout.Reset()
	err = RunCLI("rutifyctl", []string{"token", "list", "-state", state}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	require.True(t, strings.Contains(stdout.String(), "sensor-1"), stdout.String())
	require.Contains(t, stdout.String(), "never")
}

func TestRunCLITokenRequiresLogin(t *testing.T) {
	var stderr bytes.Buffer
	state := filepath.Join(t.TempDir(), "missing.json")
	err := RunCLI("rutifyctl", []string{"token", "list", "-state", state}, nil, &stderr)
	require.Error(t, err)
	require.Contains(t, stderr.String(), "not logged in")
}

func TestRunCLIProfileNotifiesHealthLogout(t *testing.T) {
	var deleted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authed := r.Header.Get("Authorization") == "Bearer sess"
		switch {
		case r.URL.Path == "/healthz":
			_, _ = w.Write([]byte("ok"))
		case r.URL.Path == "/auth/login":
			_, _ = w.Write([]byte(`{"user_id":"u1","username":"alice","jwt_token":"sess","expires_at":"2999-01-01T00:00:00Z"}`))
		case r.URL.Path == "/auth/profile" && authed:
			_, _ = w.Write([]byte(`{"user_id":"u1","username":"alice","email":"alice@example.com","role":"user","created_at":"2026-01-02T03:04:05Z"}`))
		case r.URL.Path == "/api/notifies" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"status":"ok","data":[{"id":7,"message":"door opened","title":"alarm","device":"sensor-1","received_at":"2026-01-02T03:04:05Z"}],"meta":{"total":1}}`))
		case strings.HasPrefix(r.URL.Path, "/api/notifies/") && r.Method == http.MethodDelete && authed:
			deleted = append(deleted, strings.TrimPrefix(r.URL.Path, "/api/notifies/"))
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case r.URL.Path == "/auth/logout" && authed:
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors":"unauthorized"}`))
		}
	}))
	defer srv.Close()

	state := filepath.Join(t.TempDir(), "state.json")
	var stdout, stderr bytes.Buffer
	run := func(args ...string) error {
		stdout.Reset()
		stderr.Reset()
		return RunCLI("rutifyctl", args, &stdout, &stderr)
	}

	require.NoError(t, run("health", "-url", srv.URL))
	require.Contains(t, stdout.String(), "is healthy")

	require.NoError(t, run("login", "-url", srv.URL, "-state", state, "-username", "alice", "-password", "pw"), stderr.String())

	require.NoError(t, run("profile", "-state", state), stderr.String())
	require.Contains(t, stdout.String(), "email: alice@example.com")
	require.Contains(t, stdout.String(), "role: user")

	require.NoError(t, run("notifies", "-state", state), stderr.String())
	require.Contains(t, stdout.String(), "door opened")
	require.Contains(t, stdout.String(), "sensor-1")
	require.Contains(t, stdout.String(), "total: 1")

	require.NoError(t, run("notifies", "delete", "-state", state, "7"), stderr.String())
	require.Equal(t, []string{"7"}, deleted)

	require.NoError(t, run("logout", "-state", state), stderr.String())
	require.Contains(t, stdout.String(), "logged out")
	_, err := os.Stat(state)
	require.True(t, errors.Is(err, os.ErrNotExist))

	err = run("profile", "-state", state)
	require.Error(t, err)
	require.Contains(t, stderr.String(), "not logged in")

	var usage UsageError
	require.True(t, errors.As(run("notifies", "bogus"), &usage))
	require.Contains(t, usage.UsageLines(), "  health    Check that the relay is up")
}

func TestRunCLIHealthReportsDownServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	err := RunCLI("rutifyctl", []string{"health", "-url", srv.URL, "-state", filepath.Join(t.TempDir(), "none.json")}, &stdout, &stderr)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	require.Contains(t, stderr.String(), "unhealthy")
}
