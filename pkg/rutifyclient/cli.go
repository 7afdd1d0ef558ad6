package rutifyclient

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

const defaultStatePath = ".rutifyctl.json"

// cliState keeps the login session between invocations.
type cliState struct {
	BaseURL      string    `json:"base_url"`
	Username     string    `json:"username"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type UsageError struct {
	Program string
}

func (u UsageError) Error() string {
	if u.Program == "" {
		u.Program = "rutifyctl"
	}
	return fmt.Sprintf("Usage: %s <command> [options]", filepath.Base(u.Program))
}

func (UsageError) UsageLines() []string {
	return []string{
		"Commands:",
		"  register  Create an account",
		"  login     Log in and store the session",
		"  logout    End the stored session (-all ends every session)",
		"  profile   Show the logged-in user",
		"  token     Manage notify tokens: create | list | revoke <id>",
		"  send      Submit a notification",
		"  listen    Print live notifications",
		"  notifies  Stored notifications: list | delete <id> | clear",
		"  stats     Show relay statistics",
		"  health    Check that the relay is up",
	}
}

// RunCLI dispatches one rutifyctl command. Output goes to stdout, errors to stderr.
func RunCLI(prog string, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		return UsageError{Program: prog}
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "register":
		err = runRegister(rest, stdout)
	case "login":
		err = runLogin(rest, stdout)
	case "token":
		err = runToken(prog, rest, stdout)
	case "send":
		err = runSend(rest, stdout)
	case "listen":
		err = runListen(rest, stdout)
	case "stats":
		err = runStats(rest, stdout)
	case "logout":
		err = runLogout(rest, stdout)
	case "profile":
		err = runProfile(rest, stdout)
	case "notifies":
		err = runNotifies(prog, rest, stdout)
	case "health":
		err = runHealth(rest, stdout)
	default:
		return UsageError{Program: prog}
	}
	var usage UsageError
	if err != nil && !errors.As(err, &usage) {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return err
}

func newFlagSet(name string) (*flag.FlagSet, *string, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	baseURL := fs.String("url", getenv("RUTIFY_URL", ""), "server base URL")
	statePath := fs.String("state", getenv("RUTIFYCTL_STATE_PATH", defaultStatePath), "state file path")
	return fs, baseURL, statePath
}

func runRegister(args []string, stdout io.Writer) error {
	fs, baseURL, _ := newFlagSet("register")
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" || *email == "" {
		return errors.New("register requires -username, -password and -email")
	}
	u, err := New(*baseURL).Register(context.Background(), *username, *password, *email)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "registered %s (%s)\n", u.Username, u.UserID)
	return err
}

func runLogin(args []string, stdout io.Writer) error {
	fs, baseURL, statePath := newFlagSet("login")
	username := fs.String("username", "", "username")
	password := fs.String("password", getenv("RUTIFY_PASSWORD", ""), "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return errors.New("login requires -username and -password")
	}
	client := New(*baseURL)
	sess, err := client.Login(context.Background(), *username, *password)
	if err != nil {
		return err
	}
	st := cliState{
		BaseURL:      client.BaseURL(),
		Username:     sess.Username,
		SessionToken: sess.JWTToken,
		ExpiresAt:    sess.ExpiresAt,
	}
	if err := saveState(*statePath, st); err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "logged in as %s until %s\n", sess.Username, sess.ExpiresAt.Format(time.RFC3339))
	return err
}

func runToken(prog string, args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return UsageError{Program: prog}
	}
	sub, rest := args[0], args[1:]
	fs, baseURL, statePath := newFlagSet("token " + sub)
	usage := fs.String("usage", "", "token usage label (create)")
	hours := fs.Int64("hours", 0, "lifetime in hours (create, default server-side)")
	device := fs.String("device-info", "", "device description (create)")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	client, err := sessionClient(*statePath, *baseURL)
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch sub {
	case "create":
		opts := CreateTokenOptions{Usage: *usage}
		if *hours > 0 {
			opts.ExpiresInHours = hours
		}
		if *device != "" {
			opts.DeviceInfo = device
		}
		tok, err := client.CreateToken(ctx, opts)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "token_id: %d\nexpires_at: %s\ntoken: %s\n", tok.TokenID, tok.ExpiresAt.Format(time.RFC3339), tok.Token)
		return err
	case "list":
		tokens, err := client.ListTokens(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tUSAGE\tEXPIRES\tLAST USED")
		for _, t := range tokens {
			last := "never"
			if t.LastUsedAt != nil {
				last = t.LastUsedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Usage, t.ExpiresAt.Format(time.RFC3339), last)
		}
		return tw.Flush()
	case "revoke":
		if fs.NArg() != 1 {
			return errors.New("token revoke requires a token id")
		}
		id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid token id %q", fs.Arg(0))
		}
		if err := client.RevokeToken(ctx, id); err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "revoked token %d\n", id)
		return err
	default:
		return UsageError{Program: prog}
	}
}

func runSend(args []string, stdout io.Writer) error {
	fs, baseURL, _ := newFlagSet("send")
	token := fs.String("token", getenv("RUTIFY_TOKEN", ""), "notify token (when the server requires one)")
	title := fs.String("title", "", "notification title")
	device := fs.String("device", "", "device name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("send requires a message")
	}
	n := Notification{Message: strings.Join(fs.Args(), " "), Title: *title, Device: *device}
	if err := New(*baseURL).WithToken(*token).Send(context.Background(), n); err != nil {
		return err
	}
	_, err := fmt.Fprintln(stdout, "sent")
	return err
}

func runListen(args []string, stdout io.Writer) error {
	fs, baseURL, _ := newFlagSet("listen")
	token := fs.String("token", getenv("RUTIFY_TOKEN", ""), "notify token")
	asJSON := fs.Bool("json", false, "print raw JSON events")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return errors.New("listen requires -token or RUTIFY_TOKEN")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	enc := json.NewEncoder(stdout)
	err := New(*baseURL).WithToken(*token).Listen(ctx, func(ev Event) error {
		if *asJSON {
			return enc.Encode(ev)
		}
		_, err := fmt.Fprintf(stdout, "[%s] %s | %s: %s\n", ev.Timestamp.Format(time.RFC3339), ev.Data.Device, ev.Data.Title, ev.Data.Message)
		return err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runStats(args []string, stdout io.Writer) error {
	fs, baseURL, _ := newFlagSet("stats")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := New(*baseURL).Stats(context.Background())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "today: %d\ntotal: %d\ndevices: %d\nsubscribers: %d\n", s.TodayCount, s.TotalCount, s.DeviceCount, s.Subscribers)
	return err
}

func runLogout(args []string, stdout io.Writer) error {
	fs, baseURL, statePath := newFlagSet("logout")
	all := fs.Bool("all", false, "end every session of this user")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := sessionClient(*statePath, *baseURL)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if *all {
		n, err := client.LogoutAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "ended %d sessions\n", n)
	} else {
		if err := client.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "logged out")
	}
	if err := os.Remove(*statePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func runProfile(args []string, stdout io.Writer) error {
	fs, baseURL, statePath := newFlagSet("profile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := sessionClient(*statePath, *baseURL)
	if err != nil {
		return err
	}
	u, err := client.Profile(context.Background())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "user_id: %s\nusername: %s\nemail: %s\nrole: %s\ncreated_at: %s\n",
		u.UserID, u.Username, u.Email, u.Role, u.CreatedAt.Format(time.RFC3339))
	return err
}

func runNotifies(prog string, args []string, stdout io.Writer) error {
	sub := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, args = args[0], args[1:]
	}
	fs, baseURL, statePath := newFlagSet("notifies " + sub)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx := context.Background()

	switch sub {
	case "list":
		items, total, err := New(storedBaseURL(*statePath, *baseURL)).ListNotifications(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tRECEIVED\tDEVICE\tTITLE\tMESSAGE")
		for _, n := range items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", n.ID, n.ReceivedAt.Format(time.RFC3339), n.Device, n.Title, n.Message)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "total: %d\n", total)
		return err
	case "delete":
		if fs.NArg() != 1 {
			return errors.New("notifies delete requires a notification id")
		}
		id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid notification id %q", fs.Arg(0))
		}
		client, err := sessionClient(*statePath, *baseURL)
		if err != nil {
			return err
		}
		if err := client.DeleteNotification(ctx, id); err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "deleted notification %d\n", id)
		return err
	case "clear":
		client, err := sessionClient(*statePath, *baseURL)
		if err != nil {
			return err
		}
		n, err := client.DeleteAllNotifications(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "deleted %d notifications\n", n)
		return err
	default:
		return UsageError{Program: prog}
	}
}

func runHealth(args []string, stdout io.Writer) error {
	fs, baseURL, statePath := newFlagSet("health")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client := New(storedBaseURL(*statePath, *baseURL))
	if err := client.Health(context.Background()); err != nil {
		return fmt.Errorf("%s is unhealthy: %w", client.BaseURL(), err)
	}
	_, err := fmt.Fprintf(stdout, "%s is healthy\n", client.BaseURL())
	return err
}

// storedBaseURL prefers an explicit URL, then the one saved at login.
func storedBaseURL(statePath, baseURL string) string {
	if baseURL != "" {
		return baseURL
	}
	if st, err := loadState(statePath); err == nil {
		return st.BaseURL
	}
	return ""
}

// sessionClient builds a client from the saved login. An explicit -url wins
// over the stored one.
func sessionClient(statePath, baseURL string) (*Client, error) {
	st, err := loadState(statePath)
	if err != nil {
		return nil, err
	}
	if st.SessionToken == "" || (!st.ExpiresAt.IsZero() && time.Now().After(st.ExpiresAt)) {
		return nil, errors.New("not logged in; run login first")
	}
	if baseURL == "" {
		baseURL = st.BaseURL
	}
	return New(baseURL).WithToken(st.SessionToken), nil
}

func loadState(path string) (cliState, error) {
	var st cliState
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, errors.New("not logged in; run login first")
		}
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("read state %s: %w", path, err)
	}
	return st, nil
}

func saveState(path string, st cliState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
