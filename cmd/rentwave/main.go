package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rentwave/rentwave/internal/app"
	"github.com/rentwave/rentwave/internal/backend"
	"github.com/rentwave/rentwave/internal/config"
	apperr "github.com/rentwave/rentwave/internal/errors"
	"github.com/rentwave/rentwave/internal/logging"
	"github.com/rentwave/rentwave/internal/models"
	"github.com/rentwave/rentwave/internal/state"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var Version = "dev"

const usage = `usage: rentwave <command> [args]

commands:
  login <loginId>     sign in; the password is read from stdin
  signup <loginId>    create an account; the password is read from stdin
  status              show the current session
  refresh             exchange the refresh token for a new access token
  me                  show the signed-in user's profile
  nickname <name>     change the signed-in user's nickname
  logout              sign out and drop the stored cookies
  hash-password       print a bcrypt hash for a mock accounts file
  version             print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Handle commands that need no config before config loading.
	switch os.Args[1] {
	case "hash-password":
		hashPassword()
		return
	case "version":
		fmt.Println(Version)
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)

		if h := hint(err); h != "" {
			fmt.Fprintln(os.Stderr, h)
		}

		os.Exit(1)
	}
}

// hint suggests what to do after err, or returns "".
func hint(err error) string {
	switch {
	case app.IsSessionGone(err):
		return "run `rentwave login <loginId>` to sign in"
	case backend.IsTransient(err):
		return "the backend is unreachable or overloaded; try again shortly"
	}

	return ""
}

func hashPassword() {
	password, err := readSecret(os.Stdin, "Enter password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(hash))
}

// readSecret prompts on stderr and reads one line. A terminal on stdin is
// read without echo; piped input is read from r.
func readSecret(r io.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)

		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}

		return string(b), nil
	}

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}

		return "", errors.New("no input")
	}

	return strings.TrimRight(scanner.Text(), "\r"), nil
}

func run(command string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	logger.Debug("rentwave starting",
		slog.String("version", Version),
		slog.String("command", command),
		slog.String("api", cfg.APIURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var appState *state.State
	if cfg.StatePath != "" {
		appState, err = state.LoadAt(cfg.StatePath)
	} else {
		appState, err = state.Load()
	}

	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	defer appState.Close()

	a, err := app.New(app.Options{
		APIURL:         cfg.APIURL,
		HTTPTimeout:    cfg.HTTPTimeout,
		AccessTokenTTL: cfg.AccessTokenTTL,
		State:          appState,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	switch command {
	case "login":
		return runLogin(ctx, a, args)
	case "signup":
		return runSignup(ctx, a, args)
	case "status":
		return runStatus(ctx, a)
	case "refresh":
		return runRefresh(ctx, a)
	case "me":
		return runMe(ctx, a)
	case "nickname":
		return runNickname(ctx, a, args)
	case "logout":
		a.Logout(ctx)
		fmt.Println("signed out")

		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func credentials(name string, args []string) (models.Credentials, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return models.Credentials{}, err
	}

	if fs.NArg() != 1 {
		return models.Credentials{}, fmt.Errorf("usage: rentwave %s <loginId>", name)
	}

	password, err := readSecret(os.Stdin, "Password: ")
	if err != nil {
		return models.Credentials{}, err
	}

	return models.Credentials{LoginID: fs.Arg(0), Password: password}, nil
}

func runLogin(ctx context.Context, a *app.App, args []string) error {
	creds, err := credentials("login", args)
	if err != nil {
		return err
	}

	st, err := a.Login(ctx, creds)
	if err != nil {
		if code := apperr.CodeOf(err); code != "" {
			if msg := apperr.Message(code); msg != "" {
				return fmt.Errorf("%s (%s)", msg, code)
			}
		}

		return err
	}

	fmt.Printf("signed in as %s\n", st.UserID)

	return nil
}

func runSignup(ctx context.Context, a *app.App, args []string) error {
	creds, err := credentials("signup", args)
	if err != nil {
		return err
	}

	resp, err := a.Signup(ctx, creds)
	if err != nil {
		if code := apperr.CodeOf(err); code != "" {
			if msg := apperr.Message(code); msg != "" {
				return fmt.Errorf("%s (%s)", msg, code)
			}
		}

		return err
	}

	fmt.Printf("created user %s (%s)\n", resp.UserID, resp.Nickname)

	return nil
}

// resume restores the persisted session, if any, before a command that
// needs one.
func resume(ctx context.Context, a *app.App) error {
	_, err := a.Resume(ctx)
	return err
}

func runStatus(ctx context.Context, a *app.App) error {
	if err := resume(ctx, a); err != nil && !app.IsSessionGone(err) {
		return err
	}

	out := struct {
		Status string `json:"status"`
		UserID string `json:"userId,omitempty"`
		Error  string `json:"error,omitempty"`
	}{
		Status: a.Session.Status().String(),
		UserID: a.Session.Snapshot().UserID,
		Error:  a.Session.Snapshot().Error,
	}

	return printJSON(out)
}

func runRefresh(ctx context.Context, a *app.App) error {
	if err := resume(ctx, a); err != nil {
		return err
	}

	// Resume already exchanged the refresh token once.
	st := a.Session.Current()
	if st.Error != "" {
		return apperr.ErrRefreshAccessToken
	}

	fmt.Printf("access token valid until %s\n", st.AccessTokenExpires.Format("2006-01-02 15:04:05 MST"))

	return nil
}

func runMe(ctx context.Context, a *app.App) error {
	if err := resume(ctx, a); err != nil {
		return err
	}

	p, err := a.API.Me(ctx)
	if err != nil {
		return err
	}

	return printJSON(p)
}

func runNickname(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: rentwave nickname <name>")
	}

	if err := resume(ctx, a); err != nil {
		return err
	}

	p, err := a.API.UpdateMe(ctx, models.ProfileUpdate{Nickname: args[0]})
	if err != nil {
		return err
	}

	return printJSON(p)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
