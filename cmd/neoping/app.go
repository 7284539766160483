package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/jrsteele09/neoping-client/credentials"
	"github.com/jrsteele09/neoping-client/credentials/backend"
	"github.com/jrsteele09/neoping-client/internal/config"
	"github.com/jrsteele09/neoping-client/pipeline"
	"github.com/jrsteele09/neoping-client/refresh"
	"github.com/jrsteele09/neoping-client/session"
)

// app is the wired client: one store, one pipeline, one session.
type app struct {
	store       *credentials.Store
	coordinator *refresh.Coordinator
	client      *pipeline.Client
	prober      *pipeline.Prober
	session     *session.Manager
	closer      io.Closer
}

func newApp(c config.Config) (*app, error) {
	repo, closer, err := backend.Open(c)
	if err != nil {
		return nil, fmt.Errorf("backend.Open: %w", err)
	}

	store := credentials.NewStore(repo)
	coordinator := refresh.NewCoordinator(store, c)
	client := pipeline.New(pipeline.ConfigFrom(c), store, coordinator)

	prober, err := pipeline.NewProber(pipeline.ConfigFrom(c))
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	return &app{
		store:       store,
		coordinator: coordinator,
		client:      client,
		prober:      prober,
		session:     session.NewManager(client, store),
		closer:      closer,
	}, nil
}

func (a *app) Close() error {
	return a.closer.Close()
}

func (a *app) dispatch(ctx context.Context, command string, args []string, out io.Writer) error {
	switch command {
	case "login":
		return a.login(ctx, args, out)
	case "signup":
		return a.signup(ctx, args, out)
	case "logout":
		a.session.Logout(ctx)
		fmt.Fprintln(out, "Logged out.")
		return nil
	case "whoami":
		return a.whoami(ctx, out)
	case "health":
		return a.health(ctx, out)
	case "get":
		if len(args) != 1 {
			return errors.New("usage: neoping get <path>")
		}
		return a.get(ctx, args[0], out)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) login(ctx context.Context, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("login", flag.ContinueOnError)
	username := flags.String("u", "", "username")
	password := flags.String("p", "", "password")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return errors.New("login requires -u and -p")
	}

	user, err := a.session.Login(ctx, session.Credentials{Username: *username, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged in as %s.\n", user.Username)
	return nil
}

func (a *app) signup(ctx context.Context, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("signup", flag.ContinueOnError)
	username := flags.String("u", "", "username")
	password := flags.String("p", "", "password")
	email := flags.String("e", "", "email")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return errors.New("signup requires -u and -p")
	}

	user, err := a.session.Signup(ctx, session.SignupRequest{Username: *username, Password: *password, Email: *email})
	if err != nil {
		return err
	}
	if a.session.IsAuthenticated() {
		fmt.Fprintf(out, "Account %s created and signed in.\n", user.Username)
	} else {
		fmt.Fprintf(out, "Account %s created. Run `neoping login` to sign in.\n", user.Username)
	}
	return nil
}

func (a *app) whoami(ctx context.Context, out io.Writer) error {
	if err := a.session.Restore(ctx); err != nil {
		return err
	}
	if !a.session.IsAuthenticated() {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}
	data, err := json.MarshalIndent(a.session.CurrentUser(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))

	if at := a.coordinator.LastRefreshed(); !at.IsZero() {
		fmt.Fprintf(out, "Access token refreshed at %s\n", at.Format(time.RFC3339))
	}
	token, err := a.store.TokenSource(ctx).Token()
	if err != nil {
		return err
	}
	if token.Expiry.IsZero() {
		fmt.Fprintln(out, "Access token has no expiry claim")
	} else {
		fmt.Fprintf(out, "Access token expires at %s\n", token.Expiry.Format(time.RFC3339))
	}
	return nil
}

func (a *app) health(ctx context.Context, out io.Writer) error {
	h, err := a.prober.Check(ctx)
	if err != nil {
		return err
	}
	switch {
	case h.Protected:
		fmt.Fprintf(out, "Backend reachable (requires authentication), %s\n", h.Latency)
	default:
		fmt.Fprintf(out, "Backend healthy (status %d), %s\n", h.StatusCode, h.Latency)
	}
	return nil
}

func (a *app) get(ctx context.Context, path string, out io.Writer) error {
	resp, err := a.client.Get(ctx, path)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, resp.Body, "", "  "); err != nil {
		_, err = out.Write(resp.Body)
		return err
	}
	fmt.Fprintln(out, pretty.String())
	return nil
}
