package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"pokedex/internal/client"
	"pokedex/internal/platform/localstate"
)

var errSignedOut = errors.New("not signed in, run `pokedex login` first")

type cliEnv struct {
	out   io.Writer
	api   *client.Client
	state *localstate.Store
}

func newApp(out io.Writer) *cli.App {
	env := &cliEnv{out: out}

	return &cli.App{
		Name:      "pokedex",
		Usage:     "browse the first-generation Pokedex and manage your collection",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Pokedex API base URL",
				EnvVars: []string{"POKEDEX_API_URL"},
				Value:   client.DefaultBaseURL,
			},
			&cli.StringFlag{
				Name:    "state-file",
				Usage:   "where the signed-in identity is remembered",
				EnvVars: []string{"POKEDEX_STATE_FILE"},
				Value:   localstate.DefaultPath(),
			},
		},
		Before: func(c *cli.Context) error {
			env.api = client.New(c.String("api-url"))
			env.state = localstate.NewStore(c.String("state-file"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "create an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "name", Usage: "display name"},
				},
				Action: env.register,
			},
			{
				Name:  "login",
				Usage: "sign in and remember the identity",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.BoolFlag{Name: "remember", Usage: "keep the refresh token longer"},
				},
				Action: env.login,
			},
			{
				Name:   "logout",
				Usage:  "sign out and forget the identity",
				Action: env.logout,
			},
			{
				Name:   "whoami",
				Usage:  "show the signed-in identity",
				Action: env.whoami,
			},
			{
				Name:  "list",
				Usage: "list the catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "case-insensitive name filter"},
				},
				Action: env.list,
			},
			{
				Name:   "reload",
				Usage:  "reload the catalog from PokeAPI",
				Action: env.reload,
			},
			{
				Name:   "collection",
				Usage:  "list your collection",
				Action: env.collection,
			},
			{
				Name:      "add",
				Usage:     "add a pokemon to your collection",
				ArgsUsage: "NAME",
				Action:    env.add,
			},
			{
				Name:      "remove",
				Usage:     "remove a pokemon from your collection",
				ArgsUsage: "NAME",
				Action:    env.remove,
			},
			{
				Name:      "rename",
				Usage:     "set your display name",
				ArgsUsage: "NAME",
				Action:    env.rename,
			},
			{
				Name:   "unname",
				Usage:  "clear your display name",
				Action: env.unname,
			},
		},
	}
}

func (e *cliEnv) printNotifications(notes []client.Notification) {
	for _, n := range notes {
		prefix := "ok"
		if n.Level == "error" {
			prefix = "error"
		}
		fmt.Fprintf(e.out, "[%s] %s\n", prefix, n.Message)
	}
}

// authed runs fn with the saved access token. An expired token is refreshed
// once; if the server still rejects the identity, the saved flag is cleared.
func (e *cliEnv) authed(ctx context.Context, fn func(*client.Client) error) error {
	st, err := e.state.Load()
	if err != nil {
		return err
	}
	if !st.SignedIn() {
		return errSignedOut
	}

	err = fn(e.api.WithToken(st.AccessToken))
	if !errors.Is(err, client.ErrUnauthorized) {
		return err
	}

	if st.RefreshToken != "" {
		tokens, refreshErr := e.api.Refresh(ctx, st.RefreshToken)
		if refreshErr == nil {
			st.AccessToken = tokens.AccessToken
			st.RefreshToken = tokens.RefreshToken
			if err := e.state.Save(st); err != nil {
				return err
			}
			err = fn(e.api.WithToken(st.AccessToken))
			if !errors.Is(err, client.ErrUnauthorized) {
				return err
			}
		}
	}

	if clearErr := e.state.Clear(); clearErr != nil {
		return clearErr
	}
	return errors.New("session expired, run `pokedex login` again")
}

func (e *cliEnv) register(c *cli.Context) error {
	u, err := e.api.Register(c.Context, c.String("email"), c.String("password"), c.String("name"))
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "registered %s\n", u.Email)
	return nil
}

func (e *cliEnv) login(c *cli.Context) error {
	tokens, err := e.api.Login(c.Context, c.String("email"), c.String("password"), c.Bool("remember"))
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			return errors.New("invalid email or password")
		}
		return err
	}

	st := localstate.State{
		UserID:       tokens.UserID,
		Email:        strings.ToLower(strings.TrimSpace(c.String("email"))),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}
	if u, err := e.api.WithToken(tokens.AccessToken).Me(c.Context); err == nil {
		st.DisplayName = u.DisplayName
	}
	if err := e.state.Save(st); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "signed in as %s\n", displayOf(st))
	return nil
}

func (e *cliEnv) logout(c *cli.Context) error {
	st, err := e.state.Load()
	if err != nil {
		return err
	}
	if !st.SignedIn() {
		fmt.Fprintln(e.out, "not signed in")
		return nil
	}

	if err := e.api.WithToken(st.AccessToken).Logout(c.Context, st.RefreshToken); err != nil && !errors.Is(err, client.ErrUnauthorized) {
		fmt.Fprintf(e.out, "warning: server sign-out failed: %v\n", err)
	}
	if err := e.state.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "signed out")
	return nil
}

// whoami prints the remembered identity right away, then confirms it with the
// server.
func (e *cliEnv) whoami(c *cli.Context) error {
	st, err := e.state.Load()
	if err != nil {
		return err
	}
	if !st.SignedIn() {
		fmt.Fprintln(e.out, "not signed in")
		return nil
	}
	fmt.Fprintf(e.out, "signed in as %s (cached)\n", displayOf(st))

	return e.authed(c.Context, func(api *client.Client) error {
		u, err := api.Me(c.Context)
		if err != nil {
			return err
		}
		if u.DisplayName != st.DisplayName {
			st.DisplayName = u.DisplayName
			if err := e.rememberName(u.DisplayName); err != nil {
				return err
			}
		}
		fmt.Fprintf(e.out, "confirmed %s\n", displayOf(st))
		return nil
	})
}

func (e *cliEnv) list(c *cli.Context) error {
	run := func(api *client.Client) error {
		entries, meta, err := api.List(c.Context, c.String("query"))
		if err != nil {
			return err
		}
		for _, p := range entries {
			owned := ""
			if p.Owned {
				owned = "  *owned"
			}
			fmt.Fprintf(e.out, "#%03d %-12s %s%s\n", p.ID, p.Name, strings.Join(p.Types, "/"), owned)
		}
		fmt.Fprintf(e.out, "%d shown, catalog %s\n", len(entries), meta.Status)
		if meta.LastError != "" {
			fmt.Fprintf(e.out, "last load error: %s\n", meta.LastError)
		}
		return nil
	}

	st, err := e.state.Load()
	if err != nil {
		return err
	}
	if !st.SignedIn() {
		return run(e.api)
	}
	return e.authed(c.Context, run)
}

func (e *cliEnv) reload(c *cli.Context) error {
	return e.authed(c.Context, func(api *client.Client) error {
		if err := api.Reload(c.Context); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "catalog reloaded")
		return nil
	})
}

func (e *cliEnv) collection(c *cli.Context) error {
	return e.authed(c.Context, func(api *client.Client) error {
		records, err := api.Collection(c.Context)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(e.out, "your collection is empty")
			return nil
		}
		for _, rec := range records {
			fmt.Fprintf(e.out, "%-12s %s\n", rec.Name, strings.Join(rec.Types, "/"))
		}
		return nil
	})
}

func nameArg(c *cli.Context) (string, error) {
	name := strings.ToLower(strings.TrimSpace(c.Args().First()))
	if name == "" {
		return "", fmt.Errorf("usage: pokedex %s NAME", c.Command.Name)
	}
	return name, nil
}

func (e *cliEnv) add(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	return e.authed(c.Context, func(api *client.Client) error {
		_, notes, err := api.Add(c.Context, name)
		e.printNotifications(notes)
		return err
	})
}

func (e *cliEnv) remove(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	return e.authed(c.Context, func(api *client.Client) error {
		notes, err := api.Remove(c.Context, name)
		e.printNotifications(notes)
		return err
	})
}

func (e *cliEnv) rename(c *cli.Context) error {
	name := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if name == "" {
		return errors.New("usage: pokedex rename NAME")
	}
	return e.authed(c.Context, func(api *client.Client) error {
		u, notes, err := api.Rename(c.Context, name)
		e.printNotifications(notes)
		if err != nil {
			return err
		}
		return e.rememberName(u.DisplayName)
	})
}

func (e *cliEnv) unname(c *cli.Context) error {
	return e.authed(c.Context, func(api *client.Client) error {
		_, notes, err := api.Unname(c.Context)
		e.printNotifications(notes)
		if err != nil {
			return err
		}
		return e.rememberName("")
	})
}

func (e *cliEnv) rememberName(name string) error {
	st, err := e.state.Load()
	if err != nil {
		return err
	}
	st.DisplayName = name
	return e.state.Save(st)
}

func displayOf(st localstate.State) string {
	if st.DisplayName != "" {
		return fmt.Sprintf("%s <%s>", st.DisplayName, st.Email)
	}
	return st.Email
}
