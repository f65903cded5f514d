package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-anon-client/messages"
	"github.com/jrsteele09/go-anon-client/server"
	"github.com/jrsteele09/go-anon-client/sessions"
)

// profile is the structured form of the logged in user. The access token is never printed.
type profile struct {
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
}

func newProfile(s *sessions.Session) profile {
	return profile{Username: s.Username, Email: s.Email}
}

func (c *cli) printProfile(s *sessions.Session, greeting string) error {
	return c.print.print(newProfile(s), func(w io.Writer) {
		fmt.Fprintf(w, "%s %s <%s>\n", greeting, s.Username, s.Email)
	})
}

func (c *cli) loginCmd() *cobra.Command {
	var identifier, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a username or email and a password",
		Long: `Log in with a username or email and a password.

Values not given as flags are read from standard input.`,
		Example: `  anonclient login --user alice
  echo "$PASSWORD" | anonclient login --user alice@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.wire()
			if err != nil {
				return err
			}
			if identifier, err = c.prompt("Username or email", identifier); err != nil {
				return err
			}
			if password, err = c.prompt("Password", password); err != nil {
				return err
			}

			session, err := a.manager.Login(cmd.Context(), identifier, password)
			if err != nil {
				return err
			}
			return c.printProfile(session, "Logged in as")
		},
	}
	cmd.Flags().StringVarP(&identifier, "user", "u", "", "Username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (read from stdin when omitted)")
	return cmd
}

func (c *cli) signupCmd() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.wire()
			if err != nil {
				return err
			}
			if username, err = c.prompt("Username", username); err != nil {
				return err
			}
			if email, err = c.prompt("Email", email); err != nil {
				return err
			}
			if password, err = c.prompt("Password", password); err != nil {
				return err
			}

			session, err := a.manager.Signup(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}
			return c.printProfile(session, "Welcome")
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Username")
	cmd.Flags().StringVar(&email, "email", "", "Email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (read from stdin when omitted)")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on the server and forget it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.wire()
			if err != nil {
				return err
			}
			a.manager.Logout(cmd.Context())
			if err := a.messages.Flags().Clear(); err != nil {
				return err
			}
			return c.print.status("logged_out", "Logged out")
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.wire()
			if err != nil {
				return err
			}
			return a.guard.Run(func(s sessions.Session) error {
				return c.printProfile(&s, "Logged in as")
			})
		},
	}
}

func (c *cli) shareLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share-link",
		Short: "Print the link other people use to send you anonymous messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.wire()
			if err != nil {
				return err
			}
			return a.guard.Run(func(s sessions.Session) error {
				link := messages.ShareLink(a.config.GetFrontendOrigin(), s.Username)
				return c.print.print(map[string]string{"link": link}, func(w io.Writer) {
					fmt.Fprintln(w, link)
				})
			})
		},
	}
}

func (c *cli) googleLoginCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "google-login",
		Short: "Log in with a Google account through the browser",
		Long: `Log in with a Google account.

A local callback server is started and the authorization URL is printed. Open it in a
browser; the provider redirects back to the callback URL and the session is stored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.wire()
			if err != nil {
				return err
			}
			if timeout == 0 {
				timeout = a.config.GetCallbackTimeout()
			}

			srv := server.New(a.config, a.manager, a.guard, server.WithConsole(cmd.ErrOrStderr()))
			addr, err := srv.Start()
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}()

			authURL, err := a.manager.StartFederatedLogin(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Open this URL in your browser:\n\n  %s\n\nWaiting for the redirect to %s\n",
				authURL, server.CallbackURL(addr))

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			select {
			case res := <-srv.Done():
				if res.Err != nil {
					return res.Err
				}
				return c.printProfile(res.Session, "Logged in as")
			case <-ctx.Done():
				return fmt.Errorf("waiting for the login callback: %w", ctx.Err())
			}
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "How long to wait for the browser redirect (default CALLBACK_TIMEOUT)")
	return cmd
}
