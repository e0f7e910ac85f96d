package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"scheinicam/internal/auth"
	"scheinicam/internal/services"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var remember bool
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the recording panel",
		Long: "Prompts for the panel password until it is accepted. Failed attempts " +
			"lock further tries for a growing number of seconds; the prompt waits " +
			"the lockout out before asking again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(session *auth.Session) error {
				reader := bufio.NewReader(cmd.InOrStdin())
				out := cmd.OutOrStdout()
				errOut := cmd.ErrOrStderr()
				for {
					if err := waitForLockout(cmd.Context(), session, errOut); err != nil {
						return err
					}
					if !passwordStdin {
						fmt.Fprint(errOut, "Password: ")
					}
					password, err := readPassword(reader)
					if err != nil {
						return err
					}

					err = session.Login(cmd.Context(), password, remember)
					switch {
					case err == nil:
						if remember {
							fmt.Fprintln(out, "Logged in (remembered on this machine)")
						} else {
							fmt.Fprintln(out, "Logged in for this session")
						}
						return nil
					case errors.Is(err, services.ErrRejectedCredential):
						if passwordStdin {
							return err
						}
						fmt.Fprintln(errOut, services.UserMessage(err))
					default:
						return err
					}
				}
			})
		},
	}

	cmd.Flags().BoolVar(&remember, "remember", false, "Keep the login across sessions")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read a single password from stdin without prompting")
	return cmd
}

// waitForLockout blocks until the session accepts attempts again, printing
// the remaining seconds as they change.
func waitForLockout(ctx context.Context, session *auth.Session, w io.Writer) error {
	changes, cancel := session.Changes()
	defer cancel()

	var shown uint
	for {
		remaining := session.State().LockoutRemaining
		if remaining == 0 {
			return nil
		}
		if remaining != shown {
			fmt.Fprintf(w, "Too many failed attempts, retry in %d seconds\n", remaining)
			shown = remaining
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
		}
	}
}

func readPassword(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	password := strings.TrimRight(line, "\r\n")
	if err != nil {
		if errors.Is(err, io.EOF) && password != "" {
			return password, nil
		}
		if errors.Is(err, io.EOF) {
			return "", errors.New("no password provided")
		}
		return "", fmt.Errorf("read password: %w", err)
	}
	return password, nil
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the remembered login",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(session *auth.Session) error {
				if err := session.Logout(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

type authStatusView struct {
	Authenticated bool   `json:"authenticated" yaml:"authenticated"`
	RememberMe    bool   `json:"remember_me" yaml:"remember_me"`
	BaseURL       string `json:"base_url" yaml:"base_url"`
}

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect the login state",
	}
	authCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether a login is remembered",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(session *auth.Session) error {
				state := session.State()
				view := authStatusView{
					Authenticated: state.Authenticated,
					RememberMe:    state.RememberMe,
					BaseURL:       ctx.config.Server.BaseURL,
				}
				return ctx.emit(cmd, view, func(w io.Writer) error {
					colorize := shouldColorize(w)
					lines := []string{renderStatusLine("Backend", statusInfo, view.BaseURL, colorize)}
					switch {
					case view.Authenticated && view.RememberMe:
						lines = append(lines, renderStatusLine("Login", statusOK, "logged in (remembered)", colorize))
					case view.Authenticated:
						lines = append(lines, renderStatusLine("Login", statusOK, "logged in (this session)", colorize))
					default:
						lines = append(lines, renderStatusLine("Login", statusWarn, "not logged in", colorize))
					}
					return writeLines(w, lines...)
				})
			})
		},
	})
	return authCmd
}
