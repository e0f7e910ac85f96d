package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"scheinicam/internal/auth"
	"scheinicam/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, backend connectivity, watcher and notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := ctx.gatewayClient(cmd)
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), ctx.config, client)

			session := preflight.Result{Name: "Session", Passed: true, Detail: "not logged in"}
			if err := ctx.withSession(cmd, func(s *auth.Session) error {
				if s.IsAuthenticated() {
					session.Detail = "logged in"
					if s.State().RememberMe {
						session.Detail = "logged in (remembered)"
					}
				}
				return nil
			}); err != nil {
				session = preflight.Result{Name: "Session", Detail: err.Error()}
			}
			results = append(results, session)

			if err := ctx.emit(cmd, results, func(w io.Writer) error {
				colorize := shouldColorize(w)
				lines := make([]string, 0, len(results))
				for _, result := range results {
					kind := statusOK
					if !result.Passed {
						kind = statusError
					}
					lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}
				return writeLines(w, lines...)
			}); err != nil {
				return err
			}
			if failed := preflight.Failed(results); failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(results))
			}
			return nil
		},
	}
}
