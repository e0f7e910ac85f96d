package main

import (
	"github.com/spf13/cobra"
)

// newRootCommand builds the command tree. The returned func releases resources
// opened while running a command and must be called after Execute.
func newRootCommand(opts ...contextOption) (*cobra.Command, func()) {
	var configFlag string
	var formatFlag string
	var urlFlag string

	ctx := newCommandContext(&configFlag, &formatFlag, &urlFlag, opts...)

	rootCmd := &cobra.Command{
		Use:           "camctl",
		Short:         "Control the scheinicam recording panel",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.validateFormat(); err != nil {
				return err
			}
			if shouldSkipConfig(cmd) {
				return nil
			}
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			if requiresAuth(cmd) {
				return ctx.requireAuthenticated(cmd)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", formatTable, "Output format: table, json or yaml")
	rootCmd.PersistentFlags().StringVar(&urlFlag, "url", "", "Backend URL (overrides server.base_url)")

	rootCmd.AddCommand(newLoginCommand(ctx))
	rootCmd.AddCommand(newLogoutCommand(ctx))
	rootCmd.AddCommand(newAuthCommand(ctx))
	for _, cmd := range newRecordingCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newVideosCommand(ctx))
	rootCmd.AddCommand(newAdminCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd, ctx.close
}
