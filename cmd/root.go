// Package cmd implements the shelter-sync command-line interface.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/common"
	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/jobs"
	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/migrate"
	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/run"
	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/serve"
	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/stats"
	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/syncs"
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "shelter-sync",
		Short:         "Ingest shelter listings and site content and sync them to the search index",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(common.KeyConfig, "", "config file (default is $CONFIG_PATH or ./config.yml)")
	flags.Bool(common.KeyDebug, false, "enable debug logging")
	flags.StringP(common.KeyOutput, "o", common.OutputTable, "output format: table or json")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shelter-sync version %s\n", common.Version)
		},
	})

	rootCmd.AddCommand(serve.Command())
	rootCmd.AddCommand(run.Command())
	rootCmd.AddCommand(jobs.Command())
	rootCmd.AddCommand(syncs.Command())
	rootCmd.AddCommand(syncs.AuditCommand())
	rootCmd.AddCommand(stats.Command())
	rootCmd.AddCommand(migrate.Command())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// initConfig binds the persistent flags so commands read them through
// viper. CONFIG_PATH and APP_DEBUG also feed the flags. The .env files are
// loaded later by the config loader.
func initConfig(cmd *cobra.Command) error {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	flags := cmd.Root().PersistentFlags()
	for _, key := range []string{common.KeyConfig, common.KeyDebug, common.KeyOutput} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", key, err)
		}
	}
	if err := viper.BindEnv(common.KeyConfig, "CONFIG_PATH"); err != nil {
		return fmt.Errorf("failed to bind CONFIG_PATH: %w", err)
	}
	if err := viper.BindEnv(common.KeyDebug, "APP_DEBUG"); err != nil {
		return fmt.Errorf("failed to bind APP_DEBUG: %w", err)
	}

	switch output := viper.GetString(common.KeyOutput); output {
	case common.OutputTable, common.OutputJSON:
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
	return nil
}
