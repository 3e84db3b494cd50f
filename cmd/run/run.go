// Package run implements the command that runs one ingestion job in the
// foreground.
package run

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/common"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// ErrJobFailed is returned when the job finishes as failed.
var ErrJobFailed = errors.New("job failed")

// Command returns the run command.
func Command() *cobra.Command {
	var noSync bool

	cmd := &cobra.Command{
		Use:       "run <job_type>",
		Short:     "Run an ingestion job and wait for it to finish",
		Long:      "Run an ingestion job in the foreground. Job types: " + jobTypeList() + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobTypeNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobType, err := domain.ParseJobType(args[0])
			if err != nil {
				return err
			}

			deps, err := common.Deps()
			if err != nil {
				return err
			}
			if noSync {
				deps.Config.Sync.AutoSync = false
			}

			ctx, stop := common.SignalContext(cmd.Context())
			defer stop()

			rt, err := bootstrap.NewRuntime(ctx, deps)
			if err != nil {
				return err
			}
			defer rt.Close()

			job, err := rt.Services.Orchestrator.Run(ctx, jobType, domain.TriggerManual)
			if err != nil {
				return fmt.Errorf("failed to run %s: %w", jobType, err)
			}

			if common.WantJSON() {
				if printErr := common.PrintJSON(cmd.OutOrStdout(), job); printErr != nil {
					return printErr
				}
			} else {
				t := common.NewTable(cmd.OutOrStdout(), common.JobHeader)
				t.AppendRow(common.JobRow(job))
				t.Render()
			}

			if job.Status == domain.JobStatusFailed {
				return ErrJobFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip the automatic sync pass after the job")
	return cmd
}

func jobTypeNames() []string {
	names := make([]string, len(domain.JobTypes))
	for i, jt := range domain.JobTypes {
		names[i] = string(jt)
	}
	return names
}

func jobTypeList() string {
	return strings.Join(jobTypeNames(), ", ")
}
