// Package jobs implements the commands that inspect ingestion job history.
package jobs

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/common"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/database"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

const defaultLimit = 20

// Command returns the jobs command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect ingestion jobs",
	}
	cmd.AddCommand(listCommand(), getCommand())
	return cmd
}

func listCommand() *cobra.Command {
	var (
		jobTypeFlag string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var jobType domain.JobType
			if jobTypeFlag != "" {
				jt, err := domain.ParseJobType(jobTypeFlag)
				if err != nil {
					return err
				}
				jobType = jt
			}

			return common.WithStore(func(_ *bootstrap.CommandDeps, store *database.Store) error {
				list, err := store.Jobs.List(cmd.Context(), jobType, limit)
				if err != nil {
					return err
				}
				return render(cmd, list)
			})
		},
	}

	cmd.Flags().StringVar(&jobTypeFlag, "type", "", "only list jobs of this type")
	cmd.Flags().IntVar(&limit, "limit", defaultLimit, "maximum number of jobs")
	return cmd
}

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job_id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := uuid.Parse(args[0]); err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}
			return common.WithStore(func(_ *bootstrap.CommandDeps, store *database.Store) error {
				job, err := store.Jobs.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return render(cmd, []*domain.IngestionJob{job})
			})
		},
	}
}

func render(cmd *cobra.Command, list []*domain.IngestionJob) error {
	if common.WantJSON() {
		return common.PrintJSON(cmd.OutOrStdout(), list)
	}

	t := common.NewTable(cmd.OutOrStdout(), common.JobHeader)
	for _, job := range list {
		t.AppendRow(common.JobRow(job))
	}
	t.Render()
	return nil
}
