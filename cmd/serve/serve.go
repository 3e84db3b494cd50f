// Package serve implements the command that runs the service: admin API,
// scheduler and auto-sync.
package serve

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/common"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/bootstrap"
)

// Command returns the serve command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the ingestion scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bootstrap.Start(cmd.Context(), common.Options())
		},
	}
}
