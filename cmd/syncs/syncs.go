// Package syncs implements the commands that push items to the search index
// and audit it.
package syncs

import (
	"errors"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/common"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/syncer"
)

// ErrIndexDrift is returned by audit --strict when the index and the
// database disagree.
var ErrIndexDrift = errors.New("index is out of sync")

// Command returns the sync command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:       "sync [scope]",
		Short:     "Upload pending items to the index and remove tombstoned ones",
		Long:      "Run a sync pass. Scope is records, general_content or all (the default).",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(domain.SyncScopeRecords), string(domain.SyncScopeGeneralContent), string(domain.SyncScopeAll)},
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 1 {
				raw = args[0]
			}
			scope, err := domain.ParseSyncScope(raw)
			if err != nil {
				return err
			}

			return withSync(cmd, func(svc *syncer.Service) error {
				summary, syncErr := svc.Sync(cmd.Context(), scope)
				if printErr := renderSummary(cmd, summary); printErr != nil {
					return printErr
				}
				return syncErr
			})
		},
	}
}

// AuditCommand returns the audit command.
func AuditCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare the index against the sync log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSync(cmd, func(svc *syncer.Service) error {
				report, err := svc.Audit(cmd.Context())
				if err != nil {
					return err
				}
				if printErr := renderAudit(cmd, report); printErr != nil {
					return printErr
				}
				if strict && !report.InSync() {
					return ErrIndexDrift
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the index has drifted")
	return cmd
}

func withSync(cmd *cobra.Command, fn func(svc *syncer.Service) error) error {
	deps, err := common.Deps()
	if err != nil {
		return err
	}

	ctx, stop := common.SignalContext(cmd.Context())
	defer stop()
	cmd.SetContext(ctx)

	rt, err := bootstrap.NewRuntime(ctx, deps)
	if err != nil {
		return err
	}
	defer rt.Close()

	return fn(rt.Services.Sync)
}

func renderSummary(cmd *cobra.Command, summary domain.SyncSummary) error {
	if common.WantJSON() {
		return common.PrintJSON(cmd.OutOrStdout(), summary)
	}

	t := common.NewTable(cmd.OutOrStdout(), table.Row{"Scope", "Uploaded", "Deleted", "Skipped", "Failed"})
	t.AppendRow(table.Row{summary.Scope, summary.Uploaded, summary.Deleted, summary.Skipped, summary.Failed})
	t.Render()
	return nil
}

func renderAudit(cmd *cobra.Command, report *syncer.AuditReport) error {
	if common.WantJSON() {
		return common.PrintJSON(cmd.OutOrStdout(), map[string]any{
			"in_sync": report.InSync(),
			"report":  report,
		})
	}

	out := cmd.OutOrStdout()
	t := common.NewTable(out, table.Row{"Indexed", "Expected", "Orphaned", "Missing", "In Sync"})
	t.AppendRow(table.Row{report.IndexedCount, report.ExpectedCount, len(report.Orphaned), len(report.Missing), report.InSync()})
	t.Render()

	if len(report.Orphaned)+len(report.Missing) == 0 {
		return nil
	}
	refs := common.NewTable(out, table.Row{"Reference", "Problem"})
	for _, ref := range report.Orphaned {
		refs.AppendRow(table.Row{ref, "orphaned"})
	}
	for _, ref := range report.Missing {
		refs.AppendRow(table.Row{ref, "missing"})
	}
	refs.Render()
	return nil
}
