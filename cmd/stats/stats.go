// Package stats implements the command that prints the operational
// snapshot.
package stats

import (
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/common"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/database"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// Command returns the stats command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show item, URL, job and sync counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return common.WithStore(func(_ *bootstrap.CommandDeps, store *database.Store) error {
				s, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if common.WantJSON() {
					return common.PrintJSON(cmd.OutOrStdout(), s)
				}
				render(cmd, s)
				return nil
			})
		},
	}
}

var itemStatuses = []domain.SyncStatus{
	domain.SyncStatusNeverSynced,
	domain.SyncStatusSynced,
	domain.SyncStatusStale,
	domain.SyncStatusFailed,
}

func render(cmd *cobra.Command, s *domain.Stats) {
	out := cmd.OutOrStdout()

	header := table.Row{"Items"}
	for _, st := range itemStatuses {
		header = append(header, st)
	}
	header = append(header, "tombstoned", "total")
	items := common.NewTable(out, header)
	items.AppendRow(itemRow("records", s.Records))
	items.AppendRow(itemRow("general_content", s.Content))
	items.Render()

	urls := common.NewTable(out, table.Row{"URL Kind", "Status", "Count"})
	for _, kind := range sortedKeys(s.URLs) {
		byStatus := s.URLs[kind]
		for _, status := range sortedKeys(byStatus) {
			urls.AppendRow(table.Row{kind, status, byStatus[status]})
		}
	}
	urls.Render()

	jobs := common.NewTable(out, common.JobHeader)
	for _, jt := range domain.JobTypes {
		if job := s.LastJobs[jt]; job != nil {
			jobs.AppendRow(common.JobRow(job))
		}
	}
	jobs.Render()

	syncs := common.NewTable(out, table.Row{"Sync Scope", "Last Success"})
	for _, scope := range sortedKeys(s.LastSync) {
		syncs.AppendRow(table.Row{scope, common.FormatTime(s.LastSync[scope])})
	}
	syncs.Render()
}

func itemRow(label string, st domain.ItemStats) table.Row {
	row := table.Row{label}
	for _, status := range itemStatuses {
		row = append(row, st.BySyncStatus[status])
	}
	return append(row, st.Tombstoned, st.Total)
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
