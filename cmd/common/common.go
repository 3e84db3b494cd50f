// Package common holds helpers shared by the CLI commands.
package common

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// Viper keys bound to the root command's persistent flags.
const (
	KeyConfig = "config"
	KeyDebug  = "debug"
	KeyOutput = "output"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// Version is set by main at startup.
var Version = "dev"

// Options returns the bootstrap options from the bound flags.
func Options() bootstrap.Options {
	return bootstrap.Options{
		ConfigPath: viper.GetString(KeyConfig),
		Debug:      viper.GetBool(KeyDebug),
		Version:    Version,
	}
}

// Deps loads the config and logger for a command.
func Deps() (*bootstrap.CommandDeps, error) {
	return bootstrap.NewCommandDeps(Options())
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// WantJSON reports whether --output json was requested.
func WantJSON() bool {
	return viper.GetString(KeyOutput) == OutputJSON
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// NewTable creates a table writer mirrored to w.
func NewTable(w io.Writer, header table.Row) table.Writer {
	if w == nil {
		w = os.Stdout
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

// JobHeader is the header row for job tables.
var JobHeader = table.Row{"ID", "Type", "Status", "Trigger", "Started", "Duration",
	"Discovered", "Fetched", "Created", "Updated", "Unchanged", "Failed", "Error"}

// JobRow renders one job as a table row.
func JobRow(job *domain.IngestionJob) table.Row {
	errMsg := ""
	if job.ErrorMessage != nil {
		errMsg = *job.ErrorMessage
	}
	return table.Row{
		job.ID,
		job.JobType,
		job.Status,
		job.Trigger,
		FormatTime(&job.StartedAt),
		job.Duration().Truncate(time.Second),
		job.Discovered,
		job.Fetched,
		job.Created,
		job.Updated,
		job.Unchanged,
		job.Failed,
		errMsg,
	}
}

// FormatTime renders t in local time, or "-" when unset.
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
