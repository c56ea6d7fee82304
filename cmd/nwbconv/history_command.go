package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"nwbconv/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent conversion runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("run history is disabled (paths.history_db is empty)")
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return newPrinter(cmd).json(runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No conversions recorded")
				return nil
			}
			columns := []tableColumn{
				{Header: "ID"},
				{Header: "Started"},
				{Header: "Status"},
				{Header: "Output"},
				{Header: "Size", Align: alignRight},
				{Header: "Duration", Align: alignRight},
				{Header: "Error", MaxWidth: 60},
			}
			fmt.Fprintln(out, renderTable(columns, historyRows(runs)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func historyRows(runs []history.Run) [][]string {
	title := cases.Title(language.Und)
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		size := ""
		if run.SizeBytes > 0 {
			size = datasize.ByteSize(run.SizeBytes).HumanReadable()
		}
		duration := ""
		if d := run.Duration(); d > 0 {
			duration = d.Round(time.Millisecond).String()
		}
		output := run.OutputPath
		if output != "" {
			output = filepath.Base(output)
		}
		errText := run.ErrorMessage
		if run.FailureKind != "" {
			errText = run.FailureKind + ": " + errText
		}
		rows = append(rows, []string{
			shortID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			title.String(string(run.Status)),
			output,
			size,
			duration,
			errText,
		})
	}
	return rows
}

// shortID is enough of a run id to pass to "logs --run".
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
