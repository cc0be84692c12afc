package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/tanq16/rawst/internal/history"
	"github.com/tanq16/rawst/internal/output"
)

func newHistoryCmd() *cobra.Command {
	var show, clearAll bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the download history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearAll {
				if err := store.Clear(); err != nil {
					return err
				}
				output.Success("History cleared")
				return nil
			}
			records, err := store.List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				output.Info("No downloads recorded yet")
				return nil
			}
			printHistory(output.Stdout, records)
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", true, "List every download with its status")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Remove every history record")
	cmd.MarkFlagsMutuallyExclusive("show", "clear")
	return cmd
}

func printHistory(w io.Writer, records []history.Record) {
	for _, rec := range records {
		status := output.FSuccess(string(rec.Status))
		progress := humanize.Bytes(uint64(max(rec.FileSize, 0)))
		if !rec.Completed() {
			status = output.FWarning(string(rec.Status))
			progress = fmt.Sprintf("%s / %s", humanize.Bytes(uint64(rec.DownloadedBytes)), sizeOrUnknown(rec.FileSize))
		}
		fmt.Fprintf(w, "%s  %s  %s\n", output.FDebug(rec.ID), status, rec.Path())
		fmt.Fprintf(w, "    %s\n", strings.Join([]string{
			rec.URL,
			progress,
			fmt.Sprintf("%d threads", rec.ThreadsUsed),
			humanize.Time(rec.Timestamp),
		}, "  "))
	}
}

func sizeOrUnknown(n int64) string {
	if n <= 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(n))
}
