package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tanq16/rawst/internal/engine"
	"github.com/tanq16/rawst/internal/history"
	"github.com/tanq16/rawst/internal/utils"
)

func newResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [ID ...|auto]",
		Short: "Resume interrupted downloads by history ID, or the latest one with auto",
		Long: `Resume one or more pending downloads. Only the bytes missing from the
destination or its chunk artifacts are requested again. With no argument,
or with "auto", the most recent pending download is resumed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args
			if len(ids) == 0 {
				ids = []string{engine.AutoResume}
			}
			eng, err := newEngine(resumeThreads(ids))
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			utils.GetLogger("resume").Debug().Strs("ids", ids).Int("workers", workers).Msg("resuming downloads")
			return eng.ResumeAll(ctx, ids, max(workers, 1))
		},
	}
	addNetworkFlags(cmd)
	return cmd
}

// resumeThreads is the largest thread count among the records behind ids.
// Unknown ids are left for the engine to report.
func resumeThreads(ids []string) int {
	n := 1
	for _, id := range ids {
		var (
			rec history.Record
			err error
		)
		if id == engine.AutoResume {
			rec, err = store.RecentPending()
		} else {
			rec, err = store.Get(id)
		}
		if err == nil {
			n = max(n, rec.ThreadsUsed)
		}
	}
	return n
}
