package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/rawst/internal/engine"
	"github.com/tanq16/rawst/internal/output"
	"github.com/tanq16/rawst/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [ID]",
		Short: "Remove chunk artifacts from the cache directory",
		Long: `Remove chunk artifacts left behind by unfinished downloads. With an ID only
that download's artifacts are removed. Cleaned downloads can still be resumed
but start their chunks over.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				rec, err := store.Get(args[0])
				if err != nil {
					return err
				}
				prefix, err = engine.CachePrefix(&engine.Task{
					Locator:   rec.URL,
					Filename:  rec.Path(),
					CreatedAt: rec.Timestamp,
				})
				if err != nil {
					return err
				}
			}
			removed, err := utils.CleanCache(cfg.CachePath, prefix)
			if err != nil {
				return err
			}
			utils.GetLogger("clean").Debug().Str("cache", cfg.CachePath).Str("prefix", prefix).Int("removed", removed).Msg("cache cleaned")
			output.Success("Removed %d chunk artifact(s) from %s", removed, cfg.CachePath)
			return nil
		},
	}
}
