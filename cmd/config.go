package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tanq16/rawst/internal/config"
	"github.com/tanq16/rawst/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change persistent settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			output.Header("Configuration")
			output.Detail("config file", cfg.FilePath())
			output.Detail(config.KeyDownloadPath, cfg.DownloadPath)
			output.Detail(config.KeyCachePath, cfg.CachePath)
			output.Detail(config.KeyThreads, cfg.Threads)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: fmt.Sprintf("Change a setting (%s)", strings.Join(config.Keys(), ", ")),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			output.Success("Set %s = %s", args[0], args[1])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(output.Stdout, cfg.FilePath())
		},
	})
	return cmd
}
