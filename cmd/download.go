package cmd

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tanq16/rawst/internal/engine"
	"github.com/tanq16/rawst/internal/utils"
)

var (
	outputPaths []string
	threads     int
)

func addDownloadFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&outputPaths, "output-file-path", "o", []string{}, "Save path for the input at the same position; repeatable")
	cmd.Flags().IntVarP(&threads, "threads", "t", 0, fmt.Sprintf("Connections per download, 1-%d (0 uses the configured default)", utils.MaxThreads))
	addNetworkFlags(cmd)
}

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [URL|FILE ...]",
		Short: "Download URLs, comma-separated URL lists, .txt URL files or .yaml batch files",
		Long: `Download one or more files. Each argument may be a URL, a comma-separated
list of URLs, a text file with one URL per line, or a YAML batch file:

  - link: https://example.com/a.iso
    op: isos/a.iso
  - link: https://example.com/b.tar.gz`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDownload,
	}
	addDownloadFlags(cmd)
	return cmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	log := utils.GetLogger("download")
	reqs, err := collectRequests(args, outputPaths)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		return fmt.Errorf("no URL provided")
	}
	t, err := effectiveThreads(threads)
	if err != nil {
		return err
	}
	eng, err := newEngine(t)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Debug().Int("downloads", len(reqs)).Int("threads", t).Int("workers", workers).Msg("starting downloads")
	return eng.RunAll(ctx, reqs, t, max(workers, 1))
}

func effectiveThreads(requested int) (int, error) {
	if requested == 0 {
		return cfg.Threads, nil
	}
	if requested < 1 || requested > utils.MaxThreads {
		return 0, fmt.Errorf("%w: threads must be between 1 and %d, got %d", engine.ErrInvalidThreadCount, utils.MaxThreads, requested)
	}
	return requested, nil
}

// splitProxyAuth moves credentials embedded in the proxy URL into the
// username and password unless those were given explicitly.
func splitProxyAuth(proxy, user, pass string) (string, string, string) {
	parsed, err := url.Parse(proxy)
	if proxy == "" || err != nil || parsed.User == nil || user != "" {
		return proxy, user, pass
	}
	user = parsed.User.Username()
	if p, set := parsed.User.Password(); set {
		pass = p
	}
	parsed.User = nil
	return parsed.String(), user, pass
}
