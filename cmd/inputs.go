package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tanq16/rawst/internal/engine"
	"github.com/tanq16/rawst/internal/utils"
	"gopkg.in/yaml.v3"
)

type BatchEntry struct {
	OutputPath string `yaml:"op,omitempty"`
	Link       string `yaml:"link"`
}

// collectRequests expands every argument into download requests and pairs
// the i-th output path with the i-th request. Batch entries with their own
// op keep it.
func collectRequests(args, outputs []string) ([]engine.Request, error) {
	var reqs []engine.Request
	for _, arg := range args {
		expanded, err := expandInput(arg)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, expanded...)
	}
	if len(outputs) > len(reqs) {
		return nil, fmt.Errorf("%w: %d output paths for %d downloads", engine.ErrInvalidArgs, len(outputs), len(reqs))
	}
	for i, op := range outputs {
		if op != "" {
			reqs[i].SaveAs = op
		}
	}
	return reqs, nil
}

func expandInput(arg string) ([]engine.Request, error) {
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".yaml", ".yml":
		if isFile(arg) {
			return readBatchFile(arg)
		}
	case ".txt":
		if isFile(arg) {
			return readURLFile(arg)
		}
	}
	var reqs []engine.Request
	for _, part := range strings.Split(arg, ",") {
		if part = strings.TrimSpace(part); part != "" {
			reqs = append(reqs, engine.Request{Locator: part})
		}
	}
	return reqs, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// readURLFile reads one URL per line, skipping blanks and # comments.
func readURLFile(path string) ([]engine.Request, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error reading URL list: %w", err)
	}
	defer file.Close()
	var reqs []engine.Request
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		reqs = append(reqs, engine.Request{Locator: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading URL list %s: %w", path, err)
	}
	return reqs, nil
}

func readBatchFile(path string) ([]engine.Request, error) {
	log := utils.GetLogger("inputs")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %w", err)
	}
	var entries []BatchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error parsing YAML file %s: %w", path, err)
	}
	var reqs []engine.Request
	for i, entry := range entries {
		if strings.TrimSpace(entry.Link) == "" {
			log.Warn().Int("entry", i).Str("file", path).Msg("empty link in batch file, skipping")
			continue
		}
		reqs = append(reqs, engine.Request{Locator: strings.TrimSpace(entry.Link), SaveAs: entry.OutputPath})
	}
	return reqs, nil
}
