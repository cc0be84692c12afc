package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

// RenewOutputPath returns the first "name-(n).ext" sibling that does not
// exist yet and that inUse, when set, does not claim.
func RenewOutputPath(outputPath string, inUse func(string) bool) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	index := 1
	for {
		outputPath = filepath.Join(dir, fmt.Sprintf("%s-(%d)%s", name, index, ext))
		_, err := os.Stat(outputPath)
		if os.IsNotExist(err) && (inUse == nil || !inUse(outputPath)) {
			return outputPath
		}
		index++
	}
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

// ReadHeadersFile loads a JSON object of header names to values.
func ReadHeadersFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading headers file: %w", err)
	}
	headers := make(map[string]string)
	if err := json.Unmarshal(data, &headers); err != nil {
		return nil, fmt.Errorf("error parsing headers file %s: %w", path, err)
	}
	return headers, nil
}

// MergeHeaders overlays the later maps onto the earlier ones.
func MergeHeaders(sets ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, set := range sets {
		for k, v := range set {
			result[k] = v
		}
	}
	return result
}

// CleanCache removes cache artifacts whose names start with prefix, or all
// of them when prefix is empty. The directory itself goes away once empty.
func CleanCache(cacheDir, prefix string) (int, error) {
	files, err := os.ReadDir(cacheDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".tmp") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(file.Name(), prefix) {
			continue
		}
		if err := os.Remove(filepath.Join(cacheDir, file.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	remainingFiles, err := os.ReadDir(cacheDir)
	if err != nil {
		return removed, err
	}
	if len(remainingFiles) == 0 {
		if err := os.Remove(cacheDir); err != nil {
			return removed, err
		}
	}
	return removed, nil
}
