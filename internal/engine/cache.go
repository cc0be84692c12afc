package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/hashstructure/v2"
)

type cacheKey struct {
	Locator   string
	CreatedAt int64
}

// CacheKey identifies a task's artifacts; it only depends on values a
// history record restores, so a resumed task finds the same files.
func CacheKey(task *Task) (string, error) {
	h, err := hashstructure.Hash(cacheKey{
		Locator:   task.Locator,
		CreatedAt: task.CreatedAt.UnixNano(),
	}, hashstructure.FormatV2, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h), nil
}

// CachePrefix is the shared file name prefix of every artifact of task.
func CachePrefix(task *Task) (string, error) {
	key, err := CacheKey(task)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s.", filepath.Base(task.Filename), key), nil
}

func CachePath(cacheDir string, task *Task, index int) (string, error) {
	prefix, err := CachePrefix(task)
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, fmt.Sprintf("%spart-%d.tmp", prefix, index)), nil
}

// RemoveCache deletes the artifacts a multi-chunk task owns. Missing files are fine.
func RemoveCache(cacheDir string, task *Task) error {
	l, ok := task.Layout.(MultipleChunks)
	if !ok {
		return nil
	}
	var errs []error
	for i := range l.Chunks {
		p, err := CachePath(cacheDir, task, i)
		if err != nil {
			return fileError("remove cache", err)
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fileError("remove cache", err)
	}
	return nil
}

func artifactSize(p string) (int64, error) {
	info, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
