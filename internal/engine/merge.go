package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tanq16/rawst/internal/utils"
)

// Merge concatenates a multi-chunk task's artifacts in chunk order into the
// destination and removes them. Other layouts already wrote the destination
// while fetching, so there is nothing to do.
func Merge(cacheDir string, task *Task) error {
	switch l := task.Layout.(type) {
	case NoChunks, SingleChunk:
		return nil
	case MultipleChunks:
		return mergeChunks(cacheDir, task, l.Chunks)
	default:
		return unknownLayout("merge", l)
	}
}

func mergeChunks(cacheDir string, task *Task, chunks []*Chunk) error {
	log := utils.GetLogger("merge")
	paths := make([]string, len(chunks))
	for i, c := range chunks {
		if !c.Complete() {
			return mismatchf("merge", "chunk %d has %d of %d bytes", i, c.Downloaded.Load(), c.Span())
		}
		p, err := CachePath(cacheDir, task, i)
		if err != nil {
			return fileError("merge", err)
		}
		info, err := os.Stat(p)
		if err != nil {
			return fileError("merge", err)
		}
		if info.Size() != c.Span() {
			return mismatchf("merge", "artifact %s holds %d bytes, expected %d", filepath.Base(p), info.Size(), c.Span())
		}
		paths[i] = p
	}

	if err := os.MkdirAll(filepath.Dir(task.Filename), 0755); err != nil {
		return fileError("merge", err)
	}
	dest, err := os.Create(task.Filename)
	if err != nil {
		return fileError("merge", err)
	}
	defer dest.Close()

	log.Debug().Int("count", len(paths)).Str("file", task.Filename).Msg("assembling chunks in order")
	var totalWritten int64
	for _, p := range paths {
		written, err := appendFile(dest, p)
		if err != nil {
			return err
		}
		totalWritten += written
	}
	if want := task.ContentLength(); want > 0 && totalWritten != want {
		return mismatchf("merge", "assembled %d bytes, expected %d", totalWritten, want)
	}
	if err := dest.Sync(); err != nil {
		return fileError("merge", err)
	}
	if err := RemoveCache(cacheDir, task); err != nil {
		log.Warn().Err(err).Str("file", task.Filename).Msg("could not remove chunk artifacts")
	}
	return nil
}

func appendFile(dest io.Writer, p string) (int64, error) {
	src, err := os.Open(p)
	if err != nil {
		return 0, fileError("merge", err)
	}
	defer src.Close()
	written, err := io.Copy(dest, src)
	if err != nil {
		return written, fileError("merge", fmt.Errorf("copying %s: %w", filepath.Base(p), err))
	}
	return written, nil
}
