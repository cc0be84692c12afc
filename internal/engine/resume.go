package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/tanq16/rawst/internal/history"
	"github.com/tanq16/rawst/internal/utils"
)

// Probe issues a HEAD request and returns the response headers.
func Probe(ctx context.Context, client utils.HTTPDoer, locator string) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, locator, nil)
	if err != nil {
		return nil, newError(KindInvalidArgs, "probe", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, newError(KindUnreachable, "probe", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, StatusError("probe", resp.StatusCode)
	}
	return resp.Header, nil
}

// Planner rebuilds a task from a Pending record and the bytes already on disk.
type Planner struct {
	Client   utils.HTTPDoer
	CacheDir string
	log      zerolog.Logger
}

func NewPlanner(client utils.HTTPDoer, cacheDir string) *Planner {
	return &Planner{Client: client, CacheDir: cacheDir, log: utils.GetLogger("resume")}
}

// Plan returns a task whose chunks start where the previous attempt
// stopped. Completed records yield ErrAlreadyDownloaded without touching
// the network.
func (p *Planner) Plan(ctx context.Context, rec history.Record) (*Task, error) {
	if rec.Completed() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyDownloaded, rec.Path())
	}
	if rec.ThreadsUsed < 1 || rec.ThreadsUsed > utils.MaxThreads {
		return nil, newError(KindInvalidThreadCount, "resume", fmt.Errorf("record %s uses %d threads", rec.ID, rec.ThreadsUsed))
	}
	headers, err := Probe(ctx, p.Client, rec.URL)
	if err != nil {
		return nil, err
	}
	size := ContentLength(headers)
	if size != rec.FileSize {
		return nil, mismatchf("resume", "server reports %d bytes, record has %d", size, rec.FileSize)
	}
	partial := AllowsPartialContent(headers)

	task := &Task{
		ID:        rec.ID,
		Locator:   rec.URL,
		Filename:  rec.Path(),
		Threads:   rec.ThreadsUsed,
		Headers:   headers,
		CreatedAt: rec.Timestamp,
	}
	switch {
	case rec.ThreadsUsed > 1:
		if !partial {
			return nil, mismatchf("resume", "server no longer accepts ranges for a %d-thread download", rec.ThreadsUsed)
		}
		ranges, err := Partition(size, int64(rec.ThreadsUsed))
		if err != nil {
			return nil, newError(KindMismatch, "resume", err)
		}
		task.Layout = layoutFromRanges(ranges)
	case partial && size > 0:
		task.Layout = SingleChunk{Chunk: NewChunk(0, size-1)}
	default:
		task.Layout = NoChunks{}
	}

	var measured int64
	switch l := task.Layout.(type) {
	case NoChunks:
		p.log.Debug().Str("id", rec.ID).Msg("no range support, restarting from zero")
	case SingleChunk:
		n, err := p.restore(l.Chunk, task.Filename)
		if err != nil {
			return nil, err
		}
		measured = n
	case MultipleChunks:
		for i, c := range l.Chunks {
			path, err := CachePath(p.CacheDir, task, i)
			if err != nil {
				return nil, fileError("resume", err)
			}
			n, err := p.restore(c, path)
			if err != nil {
				return nil, err
			}
			measured += n
		}
	default:
		return nil, unknownLayout("resume", l)
	}
	task.TotalDownloaded.Store(measured)
	p.log.Info().Str("id", rec.ID).Str("layout", task.Layout.String()).Int64("on_disk", measured).Msg("resume planned")
	return task, nil
}

// restore advances c past the bytes already stored in path. An oversized
// file cannot belong to c and is removed so the chunk starts over.
func (p *Planner) restore(c *Chunk, path string) (int64, error) {
	n, err := artifactSize(path)
	if err != nil {
		return 0, fileError("resume", err)
	}
	switch {
	case n == 0:
	case n < c.Span():
		c.Offset = c.Start + n
		c.Downloaded.Store(n)
	case n == c.Span():
		c.Downloaded.Store(n)
	default:
		p.log.Warn().Str("file", path).Int64("size", n).Int64("span", c.Span()).Msg("artifact larger than its chunk, restarting chunk")
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, fileError("resume", err)
		}
		n = 0
	}
	return n, nil
}
