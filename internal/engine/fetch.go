package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/tanq16/rawst/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Fetcher performs the network half of a task: it streams bytes either
// directly into the destination or into per-chunk cache artifacts.
type Fetcher struct {
	Client   utils.HTTPDoer
	CacheDir string
	log      zerolog.Logger
}

func NewFetcher(client utils.HTTPDoer, cacheDir string) *Fetcher {
	return &Fetcher{
		Client:   client,
		CacheDir: cacheDir,
		log:      utils.GetLogger("fetch"),
	}
}

// Fetch downloads everything the task's layout still lacks. Multi-chunk
// layouts run at most min(task.Threads, utils.MaxThreads) requests at a time;
// when one fails, in-flight requests finish and the first error is returned.
func (f *Fetcher) Fetch(ctx context.Context, task *Task) error {
	switch l := task.Layout.(type) {
	case NoChunks:
		return f.fetchWhole(ctx, task)
	case SingleChunk:
		return f.fetchSingle(ctx, task, l.Chunk)
	case MultipleChunks:
		return f.fetchMultiple(ctx, task, l.Chunks)
	default:
		return unknownLayout("fetch", l)
	}
}

func (f *Fetcher) fetchWhole(ctx context.Context, task *Task) error {
	if err := os.MkdirAll(filepath.Dir(task.Filename), 0755); err != nil {
		return fileError("fetch", err)
	}
	file, err := os.Create(task.Filename)
	if err != nil {
		return fileError("fetch", err)
	}
	defer file.Close()
	task.TotalDownloaded.Store(0)

	resp, err := f.get(ctx, task.Locator, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return StatusError("fetch", resp.StatusCode)
	}
	f.log.Debug().Str("url", task.Locator).Msg("streaming whole body")
	n, err := copyBody(file, resp.Body, func(n int64) { task.addProgress(n) })
	if err != nil {
		return err
	}
	if want := task.ContentLength(); want > 0 && n != want {
		return mismatchf("fetch", "received %d bytes, expected %d", n, want)
	}
	return nil
}

func (f *Fetcher) fetchSingle(ctx context.Context, task *Task, c *Chunk) error {
	if c.Complete() {
		f.log.Debug().Str("file", task.Filename).Msg("single chunk already complete")
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(task.Filename), 0755); err != nil {
		return fileError("fetch", err)
	}
	file, err := openChunkFile(task.Filename, c)
	if err != nil {
		return err
	}
	defer file.Close()
	return f.fetchRange(ctx, task, c, file)
}

func (f *Fetcher) fetchMultiple(ctx context.Context, task *Task, chunks []*Chunk) error {
	if err := os.MkdirAll(f.CacheDir, 0755); err != nil {
		return fileError("fetch", err)
	}
	var g errgroup.Group
	g.SetLimit(min(max(task.Threads, 1), utils.MaxThreads))
	var failed atomic.Bool
	for i, c := range chunks {
		if c.Complete() {
			f.log.Debug().Int("chunk", i).Msg("chunk already complete, skipping")
			continue
		}
		g.Go(func() error {
			if failed.Load() {
				return nil
			}
			if err := f.fetchChunk(ctx, task, i, c); err != nil {
				failed.Store(true)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (f *Fetcher) fetchChunk(ctx context.Context, task *Task, index int, c *Chunk) error {
	p, err := CachePath(f.CacheDir, task, index)
	if err != nil {
		return fileError("fetch", err)
	}
	file, err := openChunkFile(p, c)
	if err != nil {
		return err
	}
	defer file.Close()
	f.log.Debug().Int("chunk", index).Str("range", c.RangeHeader()).Str("artifact", p).Msg("fetching chunk")
	if err := f.fetchRange(ctx, task, c, file); err != nil {
		return fmt.Errorf("chunk %d: %w", index, err)
	}
	return nil
}

// fetchRange requests [c.Offset, c.End] and appends it to w.
func (f *Fetcher) fetchRange(ctx context.Context, task *Task, c *Chunk, w io.Writer) error {
	resp, err := f.get(ctx, task.Locator, c.RangeHeader())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusPartialContent:
		if start, ok := contentRangeStart(resp.Header.Get("Content-Range")); !ok || start != c.Offset {
			return mismatchf("fetch", "requested %s, server sent Content-Range %q", c.RangeHeader(), resp.Header.Get("Content-Range"))
		}
	case http.StatusOK:
		// the server ignored Range; only usable when the range is the whole resource
		if c.Offset != 0 || c.End != task.ContentLength()-1 {
			return mismatchf("fetch", "server ignored range %s", c.RangeHeader())
		}
	default:
		return StatusError("fetch", resp.StatusCode)
	}
	want := c.End - c.Offset + 1
	n, err := copyBody(w, resp.Body, func(n int64) {
		c.Downloaded.Add(n)
		task.addProgress(n)
	})
	if err != nil {
		return err
	}
	if c.Downloaded.Load() != c.Span() {
		return mismatchf("fetch", "range %s: received %d of %d bytes", c.RangeHeader(), n, want)
	}
	f.log.Debug().Str("range", c.RangeHeader()).Str("size", humanize.Bytes(uint64(n))).Msg("range complete")
	return nil
}

// contentRangeStart reads the first byte position of "bytes first-last/length".
func contentRangeStart(header string) (int64, bool) {
	var first, last int64
	var length string
	if _, err := fmt.Sscanf(header, "bytes %d-%d/%s", &first, &last, &length); err != nil {
		return 0, false
	}
	return first, first <= last
}

func (f *Fetcher) get(ctx context.Context, locator, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, newError(KindInvalidArgs, "fetch", err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	req.Header.Set("Connection", "keep-alive")
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, newError(KindUnreachable, "fetch", err)
	}
	return resp, nil
}

func openChunkFile(p string, c *Chunk) (*os.File, error) {
	flag := os.O_WRONLY | os.O_CREATE
	if c.resumed() {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}
	file, err := os.OpenFile(p, flag, 0644)
	if err != nil {
		return nil, fileError("fetch", err)
	}
	return file, nil
}

// copyBody streams r into w, reporting every written segment to onWrite.
func copyBody(w io.Writer, r io.Reader, onWrite func(int64)) (int64, error) {
	buffer := make([]byte, utils.DefaultBufferSize)
	var total int64
	for {
		bytesRead, err := r.Read(buffer)
		if bytesRead > 0 {
			written, writeErr := w.Write(buffer[:bytesRead])
			if written > 0 {
				total += int64(written)
				onWrite(int64(written))
			}
			if writeErr != nil {
				return total, fileError("fetch", writeErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, newError(KindUnreachable, "fetch", err)
		}
	}
}
