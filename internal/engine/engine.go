package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/tanq16/rawst/internal/config"
	"github.com/tanq16/rawst/internal/history"
	"github.com/tanq16/rawst/internal/scheduler"
	"github.com/tanq16/rawst/internal/utils"
)

// AutoResume selects the most recent Pending record.
const AutoResume = "auto"

// Engine ties probing, fetching, merging and the history store together.
type Engine struct {
	cfg     *config.Config
	client  utils.HTTPDoer
	store   *history.Store
	fetcher *Fetcher
	planner *Planner
	log     zerolog.Logger

	// destinations handed out by CreateTask whose task has not finished
	mu       sync.Mutex
	reserved map[string]struct{}
}

func New(cfg *config.Config, client utils.HTTPDoer, store *history.Store) *Engine {
	return &Engine{
		cfg:     cfg,
		client:  client,
		store:   store,
		fetcher: NewFetcher(client, cfg.CachePath),
		planner:  NewPlanner(client, cfg.CachePath),
		log:      utils.GetLogger("engine"),
		reserved: make(map[string]struct{}),
	}
}

// CreateTask probes locator and lays out a fresh task. saveAs overrides the
// file name; a relative saveAs is placed under the download directory and
// one ending in a separator names a directory. When the server cannot
// serve ranges, or the file is too small for the requested threads, the
// thread count is lowered with a warning.
func (e *Engine) CreateTask(ctx context.Context, locator, saveAs string, threads int) (*Task, error) {
	if threads < 1 || threads > utils.MaxThreads {
		return nil, newError(KindInvalidThreadCount, "create", fmt.Errorf("%d threads requested, allowed 1-%d", threads, utils.MaxThreads))
	}
	u, err := url.Parse(locator)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, newError(KindInvalidArgs, "create", fmt.Errorf("invalid url %q", locator))
	}
	headers, err := Probe(ctx, e.client, locator)
	if err != nil {
		return nil, err
	}

	task := &Task{
		ID:        history.NewID(),
		Locator:   locator,
		Headers:   headers,
		CreatedAt: time.Now(),
	}
	task.Filename, err = e.reserve(e.destination(headers, locator, saveAs))
	if err != nil {
		return nil, err
	}

	size := task.ContentLength()
	partial := task.AllowsPartialContent()
	if threads > 1 && (!partial || size == 0) {
		e.log.Warn().Str("url", locator).Bool("ranges", partial).Int64("size", size).Msg("server does not support ranged downloads, using 1 thread")
		threads = 1
	}
	if threads > 1 {
		if p := int(MaxParallelism(size, int64(threads))); p < threads {
			e.log.Warn().Int("requested", threads).Int("using", p).Int64("size", size).Msg("file too small for requested threads")
			threads = p
		}
	}
	task.Threads = threads

	switch {
	case threads > 1:
		ranges, err := Partition(size, int64(threads))
		if err != nil {
			return nil, newError(KindInvalidArgs, "create", err)
		}
		task.Layout = layoutFromRanges(ranges)
	case partial && size > 0:
		task.Layout = SingleChunk{Chunk: NewChunk(0, size-1)}
	default:
		task.Layout = NoChunks{}
	}
	e.log.Debug().Str("id", task.ID).Str("file", task.Filename).Str("size", humanize.Bytes(uint64(size))).
		Str("layout", task.Layout.String()).Msg("task created")
	return task, nil
}

func (e *Engine) destination(headers http.Header, locator, saveAs string) string {
	name := FilenameFromHeader(headers)
	if name == "" {
		name = FilenameFromURL(locator)
	}
	dest := filepath.Join(e.cfg.DownloadPath, name)
	if saveAs != "" {
		p := saveAs
		if !filepath.IsAbs(p) {
			p = filepath.Join(e.cfg.DownloadPath, p)
		}
		if strings.HasSuffix(saveAs, "/") || strings.HasSuffix(saveAs, string(filepath.Separator)) || isDir(p) {
			dest = filepath.Join(p, name)
		} else {
			dest = filepath.Clean(p)
		}
	}
	return dest
}

// reserve claims dest for a new task, moving to a renewed sibling when the
// file exists, another task of this engine holds it, or a Pending record
// will write it. Multi-chunk tasks create their destination only at merge,
// so existence alone cannot tell.
func (e *Engine) reserve(dest string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	records, err := e.store.List()
	if err != nil {
		return "", fileError("history", err)
	}
	claimed := make(map[string]bool, len(e.reserved)+len(records))
	for p := range e.reserved {
		claimed[p] = true
	}
	for _, rec := range records {
		if !rec.Completed() {
			claimed[filepath.Clean(rec.Path())] = true
		}
	}
	inUse := func(p string) bool { return claimed[filepath.Clean(p)] }

	dest = filepath.Clean(dest)
	if _, err := os.Stat(dest); err == nil || inUse(dest) {
		renewed := utils.RenewOutputPath(dest, inUse)
		e.log.Info().Str("taken", dest).Str("using", renewed).Msg("destination in use, renaming")
		dest = renewed
	}
	e.reserved[dest] = struct{}{}
	return dest, nil
}

func (e *Engine) release(dest string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.reserved, dest)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// Run records task as Pending, downloads it and marks it Completed. On
// failure or cancellation the bytes on disk are written to the record so
// the task can be resumed.
func (e *Engine) Run(ctx context.Context, task *Task) error {
	rec := history.Record{
		ID:           task.ID,
		URL:          task.Locator,
		FileName:     filepath.Base(task.Filename),
		FileSize:     task.ContentLength(),
		FileLocation: filepath.Dir(task.Filename),
		ThreadsUsed:  task.Threads,
		Timestamp:    task.CreatedAt,
		Status:       history.StatusPending,
	}
	if _, err := e.store.Add(rec); err != nil {
		return fileError("history", err)
	}
	return e.execute(ctx, task)
}

// PlanResume loads the record for id, or the most recent Pending record
// for AutoResume, and plans its continuation.
func (e *Engine) PlanResume(ctx context.Context, id string) (*Task, error) {
	var (
		rec history.Record
		err error
	)
	if id == AutoResume {
		rec, err = e.store.RecentPending()
	} else {
		rec, err = e.store.Get(id)
	}
	if err != nil {
		return nil, newError(KindInvalidArgs, "resume", err)
	}
	return e.planner.Plan(ctx, rec)
}

// Continue downloads what a planned task still lacks and completes its record.
func (e *Engine) Continue(ctx context.Context, task *Task) error {
	return e.execute(ctx, task)
}

func (e *Engine) Resume(ctx context.Context, id string) (*Task, error) {
	task, err := e.PlanResume(ctx, id)
	if err != nil {
		return nil, err
	}
	return task, e.Continue(ctx, task)
}

func (e *Engine) execute(ctx context.Context, task *Task) error {
	defer e.release(task.Filename)
	start := time.Now()
	startBytes := task.TotalDownloaded.Load()
	err := e.fetcher.Fetch(ctx, task)
	if err == nil {
		err = Merge(e.cfg.CachePath, task)
	}
	if err != nil {
		downloaded := task.TotalDownloaded.Load()
		if uerr := e.store.UpdateProgress(task.ID, downloaded); uerr != nil {
			e.log.Error().Err(uerr).Str("id", task.ID).Msg("could not save progress")
		}
		if ctx.Err() != nil {
			e.log.Warn().Str("id", task.ID).Str("downloaded", humanize.Bytes(uint64(downloaded))).Msg("download interrupted")
			return fmt.Errorf("download of %s interrupted after %s: %w", filepath.Base(task.Filename), humanize.Bytes(uint64(downloaded)), ctx.Err())
		}
		e.log.Error().Err(err).Str("id", task.ID).Msg("download failed")
		return err
	}
	if err := e.store.MarkCompleted(task.ID); err != nil {
		return fileError("history", err)
	}
	elapsed := time.Since(start)
	fetched := task.TotalDownloaded.Load() - startBytes
	e.log.Info().Str("id", task.ID).Str("file", task.Filename).Str("fetched", humanize.Bytes(uint64(fetched))).
		Dur("elapsed", elapsed).Msg("download complete")
	return nil
}

// Request pairs a locator with an optional save path for RunAll.
type Request struct {
	Locator string
	SaveAs  string
}

// RunAll creates and runs one task per request with up to workers running
// at once. Each task uses threads connections.
func (e *Engine) RunAll(ctx context.Context, reqs []Request, threads, workers int) error {
	jobs := make([]scheduler.Job, len(reqs))
	for i, r := range reqs {
		jobs[i] = scheduler.Job{
			Name: jobName(r),
			Run: func(ctx context.Context, report func(int64, int64)) error {
				task, err := e.CreateTask(ctx, r.Locator, r.SaveAs, threads)
				if err != nil {
					return err
				}
				task.ProgressFunc = report
				return e.Run(ctx, task)
			},
		}
	}
	return scheduler.Run(ctx, jobs, workers)
}

// ResumeAll resumes each id with up to workers running at once.
func (e *Engine) ResumeAll(ctx context.Context, ids []string, workers int) error {
	jobs := make([]scheduler.Job, len(ids))
	for i, id := range ids {
		jobs[i] = scheduler.Job{
			Name: id,
			Run: func(ctx context.Context, report func(int64, int64)) error {
				task, err := e.PlanResume(ctx, id)
				if err != nil {
					return err
				}
				task.ProgressFunc = report
				report(task.TotalDownloaded.Load(), task.ContentLength())
				return e.Continue(ctx, task)
			},
		}
	}
	return scheduler.Run(ctx, jobs, workers)
}

func jobName(r Request) string {
	if r.SaveAs != "" {
		return filepath.Base(r.SaveAs)
	}
	if u, err := url.Parse(r.Locator); err == nil && u.Path != "" && u.Path != "/" {
		return filepath.Base(u.Path)
	}
	return r.Locator
}

// IsInterrupted reports whether err came from a cancelled context.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
