package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tanq16/rawst/internal/output"
	"github.com/tanq16/rawst/internal/utils"
)

// Job is one unit of work shown as a line in the output manager.
type Job struct {
	Name string
	// Run performs the job; report may be called concurrently with progress.
	Run func(ctx context.Context, report func(downloaded, total int64)) error
}

// Run executes jobs on numWorkers workers and waits for all of them. Jobs
// still queued when ctx is cancelled are reported as failed without running.
// The returned error joins every job failure.
func Run(ctx context.Context, jobs []Job, numWorkers int) error {
	log := utils.GetLogger("scheduler")
	outputMgr := output.NewManager()
	outputMgr.StartDisplay()
	defer outputMgr.StopDisplay()

	ids := make([]int, len(jobs))
	for i, job := range jobs {
		ids[i] = outputMgr.Register(job.Name)
	}
	jobCh := make(chan int, len(jobs))
	for i := range jobs {
		jobCh <- i
	}
	close(jobCh)

	numWorkers = max(1, min(numWorkers, len(jobs)))
	log.Debug().Int("jobs", len(jobs)).Int("workers", numWorkers).Msg("starting workers")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobCh {
				if err := processJob(ctx, jobs[i], ids[i], outputMgr); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("%s: %w", jobs[i].Name, err))
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func processJob(ctx context.Context, job Job, id int, outputMgr *output.Manager) error {
	if err := ctx.Err(); err != nil {
		outputMgr.ReportError(id, err)
		return err
	}
	outputMgr.Start(id, fmt.Sprintf("Downloading %s", job.Name))
	err := job.Run(ctx, func(downloaded, total int64) {
		outputMgr.Progress(id, downloaded, total)
	})
	if err != nil {
		outputMgr.ReportError(id, err)
		return err
	}
	outputMgr.Complete(id, fmt.Sprintf("Completed %s", job.Name))
	return nil
}
