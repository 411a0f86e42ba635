package pipeline

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/MeKo-Tech/bibwatch/internal/utils"
)

type detectJob struct {
	index int
	path  string
}

// DetectBatch runs DetectImage over paths on a pool of cfg.Workers
// goroutines. Images that fail are logged and absent from the result; an
// image where nothing was found maps to an empty slice. Keys are cleaned
// paths. DetectBatch never fails as a whole.
func (p *Pipeline) DetectBatch(ctx context.Context, paths []string) map[string][]int {
	p.inflight.Add(1)
	defer p.inflight.Done()

	out := make(map[string][]int, len(paths))
	if len(paths) == 0 {
		return out
	}

	p.progress.OnStart(len(paths))
	defer p.progress.OnComplete()

	workers := min(p.cfg.Workers, len(paths))
	jobs := make(chan detectJob)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				numbers, err := p.DetectImage(ctx, job.path)

				mu.Lock()
				done++
				current := done
				if err == nil {
					if numbers == nil {
						numbers = []int{}
					}
					out[filepath.Clean(job.path)] = numbers
				}
				mu.Unlock()

				if err != nil {
					p.logger.Error("image failed", "path", job.path, "error", err)
					p.progress.OnError(job.index, err)
				}
				p.progress.OnProgress(current, len(paths))
			}
		}()
	}

	for i, path := range paths {
		jobs <- detectJob{index: i, path: path}
	}
	close(jobs)
	wg.Wait()
	return out
}

// DetectDir runs DetectBatch over the supported images directly inside dir.
func (p *Pipeline) DetectDir(ctx context.Context, dir string) (map[string][]int, error) {
	paths, err := utils.ListImages(dir)
	if err != nil {
		return nil, err
	}
	return p.DetectBatch(ctx, paths), nil
}
