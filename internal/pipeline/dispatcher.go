package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"goplanit/internal/adapters/observability"
	"goplanit/internal/domain"
)

// Dispatcher consumes preference-created triggers and runs pipelines
// with a system-wide concurrency ceiling, re-attempting a failed run up
// to the configured attempt count. Triggers beyond the ceiling queue.
type Dispatcher struct {
	runner   *Runner
	sem      *semaphore.Weighted
	queue    chan domain.PreferenceCreatedEvent
	attempts int

	wg   sync.WaitGroup
	once sync.Once
}

func NewDispatcher(runner *Runner, workers, attempts int) *Dispatcher {
	if workers <= 0 {
		workers = 10
	}
	if attempts <= 0 {
		attempts = 3
	}
	return &Dispatcher{
		runner:   runner,
		sem:      semaphore.NewWeighted(int64(workers)),
		queue:    make(chan domain.PreferenceCreatedEvent, 1024),
		attempts: attempts,
	}
}

// Publish enqueues a trigger. Called synchronously by intake before the
// HTTP response is written.
func (d *Dispatcher) Publish(ev domain.PreferenceCreatedEvent) {
	d.queue <- ev
}

// Start consumes the queue until ctx is canceled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-d.queue:
				if err := d.sem.Acquire(ctx, 1); err != nil {
					return
				}
				d.wg.Add(1)
				go func(ev domain.PreferenceCreatedEvent) {
					defer d.wg.Done()
					defer d.sem.Release(1)
					d.runWithRetries(ctx, ev)
				}(ev)
			}
		}
	}()
}

// Wait blocks until in-flight runs drain after Start's context ends.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) runWithRetries(ctx context.Context, ev domain.PreferenceCreatedEvent) {
	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if err = d.runner.Run(ctx, ev); err == nil {
			observability.ObservePipelineRun("success")
			log.Info().Str("preference_id", ev.PreferenceID).Int("attempt", attempt).Msg("pipeline run completed")
			return
		}
		log.Warn().
			Str("preference_id", ev.PreferenceID).
			Int("attempt", attempt).
			Int("max_attempts", d.attempts).
			Err(err).
			Msg("pipeline run failed")
		if attempt < d.attempts && !sleepCtx(ctx, retryDelay(attempt)) {
			break
		}
	}
	observability.ObservePipelineRun("failure")
	log.Error().Str("preference_id", ev.PreferenceID).Err(err).Msg("pipeline run exhausted retries")
}

// retryDelay doubles per attempt: 1s, 2s, 4s...
var retryDelay = func(attempt int) time.Duration {
	return time.Duration(1<<(attempt-1)) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
