package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yungbote/vocabdrill-backend/internal/platform/httpx"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

// Job is one kind of bulk enrichment the runner can drive.
type Job[T any] interface {
	Name() string
	// Fetch returns up to limit unprocessed items; empty means the backlog
	// is drained.
	Fetch(ctx context.Context, limit int) ([]T, error)
	// Process handles one sub-chunk and reports how many items it completed.
	// A non-nil error with zero completions counts as a failed chunk.
	Process(ctx context.Context, chunk []T) (int, error)
}

type Options struct {
	Tier    Tier
	Breaker BreakerConfig
	// Continuous keeps polling after the backlog drains and sleeps through
	// breaker trips. Otherwise the run ends at the first empty fetch and any
	// breaker trip aborts it.
	Continuous bool
	// MaxBatches stops the run after this many batches; 0 means no limit.
	MaxBatches int
}

type Stats struct {
	Batches   int `json:"batches"`
	Chunks    int `json:"chunks"`
	Fetched   int `json:"fetched"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Trips     int `json:"trips"`
}

// TripError ends a non-continuous run when the breaker opens.
type TripError struct {
	Level    Level
	Cooldown time.Duration
	Err      error
}

func (e *TripError) Error() string {
	return fmt.Sprintf("circuit breaker %s (cooldown %s): %v", e.Level, e.Cooldown, e.Err)
}

func (e *TripError) Unwrap() error { return e.Err }

var ErrTotalFailure = errors.New("too many consecutive failed batches")

type Runner[T any] struct {
	log     *logger.Logger
	job     Job[T]
	opts    Options
	breaker *Breaker
	limiter *rate.Limiter
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewRunner[T any](baseLog *logger.Logger, job Job[T], opts Options) *Runner[T] {
	opts.Tier = opts.Tier.normalized()
	limit := rate.Inf
	if opts.Tier.RequestsPerHour > 0 {
		limit = rate.Every(time.Hour / time.Duration(opts.Tier.RequestsPerHour))
	}
	return &Runner[T]{
		log:     baseLog.With("component", "ETLRunner", "job", job.Name(), "tier", opts.Tier.Name),
		job:     job,
		opts:    opts,
		breaker: NewBreaker(opts.Breaker),
		limiter: rate.NewLimiter(limit, opts.Tier.Parallelism),
		now:     func() time.Time { return time.Now().UTC() },
		sleep:   httpx.Sleep,
	}
}

// Run loops FETCH → PROCESS → AGGREGATE → CIRCUIT-CHECK → SLEEP until the
// backlog drains (non-continuous), ctx ends, or the breaker aborts the run.
func (r *Runner[T]) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	tier := r.opts.Tier
	r.log.Info("ETL run starting", "continuous", r.opts.Continuous, "batch_size", tier.BatchSize, "parallelism", tier.Parallelism)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if r.opts.MaxBatches > 0 && stats.Batches >= r.opts.MaxBatches {
			return stats, nil
		}

		items, err := r.job.Fetch(ctx, tier.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("fetch: %w", err)
		}
		if len(items) == 0 {
			if !r.opts.Continuous {
				r.log.Info("ETL backlog drained", "succeeded", stats.Succeeded, "failed", stats.Failed)
				return stats, nil
			}
			if err := r.sleep(ctx, tier.Interval); err != nil {
				return stats, err
			}
			continue
		}
		stats.Batches++
		stats.Fetched += len(items)

		out := r.processBatch(ctx, items)
		stats.Chunks += out.chunks
		stats.Succeeded += out.succeeded
		stats.Failed += len(items) - out.succeeded

		pause, err := r.circuitCheck(out, &stats)
		if err != nil {
			return stats, err
		}
		if pause <= 0 {
			pause = tier.Interval
		}
		if err := r.sleep(ctx, pause); err != nil {
			return stats, err
		}
	}
}

type batchOutcome struct {
	chunks    int
	succeeded int
	level     Level
	lastErr   error
}

func (r *Runner[T]) processBatch(ctx context.Context, items []T) batchOutcome {
	chunks := split(items, r.opts.Tier.ChunkSize)
	var (
		mu  sync.Mutex
		out = batchOutcome{chunks: len(chunks)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Tier.Parallelism)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := r.limiter.Wait(gctx); err != nil {
				return nil
			}
			n, err := r.job.Process(gctx, chunk)
			mu.Lock()
			defer mu.Unlock()
			out.succeeded += n
			if err != nil {
				r.log.Warn("ETL chunk failed", "chunk", i, "size", len(chunk), "completed", n, "error", err)
				out.lastErr = err
				if l := Classify(err); l > out.level {
					out.level = l
				}
			}
			// Chunk errors are aggregated, never propagated to the group.
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// circuitCheck feeds the batch into both breakers. The total-failure streak
// counts every batch with no successes, whatever level it tripped at, and
// the pause is the longer of the two cooldowns.
func (r *Runner[T]) circuitCheck(out batchOutcome, stats *Stats) (time.Duration, error) {
	var tripCooldown, streakCooldown time.Duration
	if out.level != LevelNone {
		stats.Trips++
		tripCooldown = r.breaker.Trip(out.level, r.now())
		r.log.Warn("ETL circuit breaker tripped",
			"level", out.level.String(),
			"cooldown", tripCooldown.String(),
			"continuous", r.opts.Continuous,
			"error", out.lastErr,
		)
	}

	switch {
	case out.succeeded == 0:
		streakCooldown = r.breaker.BatchFailed()
		if streakCooldown > 0 {
			r.log.Warn("ETL consecutive batch failures; cooling down", "cooldown", streakCooldown.String(), "error", out.lastErr)
		}
	case out.level == LevelNone:
		r.breaker.Succeeded()
	default:
		r.breaker.ResetStreak()
	}

	if !r.opts.Continuous {
		if out.level != LevelNone {
			return 0, &TripError{Level: out.level, Cooldown: tripCooldown, Err: out.lastErr}
		}
		if streakCooldown > 0 {
			return 0, fmt.Errorf("%w: %v", ErrTotalFailure, out.lastErr)
		}
	}
	return max(tripCooldown, streakCooldown), nil
}

func split[T any](items []T, size int) [][]T {
	if size < 1 {
		size = len(items)
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
