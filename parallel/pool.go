// Package parallel runs functions over slices with bounded concurrency.
//
// Every operation preserves input order in its output and stops scheduling
// new work at the first error, which it returns as a *TaskError. A Pool
// carries the concurrency limit together with metrics, traces and hook
// events, so long-running batches can be observed:
//
//	pool, _ := parallel.NewPool("resize", 8)
//	defer pool.Close()
//	_ = pool.OnAllComplete(func(_ context.Context, e parallel.Event) error {
//	    log.Printf("%d/%d succeeded in %v", e.Completed-e.Failed, e.Total, e.Duration)
//	    return nil
//	})
//	thumbs, err := parallel.Run(ctx, pool, resize, images)
package parallel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
	"golang.org/x/sync/errgroup"
)

// Observability keys.
const (
	ProcessedTotal = metricz.Key("parallel.processed.total")
	TasksTotal     = metricz.Key("parallel.tasks.total")
	FailuresTotal  = metricz.Key("parallel.failures.total")
	WorkersMax     = metricz.Key("parallel.workers.max")
	DurationMs     = metricz.Key("parallel.duration.ms")

	ProcessSpan = tracez.Key("parallel.process")
	TaskSpan    = tracez.Key("parallel.task")

	TagPool        = tracez.Tag("parallel.pool")
	TagTaskCount   = tracez.Tag("parallel.task_count")
	TagWorkerCount = tracez.Tag("parallel.worker_count")
	TagIndex       = tracez.Tag("parallel.index")
	TagSuccess     = tracez.Tag("parallel.success")
	TagError       = tracez.Tag("parallel.error")

	EventTaskComplete = hookz.Key("parallel.task_complete")
	EventAllComplete  = hookz.Key("parallel.all_complete")
)

var (
	// ErrInvalidArgument is wrapped by every input validation error.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPanic is the cause recorded when a task panics.
	ErrPanic = errors.New("task panicked")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// TaskError reports the failed task that stopped an operation.
type TaskError struct {
	Index int
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d failed: %v", e.Index, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Event is emitted through hookz after each task and after the whole batch.
// Per-task events set Index, Success, Error and Duration. The all-complete
// event sets Duration to the batch duration. Hooks run asynchronously.
type Event struct {
	Name      string
	Index     int
	Success   bool
	Error     error
	Duration  time.Duration
	Completed int
	Failed    int
	Total     int
	Timestamp time.Time
}

// Pool bounds the number of tasks running at once and records what they do.
type Pool struct {
	name    string
	workers int
	mu      sync.RWMutex
	clock   clockz.Clock
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[Event]
}

// NewPool returns a Pool running at most workers tasks at once. Zero workers
// means one per CPU.
func NewPool(name string, workers int) (*Pool, error) {
	if workers < 0 {
		return nil, invalidArgument("workers must be positive, got %d", workers)
	}
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	metrics := metricz.New()
	metrics.Counter(ProcessedTotal)
	metrics.Counter(TasksTotal)
	metrics.Counter(FailuresTotal)
	metrics.Gauge(WorkersMax).Set(float64(workers))
	metrics.Gauge(DurationMs)

	return &Pool{
		name:    name,
		workers: workers,
		clock:   clockz.RealClock,
		metrics: metrics,
		tracer:  tracez.New(),
		hooks:   hookz.New[Event](),
	}, nil
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Workers returns the concurrency limit.
func (p *Pool) Workers() int { return p.workers }

// WithClock sets the clock used for durations and timestamps.
func (p *Pool) WithClock(clock clockz.Clock) *Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = clock
	return p
}

func (p *Pool) getClock() clockz.Clock {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.clock == nil {
		return clockz.RealClock
	}
	return p.clock
}

// Metrics returns the metrics registry of the pool.
func (p *Pool) Metrics() *metricz.Registry { return p.metrics }

// Tracer returns the tracer of the pool.
func (p *Pool) Tracer() *tracez.Tracer { return p.tracer }

// OnTaskComplete registers a handler called after every task.
func (p *Pool) OnTaskComplete(handler func(context.Context, Event) error) error {
	_, err := p.hooks.Hook(EventTaskComplete, handler)
	return err
}

// OnAllComplete registers a handler called once a batch has finished.
func (p *Pool) OnAllComplete(handler func(context.Context, Event) error) error {
	_, err := p.hooks.Hook(EventAllComplete, handler)
	return err
}

// Close shuts down the tracer and the hooks.
func (p *Pool) Close() error {
	if p.tracer != nil {
		p.tracer.Close()
	}
	p.hooks.Close()
	return nil
}

// Run calls fn on every element of data on p and returns the results in
// input order. The first failure cancels the context passed to the other
// tasks, stops new tasks from starting and is returned as a *TaskError.
func Run[T, R any](ctx context.Context, p *Pool, fn func(context.Context, T) (R, error), data []T) ([]R, error) {
	return run(ctx, p, fn, data, nil)
}

// run is Run with a callback invoked, serialised, after each task with the
// number of finished tasks.
func run[T, R any](ctx context.Context, p *Pool, fn func(context.Context, T) (R, error), data []T, onDone func(done, total int)) ([]R, error) {
	if p == nil {
		return nil, invalidArgument("pool is required")
	}
	if fn == nil {
		return nil, invalidArgument("func is required")
	}
	clock := p.getClock()
	total := len(data)

	p.metrics.Counter(ProcessedTotal).Inc()
	start := clock.Now()
	ctx, span := p.tracer.StartSpan(ctx, ProcessSpan)
	span.SetTag(TagPool, p.name)
	span.SetTag(TagTaskCount, strconv.Itoa(total))
	span.SetTag(TagWorkerCount, strconv.Itoa(p.workers))
	defer span.Finish()

	out := make([]R, total)
	var (
		mu        sync.Mutex
		completed int
		failed    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, item := range data {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			taskCtx, taskSpan := p.tracer.StartSpan(gctx, TaskSpan)
			taskSpan.SetTag(TagIndex, strconv.Itoa(i))
			defer taskSpan.Finish()
			p.metrics.Counter(TasksTotal).Inc()

			taskStart := clock.Now()
			r, err := call(taskCtx, fn, item)
			duration := clock.Since(taskStart)

			mu.Lock()
			completed++
			if err != nil {
				failed++
			} else {
				out[i] = r
			}
			event := Event{
				Name:      p.name,
				Index:     i,
				Success:   err == nil,
				Error:     err,
				Duration:  duration,
				Completed: completed,
				Failed:    failed,
				Total:     total,
				Timestamp: clock.Now(),
			}
			if onDone != nil {
				onDone(completed, total)
			}
			mu.Unlock()

			_ = p.hooks.Emit(ctx, EventTaskComplete, event) //nolint:errcheck
			if err != nil {
				p.metrics.Counter(FailuresTotal).Inc()
				taskSpan.SetTag(TagError, err.Error())
				return &TaskError{Index: i, Err: err}
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	elapsed := clock.Since(start)
	p.metrics.Gauge(DurationMs).Set(float64(elapsed.Milliseconds()))
	span.SetTag(TagSuccess, strconv.FormatBool(err == nil))
	if err != nil {
		span.SetTag(TagError, err.Error())
	}

	_ = p.hooks.Emit(ctx, EventAllComplete, Event{ //nolint:errcheck
		Name:      p.name,
		Success:   err == nil,
		Error:     err,
		Duration:  elapsed,
		Completed: completed,
		Failed:    failed,
		Total:     total,
		Timestamp: clock.Now(),
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func call[T, R any](ctx context.Context, fn func(context.Context, T) (R, error), item T) (r R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
		}
	}()
	return fn(ctx, item)
}
