// Package testing provides test doubles for code built on utilz wrappers.
//
// MockFunc stands in for a wrapped function, Chaos injects the failures a
// wrapper stack has to survive, and BenchmarkFunction times a function the
// way the bench command does.
//
//	func TestCachedLookup(t *testing.T) {
//		lookup := utilztest.NewMockFunc[string, int]("lookup").WithReturn(42, nil)
//		cached, _ := utilz.NewCache[string, int]("cached-lookup", lookup, time.Minute)
//		_, _ = cached.Process(context.Background(), "answer")
//		_, _ = cached.Process(context.Background(), "answer")
//		utilztest.AssertCalls(t, lookup, 1)
//	}
package testing

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/utilz"
)

// ErrChaos is the cause of every failure Chaos injects.
var ErrChaos = errors.New("injected failure")

// MockFunc is a utilz.Chainable whose behaviour is set by the test.
type MockFunc[In, Out any] struct {
	name      string
	calls     atomic.Int64
	mu        sync.Mutex
	inputs    []In
	result    Out
	err       error
	failFirst int
	failErr   error
	delay     time.Duration
	panicMsg  string
}

// NewMockFunc returns a MockFunc that succeeds with the zero Out.
func NewMockFunc[In, Out any](name string) *MockFunc[In, Out] {
	return &MockFunc[In, Out]{name: name}
}

// WithReturn sets the result of every call.
func (m *MockFunc[In, Out]) WithReturn(result Out, err error) *MockFunc[In, Out] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result, m.err = result, err
	return m
}

// FailFirst makes the next n calls fail with err.
func (m *MockFunc[In, Out]) FailFirst(n int, err error) *MockFunc[In, Out] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFirst, m.failErr = n, err
	return m
}

// WithDelay makes each call wait d, or until its context ends.
func (m *MockFunc[In, Out]) WithDelay(d time.Duration) *MockFunc[In, Out] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithPanic makes each call panic with msg.
func (m *MockFunc[In, Out]) WithPanic(msg string) *MockFunc[In, Out] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicMsg = msg
	return m
}

// Name implements utilz.Chainable.
func (m *MockFunc[In, Out]) Name() utilz.Name {
	return m.name
}

// Process implements utilz.Chainable.
func (m *MockFunc[In, Out]) Process(ctx context.Context, in In) (Out, error) {
	m.calls.Add(1)

	m.mu.Lock()
	m.inputs = append(m.inputs, in)
	result, err, delay, panicMsg := m.result, m.err, m.delay, m.panicMsg
	if m.failFirst > 0 {
		m.failFirst--
		err = m.failErr
	}
	m.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}

	var zero Out
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	if err != nil {
		return zero, err
	}
	return result, nil
}

// Calls returns how many times Process ran.
func (m *MockFunc[In, Out]) Calls() int {
	return int(m.calls.Load())
}

// Inputs returns the inputs seen so far, oldest first.
func (m *MockFunc[In, Out]) Inputs() []In {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]In(nil), m.inputs...)
}

// Reset forgets recorded calls. Configured behaviour is kept.
func (m *MockFunc[In, Out]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Store(0)
	m.inputs = nil
}

// AssertCalls fails the test unless mock ran exactly want times.
func AssertCalls[In, Out any](t *testing.T, mock *MockFunc[In, Out], want int) {
	t.Helper()
	if got := mock.Calls(); got != want {
		t.Errorf("%s called %d times, want %d", mock.name, got, want)
	}
}

// AssertCalledWith fails the test unless the last call to mock received want.
func AssertCalledWith[In comparable, Out any](t *testing.T, mock *MockFunc[In, Out], want In) {
	t.Helper()
	inputs := mock.Inputs()
	if len(inputs) == 0 {
		t.Errorf("%s never called, want input %v", mock.name, want)
		return
	}
	if got := inputs[len(inputs)-1]; got != want {
		t.Errorf("%s last called with %v, want %v", mock.name, got, want)
	}
}

// ChaosConfig sets the odds of each injected fault. Rates run from 0 to 1.
// A zero Seed picks one from the clock.
type ChaosConfig struct {
	FailureRate float64
	TimeoutRate float64
	PanicRate   float64
	Latency     time.Duration
	Seed        int64
}

// ChaosStats counts what Chaos injected.
type ChaosStats struct {
	TotalCalls   int64
	FailedCalls  int64
	TimeoutCalls int64
	PanicCalls   int64
}

func (s ChaosStats) String() string {
	return fmt.Sprintf("%d calls: %d failed, %d timed out, %d panicked",
		s.TotalCalls, s.FailedCalls, s.TimeoutCalls, s.PanicCalls)
}

// Chaos wraps a function and makes it fail the ways a utilz wrapper stack
// sees in production. Injected failures and timeouts come back as
// *utilz.Error[In] with Chaos's name as the path, exactly like an error
// raised by a wrapper: failures wrap ErrChaos, and timeouts carry a
// *utilz.TimedOutError with the Timeout flag set.
type Chaos[In, Out any] struct {
	name    string
	wrapped utilz.Chainable[In, Out]
	config  ChaosConfig
	mu      sync.Mutex
	rng     *rand.Rand
	total   atomic.Int64
	failed  atomic.Int64
	timeout atomic.Int64
	panics  atomic.Int64
}

// NewChaos wraps fn with fault injection.
func NewChaos[In, Out any](name string, fn utilz.Chainable[In, Out], config ChaosConfig) *Chaos[In, Out] {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Chaos[In, Out]{
		name:    name,
		wrapped: fn,
		config:  config,
		rng:     rand.New(rand.NewSource(seed)), //nolint:gosec // reproducible fault injection
	}
}

// Name implements utilz.Chainable.
func (c *Chaos[In, Out]) Name() utilz.Name {
	return c.name
}

// Process implements utilz.Chainable.
func (c *Chaos[In, Out]) Process(ctx context.Context, in In) (Out, error) {
	c.total.Add(1)

	c.mu.Lock()
	panicNow := c.rng.Float64() < c.config.PanicRate
	timeoutNow := c.rng.Float64() < c.config.TimeoutRate
	failNow := c.rng.Float64() < c.config.FailureRate
	c.mu.Unlock()

	if panicNow {
		c.panics.Add(1)
		panic(fmt.Sprintf("%s: injected panic", c.name))
	}

	var zero Out
	start := time.Now()
	if c.config.Latency > 0 {
		timer := time.NewTimer(c.config.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	if timeoutNow {
		c.timeout.Add(1)
		return zero, &utilz.Error[In]{
			Timestamp: time.Now(),
			InputData: in,
			Err:       &utilz.TimedOutError{Name: c.name, Duration: time.Since(start)},
			Path:      []utilz.Name{c.name},
			Duration:  time.Since(start),
			Timeout:   true,
		}
	}

	result, err := c.wrapped.Process(ctx, in)
	if err != nil || !failNow {
		return result, err
	}
	c.failed.Add(1)
	return zero, &utilz.Error[In]{
		Timestamp: time.Now(),
		InputData: in,
		Err:       ErrChaos,
		Path:      []utilz.Name{c.name},
		Duration:  time.Since(start),
	}
}

// Stats reports the faults injected so far.
func (c *Chaos[In, Out]) Stats() ChaosStats {
	return ChaosStats{
		TotalCalls:   c.total.Load(),
		FailedCalls:  c.failed.Load(),
		TimeoutCalls: c.timeout.Load(),
		PanicCalls:   c.panics.Load(),
	}
}

// MeasureLatency returns how long fn took.
func MeasureLatency(fn func()) time.Duration {
	start := time.Now()
	fn()
	return time.Since(start)
}
