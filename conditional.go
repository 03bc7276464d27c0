package utilz

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for Conditional observability.
const (
	ConditionalProcessedTotal = metricz.Key("conditional.processed.total")
	ConditionalShortTotal     = metricz.Key("conditional.short_circuit.total")
	ConditionalPassedTotal    = metricz.Key("conditional.passed.total")
)

// Span names and tags for Conditional.
const (
	ConditionalProcessSpan = tracez.Key("conditional.process")

	ConditionalTagConnector    = tracez.Tag("conditional.connector")
	ConditionalTagConditionMet = tracez.Tag("conditional.condition_met")
	ConditionalTagError        = tracez.Tag("conditional.error")

	// Hook event keys.
	ConditionalEventShortCircuit = hookz.Key("conditional.short_circuit")
	ConditionalEventPassed       = hookz.Key("conditional.passed")
)

// ConditionalEvent records one condition evaluation.
type ConditionalEvent struct {
	Timestamp    time.Time
	Name         Name
	ConditionMet bool
}

// Condition decides whether Conditional short-circuits.
type Condition[In any] func(context.Context, In) (bool, error)

// Conditional returns a fixed value instead of calling the wrapped function
// whenever condition holds for the input.
//
// When condition is false the wrapped function runs normally. When condition
// itself fails, Process fails with "Condition function raised an error: ..."
// and the wrapped function is not called.
//
// This is handy for feature flags, maintenance switches and cheap answers to
// well-known inputs:
//
//	maintenance := utilz.NewConditional("checkout",
//	    func(ctx context.Context, o Order) (bool, error) { return flags.Maintenance(ctx) },
//	    Receipt{Status: "deferred"},
//	    checkout,
//	)
type Conditional[In, Out any] struct {
	processor Chainable[In, Out]
	condition Condition[In]
	value     Out
	metrics   *metricz.Registry
	tracer    *tracez.Tracer
	hooks     *hookz.Hooks[ConditionalEvent]
	name      Name
	mu        sync.RWMutex
}

// NewConditional creates a Conditional. A nil condition is rejected.
func NewConditional[In, Out any](name Name, condition Condition[In], value Out, processor Chainable[In, Out]) (*Conditional[In, Out], error) {
	if condition == nil {
		return nil, invalidArgument("Condition must be callable")
	}

	registry := metricz.New()
	registry.Counter(ConditionalProcessedTotal)
	registry.Counter(ConditionalShortTotal)
	registry.Counter(ConditionalPassedTotal)

	return &Conditional[In, Out]{
		name:      name,
		condition: condition,
		value:     value,
		processor: processor,
		metrics:   registry,
		tracer:    tracez.New(),
		hooks:     hookz.New[ConditionalEvent](),
	}, nil
}

// Process implements Chainable.
func (c *Conditional[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, c.name, in)

	c.mu.RLock()
	condition := c.condition
	value := c.value
	processor := c.processor
	c.mu.RUnlock()

	ctx, span := c.tracer.StartSpan(ctx, ConditionalProcessSpan)
	defer span.Finish()
	span.SetTag(ConditionalTagConnector, c.name)

	c.metrics.Counter(ConditionalProcessedTotal).Inc()

	met, condErr := condition(ctx, in)
	if condErr != nil {
		span.SetTag(ConditionalTagError, condErr.Error())
		return result, wrapError(fmt.Errorf("Condition function raised an error: %w", condErr), c.name, in) //nolint:stylecheck
	}
	span.SetTag(ConditionalTagConditionMet, strconv.FormatBool(met))

	if met {
		c.metrics.Counter(ConditionalShortTotal).Inc()
		_ = c.hooks.Emit(ctx, ConditionalEventShortCircuit, ConditionalEvent{ //nolint:errcheck
			Name:         c.name,
			ConditionMet: true,
			Timestamp:    time.Now(),
		})
		return value, nil
	}

	c.metrics.Counter(ConditionalPassedTotal).Inc()
	_ = c.hooks.Emit(ctx, ConditionalEventPassed, ConditionalEvent{ //nolint:errcheck
		Name:      c.name,
		Timestamp: time.Now(),
	})

	result, err = processor.Process(ctx, in)
	if err != nil {
		return result, wrapError(err, c.name, in)
	}
	return result, nil
}

// SetCondition replaces the condition. Nil is ignored.
func (c *Conditional[In, Out]) SetCondition(condition Condition[In]) *Conditional[In, Out] {
	if condition == nil {
		return c
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.condition = condition
	return c
}

// SetValue replaces the short-circuit value.
func (c *Conditional[In, Out]) SetValue(value Out) *Conditional[In, Out] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	return c
}

// Name returns the name of this wrapper.
func (c *Conditional[In, Out]) Name() Name {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Metrics returns the metrics registry for this wrapper.
func (c *Conditional[In, Out]) Metrics() *metricz.Registry {
	return c.metrics
}

// Tracer returns the tracer for this wrapper.
func (c *Conditional[In, Out]) Tracer() *tracez.Tracer {
	return c.tracer
}

// OnShortCircuit registers a handler called asynchronously when the
// condition holds.
func (c *Conditional[In, Out]) OnShortCircuit(handler func(context.Context, ConditionalEvent) error) error {
	_, err := c.hooks.Hook(ConditionalEventShortCircuit, handler)
	return err
}

// OnPassed registers a handler called asynchronously when the wrapped
// function is called.
func (c *Conditional[In, Out]) OnPassed(handler func(context.Context, ConditionalEvent) error) error {
	_, err := c.hooks.Hook(ConditionalEventPassed, handler)
	return err
}

// Close releases observability resources.
func (c *Conditional[In, Out]) Close() error {
	if c.tracer != nil {
		c.tracer.Close()
	}
	c.hooks.Close()
	return nil
}
