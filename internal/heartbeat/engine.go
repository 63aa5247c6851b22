// Package heartbeat schedules registered monitors in bounded batches and
// exposes them over HTTP.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/HerbHall/heartbeat/internal/event"
	"github.com/HerbHall/heartbeat/internal/monitor"
	"go.uber.org/zap"
)

// EventSource identifies the engine on the event bus.
const EventSource = "heartbeat"

var (
	// ErrNoFactory is returned when no factory can build a definition.
	ErrNoFactory = errors.New("no factory handles monitor definition")
	// ErrNotReady is returned by Tick before Setup has completed.
	ErrNotReady = errors.New("engine is not ready")
	// ErrAlreadySetUp is returned by a second Setup call.
	ErrAlreadySetUp = errors.New("engine is already set up")
	// ErrStopped is returned once the engine has been stopped.
	ErrStopped = errors.New("engine is stopped")
	// ErrNameConflict is returned by Register when another key already
	// holds a monitor of the same name.
	ErrNameConflict = errors.New("monitor name already registered under another key")
)

// State is the engine lifecycle position.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateTicking
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateTicking:
		return "ticking"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Summary counts what one Tick did.
type Summary struct {
	Batches   int
	Succeeded int
	Failed    int
	NotDue    int
}

// Executed returns the number of monitors whose check actually ran.
func (s Summary) Executed() int { return s.Succeeded + s.Failed }

// Engine owns the registry and drives monitors through it.
type Engine struct {
	registry  *monitor.Registry
	factories []monitor.Factory
	batchSize int
	events    event.Publisher
	logger    *zap.Logger

	state      atomic.Int32
	registerMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvents publishes classified results to pub.
func WithEvents(pub event.Publisher) Option {
	return func(e *Engine) { e.events = pub }
}

// WithRegistry uses reg instead of a fresh registry.
func WithRegistry(reg *monitor.Registry) Option {
	return func(e *Engine) { e.registry = reg }
}

// NewEngine creates an engine in the Uninitialized state. A batchSize below 1 is treated as 1.
func NewEngine(factories []monitor.Factory, batchSize int, logger *zap.Logger, opts ...Option) *Engine {
	if batchSize < 1 {
		batchSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		factories: factories,
		batchSize: batchSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = monitor.NewRegistry()
	}
	return e
}

// Registry returns the engine's monitor registry.
func (e *Engine) Registry() *monitor.Registry { return e.registry }

// State returns the current lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

// BatchSize returns the concurrency bound.
func (e *Engine) BatchSize() int { return e.batchSize }

// Setup builds a monitor for every definition some factory can handle and
// registers it under the definition's key. Definitions no factory handles
// are skipped. On success the engine moves to Ready.
func (e *Engine) Setup(ctx context.Context, defs []monitor.Definition) error {
	switch e.State() {
	case StateStopped:
		return ErrStopped
	case StateUninitialized:
	default:
		return ErrAlreadySetUp
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	registered := 0
	for _, def := range defs {
		f, ok := monitor.Select(e.factories, def)
		if !ok {
			e.logger.Info("no factory for monitor definition, skipping",
				zap.String("monitor", def.Name),
				zap.String("type", string(def.CheckType())),
				zap.String("source", def.Source),
			)
			continue
		}
		m, err := f.Create(def)
		if err != nil {
			return fmt.Errorf("setup monitor %q: %w", def.Name, err)
		}
		e.registry.AddOrUpdate(def.Key(), m)
		registered++
	}

	if !e.state.CompareAndSwap(int32(StateUninitialized), int32(StateReady)) {
		return ErrStopped
	}
	e.logger.Info("monitors registered",
		zap.Int("registered", registered),
		zap.Int("definitions", len(defs)),
	)
	return nil
}

// Register builds a monitor for def and adds or replaces it under def.Key().
// A name already used under a different key is rejected, since the gauge
// identifies monitors by name. It is safe to call concurrently with Tick.
func (e *Engine) Register(def monitor.Definition) (string, error) {
	if e.State() == StateStopped {
		return "", ErrStopped
	}
	f, ok := monitor.Select(e.factories, def)
	if !ok {
		return "", fmt.Errorf("%w: %q has check type %q", ErrNoFactory, def.Name, def.CheckType())
	}
	m, err := f.Create(def)
	if err != nil {
		return "", err
	}

	key := def.Key()
	e.registerMu.Lock()
	defer e.registerMu.Unlock()
	for _, entry := range e.registry.Entries() {
		if entry.Key != key && entry.Monitor.Name() == def.Name {
			return "", fmt.Errorf("%w: %q is registered as %q", ErrNameConflict, def.Name, entry.Key)
		}
	}
	e.registry.AddOrUpdate(key, m)
	return key, nil
}

// Restore puts prev back under key, or removes key when prev is nil. It
// undoes a Register whose follow-up work failed.
func (e *Engine) Restore(key string, prev *monitor.Monitor) {
	e.registerMu.Lock()
	defer e.registerMu.Unlock()
	if prev == nil {
		e.registry.Remove(key)
		return
	}
	e.registry.AddOrUpdate(key, prev)
}

// Unregister removes the monitor stored under key.
func (e *Engine) Unregister(key string) bool {
	return e.registry.Remove(key)
}

// Tick runs every registered monitor once, in batches of at most batchSize.
// Batches run one after another; monitors within a batch run concurrently.
//
// A context that is already done makes Tick return its error without
// executing or logging anything. Cancellation is checked again before each
// batch; batches already started are left to finish.
func (e *Engine) Tick(ctx context.Context) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	if !e.state.CompareAndSwap(int32(StateReady), int32(StateTicking)) {
		if e.State() == StateStopped {
			return Summary{}, ErrStopped
		}
		return Summary{}, ErrNotReady
	}
	defer e.state.CompareAndSwap(int32(StateTicking), int32(StateReady))

	var sum Summary
	monitors := e.registry.Snapshot()
	for start := 0; start < len(monitors); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		end := min(start+e.batchSize, len(monitors))
		for _, res := range e.runBatch(ctx, monitors[start:end]) {
			e.report(ctx, res, &sum)
		}
		sum.Batches++
	}
	return sum, nil
}

// Stop moves the engine to Stopped. Later Tick and Register calls fail.
func (e *Engine) Stop() {
	e.state.Store(int32(StateStopped))
}

func (e *Engine) runBatch(ctx context.Context, batch []*monitor.Monitor) []monitor.Result {
	results := make([]monitor.Result, len(batch))
	var wg sync.WaitGroup
	for i, m := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = m.Execute(ctx)
		}()
	}
	wg.Wait()
	return results
}

func (e *Engine) report(ctx context.Context, res monitor.Result, sum *Summary) {
	switch res.Outcome {
	case monitor.OutcomeNotDue:
		sum.NotDue++
		return
	case monitor.OutcomeFailure:
		sum.Failed++
		e.logger.Warn("monitor check failed",
			zap.String("monitor", res.Name),
			zap.String("namespace", res.Namespace),
			zap.String("error", res.ErrorMessage),
		)
	case monitor.OutcomeSuccess:
		sum.Succeeded++
		e.logger.Debug("monitor check succeeded",
			zap.String("monitor", res.Name),
			zap.String("namespace", res.Namespace),
		)
	}

	if e.events != nil {
		e.events.Publish(ctx, event.Event{
			Topic:   event.TopicResult,
			Source:  EventSource,
			Payload: res,
		})
	}
}
