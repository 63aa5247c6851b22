package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Clock returns the current time. Monitors never read the system clock directly.
type Clock func() time.Time

// Check is a single attempt. A nil error means the attempt succeeded; the
// error's message is reported as the failure reason otherwise.
type Check interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts an ordinary function to the Check interface.
type CheckFunc func(ctx context.Context) error

// Check calls f(ctx).
func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Monitor wraps a Check with a name, an interval gate and an up/down gauge.
//
// Only Execute mutates lastRun and up. The scheduler never runs the same
// Monitor twice concurrently; the fields are atomic so that the gauge
// callback and the API can read them while a check is in flight.
type Monitor struct {
	name      string
	namespace string
	interval  time.Duration
	timeout   time.Duration
	checkType CheckType
	check     Check
	clock     Clock

	lastRun atomic.Int64 // unix nanos, 0 = never
	up      atomic.Int64
}

// New creates a Monitor for def that runs check. A nil clock defaults to time.Now.
func New(def Definition, check Check, clock Clock) *Monitor {
	if clock == nil {
		clock = time.Now
	}
	m := &Monitor{
		name:      def.Name,
		namespace: def.Namespace,
		interval:  def.Interval,
		check:     check,
		clock:     clock,
	}
	if def.Check != nil {
		m.timeout = def.Check.Timeout()
		m.checkType = def.Check.Type()
	}
	if m.timeout <= 0 {
		m.timeout = defaultTimeout(def.Interval)
	}
	return m
}

// defaultTimeout is DefaultTimeout capped at a positive interval.
func defaultTimeout(interval time.Duration) time.Duration {
	if interval > 0 && interval < DefaultTimeout {
		return interval
	}
	return DefaultTimeout
}

func (m *Monitor) Name() string            { return m.name }
func (m *Monitor) Namespace() string       { return m.namespace }
func (m *Monitor) Interval() time.Duration { return m.interval }
func (m *Monitor) Timeout() time.Duration  { return m.timeout }
func (m *Monitor) CheckType() CheckType    { return m.checkType }

// Up returns the gauge value: 1 after a successful run, 0 otherwise.
func (m *Monitor) Up() int64 { return m.up.Load() }

// LastRun returns when the last attempt finished, or the zero time if it never ran.
func (m *Monitor) LastRun() time.Time {
	ns := m.lastRun.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Due reports whether the interval has elapsed at now.
func (m *Monitor) Due(now time.Time) bool {
	return !now.Before(m.LastRun().Add(m.interval))
}

// Execute runs the check if the interval has elapsed. It never panics and
// never returns an error: every problem becomes a failure Result.
//
// A gated call returns OutcomeNotDue and leaves lastRun and the gauge alone.
// Any attempt, whatever its outcome, moves lastRun to the clock's time when
// the attempt finishes.
func (m *Monitor) Execute(ctx context.Context) (res Result) {
	if !m.Due(m.clock()) {
		return Result{Name: m.name, Namespace: m.namespace, Outcome: OutcomeNotDue}
	}

	defer func() {
		m.lastRun.Store(m.clock().UnixNano())
	}()
	defer func() {
		if r := recover(); r != nil {
			m.up.Store(0)
			res = m.failure(fmt.Sprint(r))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.check.Check(runCtx); err != nil {
		m.up.Store(0)
		return m.failure(err.Error())
	}

	m.up.Store(1)
	return Result{Name: m.name, Namespace: m.namespace, Outcome: OutcomeSuccess}
}

func (m *Monitor) failure(msg string) Result {
	return Result{
		Name:         m.name,
		Namespace:    m.namespace,
		Outcome:      OutcomeFailure,
		ErrorMessage: msg,
	}
}
