// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/HerbHall/heartbeat/internal/monitor"
	"github.com/HerbHall/heartbeat/internal/store"
)

// NewDefinition returns a valid TCP definition with sensible defaults.
// Override individual fields with options.
func NewDefinition(opts ...func(*monitor.Definition)) monitor.Definition {
	d := monitor.Definition{
		Name:      "test-monitor",
		Namespace: "test",
		Interval:  time.Minute,
		Check:     monitor.TCPSpec{Address: "127.0.0.1:9", TimeoutAfter: time.Second},
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithName sets the definition name.
func WithName(name string) func(*monitor.Definition) {
	return func(d *monitor.Definition) { d.Name = name }
}

// WithNamespace sets the definition namespace.
func WithNamespace(ns string) func(*monitor.Definition) {
	return func(d *monitor.Definition) { d.Namespace = ns }
}

// WithInterval sets the gating interval.
func WithInterval(interval time.Duration) func(*monitor.Definition) {
	return func(d *monitor.Definition) { d.Interval = interval }
}

// WithCheck replaces the check variant.
func WithCheck(spec monitor.CheckSpec) func(*monitor.Definition) {
	return func(d *monitor.Definition) { d.Check = spec }
}

// WithSource marks the definition as read from path.
func WithSource(path string) func(*monitor.Definition) {
	return func(d *monitor.Definition) { d.Source = path }
}

// WithUpdatedAt sets the timestamp used for deduplication.
func WithUpdatedAt(at time.Time) func(*monitor.Definition) {
	return func(d *monitor.Definition) { d.UpdatedAt = at }
}

// OpenStore opens a SQLite database in a temporary directory and closes it
// when the test ends.
func OpenStore(t testing.TB) *store.SQLiteStore {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "heartbeat.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
