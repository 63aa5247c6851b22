package monitor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Gauge attribute keys.
const (
	AttrServiceName = "service.name"
	AttrNamespace   = "namespace"
)

// RegisterGauge creates an observable 0/1 gauge on meter that reports the
// up value of every monitor in reg at collection time. The returned
// registration must be unregistered when the registry is no longer observed.
func RegisterGauge(meter metric.Meter, reg *Registry, name, description string) (metric.Registration, error) {
	gauge, err := meter.Int64ObservableGauge(name,
		metric.WithDescription(description),
		metric.WithUnit("{up}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create gauge %q: %w", name, err)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for _, m := range reg.Snapshot() {
			o.ObserveInt64(gauge, m.Up(), metric.WithAttributes(
				attribute.String(AttrServiceName, m.Name()),
				attribute.String(AttrNamespace, m.Namespace()),
			))
		}
		return nil
	}, gauge)
	if err != nil {
		return nil, fmt.Errorf("register gauge callback: %w", err)
	}
	return registration, nil
}
