package definition

import (
	"context"
	"sort"

	"github.com/HerbHall/heartbeat/internal/monitor"
)

// Source supplies monitor definitions. Implementations return one
// definition per name and leave out documents that fail to parse.
type Source interface {
	Load(ctx context.Context) ([]monitor.Definition, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]monitor.Definition, error)

// Load calls f(ctx).
func (f SourceFunc) Load(ctx context.Context) ([]monitor.Definition, error) { return f(ctx) }

// Merge returns a Source that loads every source in order and keeps the
// most recently updated definition for each name. Any source error aborts the load.
func Merge(sources ...Source) Source {
	return SourceFunc(func(ctx context.Context) ([]monitor.Definition, error) {
		var all []monitor.Definition
		for _, src := range sources {
			defs, err := src.Load(ctx)
			if err != nil {
				return nil, err
			}
			all = append(all, defs...)
		}
		return Dedupe(all), nil
	})
}

// Dedupe keeps one definition per name: the one with the latest
// UpdatedAt, the later one in defs on a tie. The result is sorted by name.
func Dedupe(defs []monitor.Definition) []monitor.Definition {
	latest := make(map[string]monitor.Definition, len(defs))
	for _, def := range defs {
		cur, ok := latest[def.Name]
		if !ok || !def.UpdatedAt.Before(cur.UpdatedAt) {
			latest[def.Name] = def
		}
	}

	out := make([]monitor.Definition, 0, len(latest))
	for _, def := range latest {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
