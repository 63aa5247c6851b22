package definition

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/HerbHall/heartbeat/internal/monitor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultPattern matches definition files when none is configured.
const DefaultPattern = "*.json"

// Compile-time interface guard.
var _ Source = (*DirectorySource)(nil)

// DirectorySource reads definition documents from files under Root whose
// base name matches Pattern.
type DirectorySource struct {
	Root      string
	Pattern   string
	Recursive bool
	Logger    *zap.Logger
}

// Load parses every matching file in parallel. Files that fail to parse or
// validate are logged and left out. When several files define the same
// name, the most recently modified file wins. A missing Root yields no
// definitions.
func (s *DirectorySource) Load(ctx context.Context) ([]monitor.Definition, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	paths, err := s.matchingFiles()
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("definition directory does not exist", zap.String("root", s.Root))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		defs = make([]monitor.Definition, 0, len(paths))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			def, err := ReadFile(path)
			if err != nil {
				logger.Warn("skipping monitor definition", zap.String("path", path), zap.Error(err))
				return nil
			}
			mu.Lock()
			defs = append(defs, def)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Dedupe(defs), nil
}

// ReadFile decodes the definition in path, recording the path as its
// source and the modification time as its update time.
func ReadFile(path string) (monitor.Definition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return monitor.Definition{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return monitor.Definition{}, err
	}
	def, err := Decode(data, FormatForPath(path))
	if err != nil {
		return monitor.Definition{}, err
	}
	def.Source = path
	def.UpdatedAt = info.ModTime()
	return def, nil
}

func (s *DirectorySource) matchingFiles() ([]string, error) {
	pattern := s.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("search pattern %q: %w", pattern, err)
	}

	var paths []string
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.Root && !s.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.Root, err)
	}
	return paths, nil
}
