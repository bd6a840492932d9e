package gridded

import (
	"fmt"
	"sync"

	"go.ngs.io/storage-anomaly/internal/domain"
)

// Source describes one gridded input file.
type Source struct {
	Name      string
	Path      string
	Variables []string
	ScalePath string // Optional GRACE scale factor grid.

	// RegridScale resamples a scale grid whose coordinates differ from the
	// data grid instead of rejecting it.
	RegridScale bool
}

// Store loads gridded sources on demand and caches them in memory.
type Store struct {
	config  FileConfig
	sources map[string]Source
	order   []string
	cache   map[string]*domain.Dataset // Cache loaded datasets.
	mu      sync.RWMutex               // Protect cache.
}

// NewStore creates a store over the given sources.
func NewStore(sources ...Source) *Store {
	s := &Store{
		config:  DefaultConfig(),
		sources: make(map[string]Source, len(sources)),
		cache:   make(map[string]*domain.Dataset),
	}
	for _, src := range sources {
		if _, dup := s.sources[src.Name]; !dup {
			s.order = append(s.order, src.Name)
		}
		s.sources[src.Name] = src
	}
	return s
}

// Names returns the configured source names in registration order.
func (s *Store) Names() []string {
	return append([]string(nil), s.order...)
}

// Load returns the named dataset, reading it on first use.
func (s *Store) Load(name string) (*domain.Dataset, error) {
	s.mu.RLock()
	if ds, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return ds, nil
	}
	s.mu.RUnlock()

	src, ok := s.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown source %q", domain.ErrInputValidation, name)
	}

	ds, err := ReadDataset(src.Path, src.Name, src.Variables, s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to load source %s: %w", name, err)
	}
	if src.ScalePath != "" {
		read := ReadScaleGrid
		if src.RegridScale {
			read = RegridScaleGrid
		}
		scale, err := read(src.ScalePath, ds.Grid, s.config)
		if err != nil {
			return nil, fmt.Errorf("failed to load scale factors for %s: %w", name, err)
		}
		for _, f := range ds.Fields {
			f.Scale = scale
		}
	}

	s.mu.Lock()
	s.cache[name] = ds
	s.mu.Unlock()

	return ds, nil
}
