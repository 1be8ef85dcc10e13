package views

import (
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of projections a Projector keeps.
const DefaultCacheSize = 64

type cacheKey struct {
	name   string
	params Params
}

// Projector computes views over one Input and memoizes them by name and
// parameters. It is safe for concurrent use.
type Projector struct {
	in     Input
	cache  *lru.Cache[cacheKey, View]
	logger *slog.Logger
}

// ProjectorOption configures a Projector.
type ProjectorOption func(*Projector)

// WithLogger sets the projector's logger.
func WithLogger(logger *slog.Logger) ProjectorOption {
	return func(p *Projector) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProjector creates a projector bound to in. A size of zero or less
// means DefaultCacheSize.
func NewProjector(in Input, size int, opts ...ProjectorOption) (*Projector, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, View](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create projection cache: %w", err)
	}
	p := &Projector{in: in, cache: cache, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Names returns the view names the projector serves.
func (p *Projector) Names() []string {
	return Names()
}

// Project returns the named view. Cached views are shared between callers
// and must not be modified.
func (p *Projector) Project(name string, params Params) (View, error) {
	key := cacheKey{name: name, params: params}
	if v, ok := p.cache.Get(key); ok {
		p.logger.Debug("view cache hit", slog.String("view", name))
		return v, nil
	}

	v, err := Project(p.in, name, params)
	if err != nil {
		return View{}, err
	}
	p.logger.Debug("projected view",
		slog.String("view", name),
		slog.Int("nodes", len(v.Nodes)),
		slog.Int("edges", len(v.Edges)),
		slog.Int("warnings", len(v.Warnings)))
	p.cache.Add(key, v)
	return v, nil
}

// Cached returns the number of memoized projections.
func (p *Projector) Cached() int {
	return p.cache.Len()
}
