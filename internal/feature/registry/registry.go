package registry

import (
	"fmt"
	"sync"

	"github.com/smallbiznis/premium/internal/config"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"go.uber.org/fx"
)

// Registry owns the feature definitions loaded at startup and the strategy
// instance bound to each of them. Strategies are built on first use and
// kept for the life of the process.
type Registry struct {
	definitions []domain.Definition
	byName      map[string]domain.Definition
	factories   map[string]domain.StrategyFactory

	mu    sync.Mutex
	cache map[string]domain.Strategy
}

type Params struct {
	fx.In

	Config    config.FeatureRegistry
	Factories []domain.NamedStrategyFactory `group:"feature.strategies"`
}

func New(p Params) *Registry {
	defs := make([]domain.Definition, 0, len(p.Config.Features))
	for _, def := range p.Config.Features {
		defs = append(defs, domain.Definition{
			Name:       def.Name,
			Strategy:   def.Strategy,
			Candidates: append([]string(nil), def.Candidates...),
			Options:    def.Options,
		})
	}
	return NewRegistry(defs, p.Factories)
}

func NewRegistry(defs []domain.Definition, factories []domain.NamedStrategyFactory) *Registry {
	r := &Registry{
		definitions: defs,
		byName:      make(map[string]domain.Definition, len(defs)),
		factories:   make(map[string]domain.StrategyFactory, len(factories)),
		cache:       map[string]domain.Strategy{},
	}
	for _, def := range defs {
		r.byName[def.Name] = def
	}
	for _, factory := range factories {
		r.factories[factory.Name] = factory.New
	}
	return r
}

func (r *Registry) Definitions() []domain.Definition {
	out := make([]domain.Definition, len(r.definitions))
	copy(out, r.definitions)
	return out
}

func (r *Registry) Definition(name string) (domain.Definition, error) {
	def, ok := r.byName[name]
	if !ok {
		return domain.Definition{}, fmt.Errorf("%w: %s", domain.ErrUnknownFeature, name)
	}
	return def, nil
}

func (r *Registry) Exists(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Strategy returns the strategy bound to the named feature.
func (r *Registry) Strategy(name string) (domain.Strategy, error) {
	def, err := r.Definition(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if strategy, ok := r.cache[name]; ok {
		return strategy, nil
	}

	factory, ok := r.factories[def.Strategy]
	if !ok || factory == nil {
		return nil, fmt.Errorf("%w: feature %s uses unknown strategy %q", domain.ErrStrategyMisconfigured, name, def.Strategy)
	}
	strategy, err := factory(def)
	if err != nil {
		return nil, fmt.Errorf("%w: feature %s: %v", domain.ErrStrategyMisconfigured, name, err)
	}
	if strategy == nil {
		return nil, fmt.Errorf("%w: feature %s: strategy %q returned nothing", domain.ErrStrategyMisconfigured, name, def.Strategy)
	}

	r.cache[name] = strategy
	return strategy, nil
}
