package reference

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// Kind describes one entity type that references may point at.
type Kind struct {
	Name string
	// Parent names the supertype kind, if any. Candidate checks accept an
	// owner when any kind in its lineage is listed.
	Parent string
	Load   func(ctx context.Context, db *gorm.DB, ref Ref) (Referenceable, error)
	Each   func(ctx context.Context, db *gorm.DB, batchSize int, fn func(Referenceable) error) error
}

// Resolver maps references to live entities and back.
type Resolver struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

func NewResolver() *Resolver {
	return &Resolver{kinds: map[string]Kind{}}
}

func (r *Resolver) Register(kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind.Name] = kind
}

func (r *Resolver) kind(name string) (Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.kinds[name]
	if !ok {
		return Kind{}, fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	return kind, nil
}

// Load fetches the entity a reference points at.
func (r *Resolver) Load(ctx context.Context, db *gorm.DB, ref Ref) (Referenceable, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	kind, err := r.kind(ref.Type)
	if err != nil {
		return nil, err
	}
	obj, err := kind.Load(ctx, db, ref)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return obj, nil
}

// RefOf returns the reference of a live entity.
func (r *Resolver) RefOf(obj any) (Ref, error) {
	entity, ok := obj.(Referenceable)
	if !ok || entity == nil {
		return Ref{}, fmt.Errorf("%w: %T", ErrNotReferenceable, obj)
	}
	ref := entity.Reference()
	if err := ref.Validate(); err != nil {
		return Ref{}, err
	}
	return ref, nil
}

// Lineage returns the kind followed by its parent kinds, nearest first.
func (r *Resolver) Lineage(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lineage := []string{}
	seen := map[string]bool{}
	for current := name; current != "" && !seen[current]; {
		seen[current] = true
		lineage = append(lineage, current)
		kind, ok := r.kinds[current]
		if !ok {
			break
		}
		current = kind.Parent
	}
	return lineage
}

// Each visits every persisted entity of the given kind in batches.
func (r *Resolver) Each(ctx context.Context, db *gorm.DB, name string, batchSize int, fn func(Referenceable) error) error {
	kind, err := r.kind(name)
	if err != nil {
		return err
	}
	if kind.Each == nil {
		return fmt.Errorf("%w: %s cannot be enumerated", ErrUnknownKind, name)
	}
	return kind.Each(ctx, db, batchSize, fn)
}
