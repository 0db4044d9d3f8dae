package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/clock"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/smallbiznis/premium/internal/feature/registry"
	"github.com/smallbiznis/premium/internal/reference"
	settingdomain "github.com/smallbiznis/premium/internal/setting/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultsKeyPrefix = "featureDefaults"

type ManagerParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Settings settingdomain.Repository
	Registry *registry.Registry
	Resolver *reference.Resolver
}

// Manager resolves and materializes feature parameters. All reads and
// writes go through db, which is a transaction handle after WithTx.
type Manager struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	settings settingdomain.Repository
	registry *registry.Registry
	resolver *reference.Resolver
}

func NewManager(p ManagerParams) domain.Manager {
	return &Manager{
		db:       p.DB,
		log:      p.Log.Named("feature.manager"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		settings: p.Settings,
		registry: p.Registry,
		resolver: p.Resolver,
	}
}

func (m *Manager) WithTx(tx *gorm.DB) domain.Manager {
	clone := *m
	clone.db = tx
	return &clone
}

func (m *Manager) Definitions() []domain.Definition {
	return m.registry.Definitions()
}

func (m *Manager) Definition(feature string) (domain.Definition, error) {
	return m.registry.Definition(feature)
}

func (m *Manager) FeatureExists(feature string) bool {
	return m.registry.Exists(feature)
}

func (m *Manager) Strategy(feature string) (domain.Strategy, error) {
	return m.registry.Strategy(feature)
}

// DefaultConfig returns the stored default of feature, falling back to the
// strategy defaults with the feature switched off.
func (m *Manager) DefaultConfig(ctx context.Context, feature string) (domain.Params, error) {
	strategy, err := m.registry.Strategy(feature)
	if err != nil {
		return nil, err
	}

	raw, err := m.settings.Get(ctx, m.db, defaultsKey(feature))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return strategy.DefaultConfig().WithActive(false), nil
	}

	var params domain.Params
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("%w: stored default of %s: %v", domain.ErrInvalidConfig, feature, err)
	}
	if params == nil {
		return strategy.DefaultConfig().WithActive(false), nil
	}
	return params, nil
}

func (m *Manager) SetDefaultConfig(ctx context.Context, feature string, cfg domain.Params) error {
	if !m.registry.Exists(feature) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownFeature, feature)
	}
	if !cfg.HasActive() {
		return fmt.Errorf("%w: %s default needs a boolean %q", domain.ErrInvalidConfig, feature, domain.ParamActive)
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return m.settings.Set(ctx, m.db, defaultsKey(feature), datatypes.JSON(raw))
}

func (m *Manager) HasParameters(feature string) (bool, error) {
	strategy, err := m.registry.Strategy(feature)
	if err != nil {
		return false, err
	}
	return len(strategy.DefaultConfig()) > 0, nil
}

func (m *Manager) HasParameter(feature, name string) (bool, error) {
	strategy, err := m.registry.Strategy(feature)
	if err != nil {
		return false, err
	}
	_, ok := strategy.DefaultConfig()[name]
	return ok, nil
}

// IsValidCandidate checks the owner's kind and its parent kinds against the
// feature's candidates.
func (m *Manager) IsValidCandidate(feature string, owner any) (bool, error) {
	def, err := m.registry.Definition(feature)
	if err != nil {
		return false, err
	}
	ref, err := m.resolver.RefOf(owner)
	if err != nil {
		return false, err
	}
	return def.IsCandidate(m.resolver.Lineage(ref.Type)), nil
}

func (m *Manager) AssignmentFor(ctx context.Context, owner any, feature string) (*domain.Assignment, error) {
	ref, err := m.resolver.RefOf(owner)
	if err != nil {
		return nil, err
	}
	return m.repo.FindTopForOwner(ctx, m.db, ref, feature)
}

func (m *Manager) AssignmentsByOwner(ctx context.Context, owner any, feature string) ([]domain.Assignment, error) {
	ref, err := m.resolver.RefOf(owner)
	if err != nil {
		return nil, err
	}
	return m.repo.ListByOwner(ctx, m.db, ref, feature)
}

// Parameters returns the effective configuration of feature for owner. A
// nil owner yields the default.
func (m *Manager) Parameters(ctx context.Context, feature string, owner any) (domain.Params, error) {
	defaults, err := m.DefaultConfig(ctx, feature)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return defaults, nil
	}

	assignment, err := m.AssignmentFor(ctx, owner, feature)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return defaults, nil
	}

	strategy, err := m.registry.Strategy(feature)
	if err != nil {
		return nil, err
	}
	return domain.Resolve(defaults, strategy.CalculateRating(defaults), assignment), nil
}

func (m *Manager) Parameter(ctx context.Context, feature, name string, owner any) (any, error) {
	params, err := m.Parameters(ctx, feature, owner)
	if err != nil {
		return nil, err
	}
	value, ok := params[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", domain.ErrUnknownParameter, feature, name)
	}
	return value, nil
}

func (m *Manager) IsActive(ctx context.Context, feature string, owner any) (bool, error) {
	if owner != nil {
		assignment, err := m.AssignmentFor(ctx, owner, feature)
		if err != nil {
			return false, err
		}
		if assignment != nil {
			return true, nil
		}
	}
	defaults, err := m.DefaultConfig(ctx, feature)
	if err != nil {
		return false, err
	}
	return defaults.Active(), nil
}

func (m *Manager) Assign(ctx context.Context, feature string, owner any, params domain.Params, source any) (*domain.Assignment, error) {
	strategy, err := m.registry.Strategy(feature)
	if err != nil {
		return nil, err
	}

	ok, err := m.IsValidCandidate(feature, owner)
	if err != nil {
		return nil, err
	}
	ownerRef, _ := m.resolver.RefOf(owner)
	if !ok {
		return nil, fmt.Errorf("%w: feature %s owner %s", domain.ErrInvalidCandidate, feature, ownerRef)
	}
	sourceRef, err := m.resolver.RefOf(source)
	if err != nil {
		return nil, err
	}

	ownerIDs, err := ownerRef.CanonicalIdentifiers()
	if err != nil {
		return nil, err
	}
	sourceIDs, err := sourceRef.CanonicalIdentifiers()
	if err != nil {
		return nil, err
	}

	stored := params.Without(domain.ParamActive)
	assignment := &domain.Assignment{
		ID:                m.genID.Generate(),
		Feature:           feature,
		OwnerType:         ownerRef.Type,
		OwnerIdentifiers:  ownerIDs,
		SourceType:        sourceRef.Type,
		SourceIdentifiers: sourceIDs,
		Params:            datatypes.JSONMap(stored),
		Rating:            strategy.CalculateRating(stored),
		CreatedAt:         m.clock.Now(),
	}
	if err := m.repo.Create(ctx, m.db, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

// UpdateOwner resolves feature for owner and hands the result to the
// strategy. It never begins or commits a transaction.
func (m *Manager) UpdateOwner(ctx context.Context, feature string, owner any) error {
	strategy, err := m.registry.Strategy(feature)
	if err != nil {
		return err
	}
	params, err := m.Parameters(ctx, feature, owner)
	if err != nil {
		return err
	}
	if err := strategy.UpdateOwner(ctx, m.db, owner, params); err != nil {
		ref, _ := m.resolver.RefOf(owner)
		return fmt.Errorf("%w: feature %s owner %s: %w", domain.ErrStrategyFailure, feature, ref, err)
	}
	return nil
}

func defaultsKey(feature string) string {
	name := strings.TrimSpace(feature)
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return defaultsKeyPrefix + name
	}
	return defaultsKeyPrefix + string(unicode.ToUpper(r)) + name[size:]
}
