package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/account"
	accountdomain "github.com/smallbiznis/premium/internal/account/domain"
	"github.com/smallbiznis/premium/internal/clock"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/smallbiznis/premium/internal/feature/registry"
	featurerepo "github.com/smallbiznis/premium/internal/feature/repository"
	"github.com/smallbiznis/premium/internal/feature/strategy"
	"github.com/smallbiznis/premium/internal/reference"
	settingdomain "github.com/smallbiznis/premium/internal/setting/domain"
	settingrepo "github.com/smallbiznis/premium/internal/setting/repository"
	dbpkg "github.com/smallbiznis/premium/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const kindAdmin = "admin"

// adminOwner is a user subtype used to exercise candidate lineage.
type adminOwner struct {
	ID snowflake.ID
}

func (a *adminOwner) Reference() reference.Ref {
	return reference.NewRef(kindAdmin, a.ID)
}

type fixture struct {
	ctx     context.Context
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	manager domain.Manager
}

func newFixture(t *testing.T, defs ...domain.Definition) *fixture {
	t.Helper()
	if len(defs) == 0 {
		defs = []domain.Definition{
			{Name: "storageQuota", Strategy: strategy.NameQuota, Candidates: []string{accountdomain.KindUser}, Options: map[string]any{"default_limit": 5}},
			{Name: "adFree", Strategy: strategy.NameToggle, Candidates: []string{accountdomain.KindOrganization}},
			{Name: "broken", Strategy: "missing", Candidates: []string{accountdomain.KindUser}},
		}
	}
	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&accountdomain.User{},
		&domain.Assignment{},
		&settingdomain.Setting{},
		&strategy.OwnerLimit{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))

	resolver := reference.NewResolver()
	account.RegisterKinds(resolver)
	resolver.Register(reference.Kind{Name: kindAdmin, Parent: accountdomain.KindUser})

	reg := registry.NewRegistry(
		defs,
		[]domain.NamedStrategyFactory{
			{Name: strategy.NameToggle, New: strategy.NewToggle},
			{Name: strategy.NameQuota, New: strategy.NewQuotaFactory(clk)},
		},
	)

	manager := NewManager(ManagerParams{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     featurerepo.Provide(),
		Settings: settingrepo.Provide(settingrepo.Params{GenID: node, Clock: clk}),
		Registry: reg,
		Resolver: resolver,
	})
	return &fixture{ctx: context.Background(), db: db, node: node, clock: clk, manager: manager}
}

func (f *fixture) user(t *testing.T) *accountdomain.User {
	t.Helper()
	now := f.clock.Now()
	u := &accountdomain.User{ID: f.node.Generate(), Username: f.node.Generate().String(), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func TestDefaultConfigFallsBackToInactiveStrategyDefault(t *testing.T) {
	f := newFixture(t)

	cfg, err := f.manager.DefaultConfig(f.ctx, "storageQuota")
	require.NoError(t, err)
	assert.Equal(t, domain.Params{"limit": 5, "active": false}, cfg)

	_, err = f.manager.DefaultConfig(f.ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownFeature)

	_, err = f.manager.DefaultConfig(f.ctx, "broken")
	assert.ErrorIs(t, err, domain.ErrStrategyMisconfigured)
}

func TestSetDefaultConfigRequiresActiveFlag(t *testing.T) {
	f := newFixture(t)

	err := f.manager.SetDefaultConfig(f.ctx, "storageQuota", domain.Params{"limit": 3})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	err = f.manager.SetDefaultConfig(f.ctx, "nope", domain.Params{"active": true})
	assert.ErrorIs(t, err, domain.ErrUnknownFeature)

	require.NoError(t, f.manager.SetDefaultConfig(f.ctx, "storageQuota", domain.Params{"limit": 3, "active": true}))
	cfg, err := f.manager.DefaultConfig(f.ctx, "storageQuota")
	require.NoError(t, err)
	assert.True(t, cfg.Equal(domain.Params{"limit": 3, "active": true}))

	var row settingdomain.Setting
	require.NoError(t, f.db.Where("name = ?", "featureDefaultsStorageQuota").Take(&row).Error)
}

func TestInactiveDefaultWithoutAssignment(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)

	active, err := f.manager.IsActive(f.ctx, "storageQuota", u)
	require.NoError(t, err)
	assert.False(t, active)

	params, err := f.manager.Parameters(f.ctx, "storageQuota", u)
	require.NoError(t, err)
	assert.False(t, params.Active())

	guest, err := f.manager.Parameters(f.ctx, "storageQuota", nil)
	require.NoError(t, err)
	assert.Equal(t, params, guest)
}

func TestAssignmentImpliesActivation(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	require.NoError(t, f.manager.SetDefaultConfig(f.ctx, "storageQuota", domain.Params{"limit": 1, "active": false}))

	_, err := f.manager.Assign(f.ctx, "storageQuota", u, domain.Params{"limit": 3, "active": false}, u)
	require.NoError(t, err)

	params, err := f.manager.Parameters(f.ctx, "storageQuota", u)
	require.NoError(t, err)
	assert.True(t, params.Active())
	limit, err := params.Int("limit")
	require.NoError(t, err)
	assert.Equal(t, 3, limit)

	active, err := f.manager.IsActive(f.ctx, "storageQuota", u)
	require.NoError(t, err)
	assert.True(t, active)

	stored, err := f.manager.AssignmentFor(f.ctx, u, "storageQuota")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotContains(t, stored.Parameters(), "active")
	assert.Equal(t, 3, stored.Rating)
}

func TestDefaultRatingMonotonicity(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	_, err := f.manager.Assign(f.ctx, "storageQuota", u, domain.Params{"limit": 3}, u)
	require.NoError(t, err)

	limitFor := func() int {
		params, err := f.manager.Parameters(f.ctx, "storageQuota", u)
		require.NoError(t, err)
		require.True(t, params.Active())
		limit, err := params.Int("limit")
		require.NoError(t, err)
		return limit
	}

	require.NoError(t, f.manager.SetDefaultConfig(f.ctx, "storageQuota", domain.Params{"limit": 5, "active": true}))
	assert.Equal(t, 5, limitFor())

	require.NoError(t, f.manager.SetDefaultConfig(f.ctx, "storageQuota", domain.Params{"limit": 2, "active": true}))
	assert.Equal(t, 3, limitFor())

	require.NoError(t, f.manager.SetDefaultConfig(f.ctx, "storageQuota", domain.Params{"limit": 5, "active": true}))
	assert.Equal(t, 5, limitFor())

	value, err := f.manager.Parameter(f.ctx, "storageQuota", "active", u)
	require.NoError(t, err)
	assert.Equal(t, true, value)

	_, err = f.manager.Parameter(f.ctx, "storageQuota", "unused", u)
	assert.ErrorIs(t, err, domain.ErrUnknownParameter)
}

func TestCandidateLineage(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	admin := &adminOwner{ID: f.node.Generate()}

	ok, err := f.manager.IsValidCandidate("storageQuota", u)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.manager.IsValidCandidate("storageQuota", admin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.manager.IsValidCandidate("adFree", u)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.manager.IsValidCandidate("nope", u)
	assert.ErrorIs(t, err, domain.ErrUnknownFeature)

	_, err = f.manager.Assign(f.ctx, "adFree", u, domain.Params{}, u)
	assert.ErrorIs(t, err, domain.ErrInvalidCandidate)
}

func TestUpdateOwnerMaterializesQuota(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	require.NoError(t, f.manager.SetDefaultConfig(f.ctx, "storageQuota", domain.Params{"limit": 5, "active": true}))

	require.NoError(t, f.manager.UpdateOwner(f.ctx, "storageQuota", u))
	row, err := strategy.LimitFor(f.ctx, f.db, "storageQuota", u.Reference())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 5, row.Value)
	assert.True(t, row.Active)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		m := f.manager.WithTx(tx)
		if _, err := m.Assign(f.ctx, "storageQuota", u, domain.Params{"limit": 40}, u); err != nil {
			return err
		}
		return m.UpdateOwner(f.ctx, "storageQuota", u)
	})
	require.NoError(t, err)

	row, err = strategy.LimitFor(f.ctx, f.db, "storageQuota", u.Reference())
	require.NoError(t, err)
	assert.Equal(t, 40, row.Value)

	all, err := f.manager.AssignmentsByOwner(f.ctx, u, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestParameterIntrospection(t *testing.T) {
	f := newFixture(t)

	has, err := f.manager.HasParameters("storageQuota")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = f.manager.HasParameters("adFree")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = f.manager.HasParameter("storageQuota", "limit")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = f.manager.HasParameter("storageQuota", "interval")
	require.NoError(t, err)
	assert.False(t, has)

	assert.True(t, f.manager.FeatureExists("adFree"))
	assert.False(t, f.manager.FeatureExists("AdFree"))
	assert.Len(t, f.manager.Definitions(), 3)
}

func TestDefaultsKey(t *testing.T) {
	assert.Equal(t, "featureDefaultsStorageQuota", defaultsKey("storageQuota"))
	assert.Equal(t, "featureDefaultsTest", defaultsKey("test"))
	assert.Equal(t, "featureDefaults", defaultsKey(""))
}
