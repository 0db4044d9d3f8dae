package cli

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
	"github.com/smallbiznis/premium/internal/feature/service"
	"github.com/smallbiznis/premium/internal/feature/strategy"
	"github.com/smallbiznis/premium/internal/migration"
	"github.com/smallbiznis/premium/internal/reference"
	settingrepo "github.com/smallbiznis/premium/internal/setting/repository"
	dbpkg "github.com/smallbiznis/premium/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveReportsDefaultsAndOwnerAssignment(t *testing.T) {
	ctx := context.Background()
	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.Migrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))

	resolver := reference.NewResolver()
	account.RegisterKinds(resolver)

	reg := registry.NewRegistry(
		[]domain.Definition{{Name: "storageQuota", Strategy: strategy.NameQuota, Candidates: []string{accountdomain.KindUser}}},
		[]domain.NamedStrategyFactory{{Name: strategy.NameQuota, New: strategy.NewQuotaFactory(clk)}},
	)
	manager := service.NewManager(service.ManagerParams{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     featurerepo.Provide(),
		Settings: settingrepo.Provide(settingrepo.Params{GenID: node, Clock: clk}),
		Registry: reg,
		Resolver: resolver,
	})

	now := clk.Now()
	user := &accountdomain.User{ID: node.Generate(), Username: "ada", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(user).Error)

	res, err := resolve(ctx, conn, resolver, manager, "storageQuota", nil)
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Empty(t, res.Owner)

	assignment, err := manager.Assign(ctx, "storageQuota", user, domain.Params{"limit": 25}, user)
	require.NoError(t, err)

	ref := user.Reference()
	res, err = resolve(ctx, conn, resolver, manager, "storageQuota", &ref)
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, assignment.ID.String(), res.AssignmentID)
	limit, err := res.Params.Int(strategy.ParamLimit)
	require.NoError(t, err)
	assert.Equal(t, 25, limit)

	missing := reference.NewRef(accountdomain.KindUser, node.Generate())
	_, err = resolve(ctx, conn, resolver, manager, "storageQuota", &missing)
	assert.ErrorIs(t, err, reference.ErrNotFound)
}
