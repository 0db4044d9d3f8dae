package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/account"
	accountdomain "github.com/smallbiznis/premium/internal/account/domain"
	"github.com/smallbiznis/premium/internal/clock"
	"github.com/smallbiznis/premium/internal/event"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/smallbiznis/premium/internal/feature/registry"
	featurerepo "github.com/smallbiznis/premium/internal/feature/repository"
	"github.com/smallbiznis/premium/internal/feature/service"
	"github.com/smallbiznis/premium/internal/feature/strategy"
	"github.com/smallbiznis/premium/internal/reference"
	settingdomain "github.com/smallbiznis/premium/internal/setting/domain"
	settingrepo "github.com/smallbiznis/premium/internal/setting/repository"
	dbpkg "github.com/smallbiznis/premium/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testFeature = "test"

// testStrategy rates by "param" and writes the resolved state into the
// owner's display name. param 66 and the display name "throw" make the
// owner update fail.
type testStrategy struct {
	strategy.Base
}

func newTestStrategy(def domain.Definition) (domain.Strategy, error) {
	return &testStrategy{Base: strategy.Base{
		Feature: def.Name,
		Parameters: []strategy.Parameter{{
			Descriptor: domain.ParameterDescriptor{Name: "param", Label: "Param", Type: strategy.TypeInt},
			Default:    1,
			Rule:       "gte=0",
		}},
	}}, nil
}

func (s *testStrategy) CalculateRating(params domain.Params) int {
	value, _ := params.Int("param")
	return value
}

func (s *testStrategy) UpdateOwner(ctx context.Context, tx *gorm.DB, owner any, params domain.Params) error {
	user, ok := owner.(*accountdomain.User)
	if !ok {
		return fmt.Errorf("unexpected owner %T", owner)
	}
	param, _ := params.Int("param")
	if param == 66 {
		return errors.New("evil things happen")
	}
	if user.DisplayName == "throw" {
		return errors.New("as you wish")
	}

	name := "inactive"
	if params.Active() {
		name = strconv.Itoa(param)
	}
	user.DisplayName = name
	return tx.WithContext(ctx).Model(user).Update("display_name", name).Error
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	node     *snowflake.Node
	manager  domain.Manager
	resolver *reference.Resolver

	assign    *Assign
	remove    *Remove
	reconcile *ReconcileDefaults
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&accountdomain.User{},
		&accountdomain.Organization{},
		&domain.Assignment{},
		&settingdomain.Setting{},
		&event.Record{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))

	resolver := reference.NewResolver()
	account.RegisterKinds(resolver)

	reg := registry.NewRegistry(
		[]domain.Definition{
			{Name: testFeature, Strategy: "test", Candidates: []string{accountdomain.KindUser}},
			{Name: "orgOnly", Strategy: "test", Candidates: []string{accountdomain.KindOrganization}},
		},
		[]domain.NamedStrategyFactory{{Name: "test", New: newTestStrategy}},
	)

	repo := featurerepo.Provide()
	manager := service.NewManager(service.ManagerParams{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repo,
		Settings: settingrepo.Provide(settingrepo.Params{GenID: node, Clock: clk}),
		Registry: reg,
		Resolver: resolver,
	})

	outbox := event.NewOutbox(event.OutboxParams{GenID: node, Clock: clk})
	bus := event.NewBus(event.Params{Log: zap.NewNop(), Subscriptions: []event.Subscription{outbox.Subscription()}})

	p := Params{
		DB:       db,
		Log:      zap.NewNop(),
		Manager:  manager,
		Repo:     repo,
		Resolver: resolver,
		Bus:      bus,
	}
	return &harness{
		t:         t,
		ctx:       context.Background(),
		db:        db,
		node:      node,
		manager:   manager,
		resolver:  resolver,
		assign:    NewAssign(p),
		remove:    NewRemove(p),
		reconcile: NewReconcileDefaults(p),
	}
}

func (h *harness) createUser(name string) *accountdomain.User {
	h.t.Helper()
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	user := &accountdomain.User{ID: h.node.Generate(), Username: name, CreatedAt: now, UpdatedAt: now}
	require.NoError(h.t, h.db.Create(user).Error)
	return user
}

func (h *harness) displayName(user *accountdomain.User) string {
	h.t.Helper()
	var fresh accountdomain.User
	require.NoError(h.t, h.db.Where("id = ?", user.ID).Take(&fresh).Error)
	return fresh.DisplayName
}

func (h *harness) setDisplayName(user *accountdomain.User, name string) {
	h.t.Helper()
	require.NoError(h.t, h.db.Model(&accountdomain.User{}).Where("id = ?", user.ID).Update("display_name", name).Error)
	user.DisplayName = name
}

func (h *harness) setDefault(params domain.Params) {
	h.t.Helper()
	require.NoError(h.t, h.manager.SetDefaultConfig(h.ctx, testFeature, params))
}

func (h *harness) grant(user *accountdomain.User, params domain.Params) *domain.Assignment {
	h.t.Helper()
	assignment, err := h.manager.Assign(h.ctx, testFeature, user, params, user)
	require.NoError(h.t, err)
	return assignment
}

func (h *harness) updateOwners(users ...*accountdomain.User) {
	h.t.Helper()
	for _, user := range users {
		require.NoError(h.t, h.manager.UpdateOwner(h.ctx, testFeature, user))
	}
}

func (h *harness) countAssignments() int64 {
	h.t.Helper()
	var n int64
	require.NoError(h.t, h.db.Model(&domain.Assignment{}).Count(&n).Error)
	return n
}

func (h *harness) events(name string) []event.Record {
	h.t.Helper()
	var records []event.Record
	require.NoError(h.t, h.db.Where("event_type = ?", name).Order("id ASC").Find(&records).Error)
	return records
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
