package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/premium/internal/account/domain"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/smallbiznis/premium/internal/feature/strategy"
	jobdomain "github.com/smallbiznis/premium/internal/jobqueue/domain"
	"github.com/smallbiznis/premium/internal/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) Push(ctx context.Context, task string, payload any) (snowflake.ID, error) {
	args := m.Called(ctx, task, payload)
	return args.Get(0).(snowflake.ID), args.Error(1)
}

func (m *mockQueue) Reserve(ctx context.Context, limit int) ([]jobdomain.Job, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]jobdomain.Job), args.Error(1)
}

func (m *mockQueue) Extend(ctx context.Context, job jobdomain.Job, until time.Time) error {
	return m.Called(ctx, job, until).Error(0)
}

func (m *mockQueue) Complete(ctx context.Context, job jobdomain.Job) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockQueue) Retry(ctx context.Context, job jobdomain.Job, at time.Time, cause error) error {
	return m.Called(ctx, job, at, cause).Error(0)
}

func (m *mockQueue) Fail(ctx context.Context, job jobdomain.Job, cause error) error {
	return m.Called(ctx, job, cause).Error(0)
}

func newService(t *testing.T) (*fixture, *mockQueue, domain.Service) {
	t.Helper()
	f := newFixture(t)
	q := &mockQueue{}
	svc := New(Params{Log: zap.NewNop(), Manager: f.manager, Queue: q})
	return f, q, svc
}

func TestSetDefaultsMergesAndQueuesReconciliation(t *testing.T) {
	f, q, svc := newService(t)

	q.On("Push", mock.Anything, domain.TaskReconcileDefaults, mock.MatchedBy(func(p domain.ReconcilePayload) bool {
		return p.Feature == "storageQuota" &&
			p.UserID == 7 &&
			p.OldConfig.Equal(domain.Params{"limit": 5, "active": false})
	})).Return(snowflake.ID(1), nil).Once()

	resp, err := svc.SetDefaults(f.ctx, domain.SetDefaultsRequest{
		Feature: "storageQuota",
		Config:  domain.Params{"limit": "12", "active": "true"},
		UserID:  7,
	})
	require.NoError(t, err)
	assert.True(t, resp.Changed)
	assert.Equal(t, domain.Params{"limit": 12, "active": true}, resp.NewConfig)
	q.AssertExpectations(t)

	stored, err := f.manager.DefaultConfig(f.ctx, "storageQuota")
	require.NoError(t, err)
	assert.True(t, stored.Equal(domain.Params{"limit": 12, "active": true}))

	// Only the flag changes; the limit keeps its stored value.
	q.On("Push", mock.Anything, domain.TaskReconcileDefaults, mock.Anything).Return(snowflake.ID(2), nil).Once()
	resp, err = svc.SetDefaults(f.ctx, domain.SetDefaultsRequest{
		Feature: "storageQuota",
		Config:  domain.Params{"active": false},
		UserID:  7,
	})
	require.NoError(t, err)
	assert.True(t, resp.NewConfig.Equal(domain.Params{"limit": 12, "active": false}))
	q.AssertExpectations(t)
}

func TestSetDefaultsWithoutChangeQueuesNothing(t *testing.T) {
	f, q, svc := newService(t)

	resp, err := svc.SetDefaults(f.ctx, domain.SetDefaultsRequest{
		Feature: "storageQuota",
		Config:  domain.Params{"limit": 5},
		UserID:  7,
	})
	require.NoError(t, err)
	assert.False(t, resp.Changed)
	q.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetDefaultsRejectsBadInput(t *testing.T) {
	f, q, svc := newService(t)

	cases := []struct {
		name   string
		req    domain.SetDefaultsRequest
		target error
	}{
		{"unknown feature", domain.SetDefaultsRequest{Feature: "nope", Config: domain.Params{}, UserID: 1}, domain.ErrUnknownFeature},
		{"unknown parameter", domain.SetDefaultsRequest{Feature: "storageQuota", Config: domain.Params{"speed": 1}, UserID: 1}, domain.ErrUnknownParameter},
		{"negative limit", domain.SetDefaultsRequest{Feature: "storageQuota", Config: domain.Params{"limit": -1}, UserID: 1}, domain.ErrInvalidParameter},
		{"not a number", domain.SetDefaultsRequest{Feature: "storageQuota", Config: domain.Params{"limit": "lots"}, UserID: 1}, domain.ErrInvalidParameter},
		{"bad flag", domain.SetDefaultsRequest{Feature: "storageQuota", Config: domain.Params{"active": "maybe"}, UserID: 1}, domain.ErrInvalidParameter},
		{"no user", domain.SetDefaultsRequest{Feature: "storageQuota", Config: domain.Params{"active": true}}, domain.ErrInvalidPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SetDefaults(f.ctx, tc.req)
			assert.ErrorIs(t, err, tc.target)
		})
	}
	q.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetDefaultsRestoresPreviousDefaultWhenQueueFails(t *testing.T) {
	f, q, svc := newService(t)
	require.NoError(t, f.manager.SetDefaultConfig(f.ctx, "storageQuota", domain.Params{"limit": 5, "active": true}))

	down := errors.New("queue down")
	q.On("Push", mock.Anything, domain.TaskReconcileDefaults, mock.Anything).Return(snowflake.ID(0), down).Once()

	_, err := svc.SetDefaults(f.ctx, domain.SetDefaultsRequest{
		Feature: "storageQuota",
		Config:  domain.Params{"limit": 50},
		UserID:  7,
	})
	require.ErrorIs(t, err, down)

	stored, err := f.manager.DefaultConfig(f.ctx, "storageQuota")
	require.NoError(t, err)
	assert.True(t, stored.Equal(domain.Params{"limit": 5, "active": true}))
}

func TestRequestAssignValidatesAndQueues(t *testing.T) {
	f, q, svc := newService(t)
	owner := reference.NewRef("user", f.node.Generate())

	q.On("Push", mock.Anything, domain.TaskAssign, mock.MatchedBy(func(p domain.AssignPayload) bool {
		return p.Feature == "storageQuota" && p.Params.Equal(domain.Params{"limit": 9})
	})).Return(snowflake.ID(1), nil).Once()

	err := svc.RequestAssign(f.ctx, domain.AssignRequest{
		Feature: "storageQuota",
		Owner:   owner,
		Source:  owner,
		Params:  domain.Params{"limit": "9", "active": false},
	})
	require.NoError(t, err)
	q.AssertExpectations(t)

	err = svc.RequestAssign(f.ctx, domain.AssignRequest{Feature: "storageQuota", Source: owner, Params: domain.Params{}})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	err = svc.RequestAssign(f.ctx, domain.AssignRequest{Feature: "storageQuota", Owner: owner, Source: owner, Params: domain.Params{"limit": -4}})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestRequestRemoveValidatesAndQueues(t *testing.T) {
	f, q, svc := newService(t)

	q.On("Push", mock.Anything, domain.TaskRemove, domain.RemovePayload{AssignmentID: 11, UserID: 2}).
		Return(snowflake.ID(1), nil).Once()

	require.NoError(t, svc.RequestRemove(f.ctx, domain.RemoveRequest{AssignmentID: 11, UserID: 2}))
	assert.ErrorIs(t, svc.RequestRemove(f.ctx, domain.RemoveRequest{UserID: 2}), domain.ErrInvalidPayload)
	q.AssertExpectations(t)
}

func TestListFeatures(t *testing.T) {
	f := newFixture(t,
		domain.Definition{Name: "storageQuota", Strategy: strategy.NameQuota, Candidates: []string{accountdomain.KindUser}, Options: map[string]any{"default_limit": 5}},
		domain.Definition{Name: "adFree", Strategy: strategy.NameToggle, Candidates: []string{accountdomain.KindOrganization}},
	)
	svc := New(Params{Log: zap.NewNop(), Manager: f.manager, Queue: &mockQueue{}})
	require.NoError(t, f.manager.SetDefaultConfig(f.ctx, "adFree", domain.Params{"active": true}))

	features, err := svc.ListFeatures(f.ctx)
	require.NoError(t, err)
	require.Len(t, features, 2)

	byName := map[string]domain.FeatureResponse{}
	for _, feat := range features {
		byName[feat.Name] = feat
	}
	quota := byName["storageQuota"]
	assert.Equal(t, strategy.NameQuota, quota.Strategy)
	assert.Equal(t, []string{accountdomain.KindUser}, quota.Candidates)
	assert.True(t, quota.Defaults.Equal(domain.Params{"limit": 5, "active": false}))
	require.Len(t, quota.Parameters, 1)
	assert.Equal(t, strategy.ParamLimit, quota.Parameters[0].Name)
	assert.Equal(t, strategy.TypeInt, quota.Parameters[0].Type)

	assert.True(t, byName["adFree"].Defaults.Active())
}

func TestListFeaturesSurfacesMisconfiguredStrategy(t *testing.T) {
	f, _, svc := newService(t)

	_, err := svc.ListFeatures(f.ctx)
	require.ErrorIs(t, err, domain.ErrStrategyMisconfigured)
}
