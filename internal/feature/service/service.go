package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/smallbiznis/premium/internal/feature/strategy"
	jobdomain "github.com/smallbiznis/premium/internal/jobqueue/domain"
	"github.com/spf13/cast"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Manager domain.Manager
	Queue   jobdomain.Queue
}

type Service struct {
	log      *zap.Logger
	manager  domain.Manager
	queue    jobdomain.Queue
	validate *validator.Validate
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("feature.service"),
		manager:  p.Manager,
		queue:    p.Queue,
		validate: validator.New(),
	}
}

func (s *Service) ListFeatures(ctx context.Context) ([]domain.FeatureResponse, error) {
	defs := s.manager.Definitions()
	resp := make([]domain.FeatureResponse, 0, len(defs))
	for _, def := range defs {
		strat, err := s.manager.Strategy(def.Name)
		if err != nil {
			return nil, err
		}
		defaults, err := s.manager.DefaultConfig(ctx, def.Name)
		if err != nil {
			return nil, err
		}

		names := make([]string, 0, len(strat.DefaultConfig()))
		for name := range strat.DefaultConfig() {
			names = append(names, name)
		}
		sort.Strings(names)

		descriptors := make([]domain.ParameterDescriptor, 0, len(names))
		for _, name := range names {
			desc, err := strat.ParameterDescriptor(name)
			if err != nil {
				return nil, err
			}
			descriptors = append(descriptors, desc)
		}

		resp = append(resp, domain.FeatureResponse{
			Name:       def.Name,
			Strategy:   def.Strategy,
			Candidates: append([]string(nil), def.Candidates...),
			Defaults:   defaults,
			Parameters: descriptors,
		})
	}
	return resp, nil
}

// SetDefaults merges req.Config into the current default of the feature,
// persists it and queues the reconciliation of every candidate owner.
// Parameters left out of req.Config keep their current values.
func (s *Service) SetDefaults(ctx context.Context, req domain.SetDefaultsRequest) (*domain.SetDefaultsResponse, error) {
	feature := strings.TrimSpace(req.Feature)
	if req.UserID <= 0 {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidPayload)
	}
	strat, err := s.manager.Strategy(feature)
	if err != nil {
		return nil, err
	}

	current, err := s.manager.DefaultConfig(ctx, feature)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	for name, raw := range req.Config {
		value, err := s.normalizeParam(feature, strat, name, raw)
		if err != nil {
			return nil, err
		}
		next[name] = value
	}
	if !next.HasActive() {
		next[domain.ParamActive] = false
	}

	resp := &domain.SetDefaultsResponse{
		Feature:   feature,
		OldConfig: current,
		NewConfig: next,
		Changed:   !current.Equal(next),
	}
	if !resp.Changed {
		return resp, nil
	}

	if err := s.manager.SetDefaultConfig(ctx, feature, next); err != nil {
		return nil, err
	}

	_, err = s.queue.Push(ctx, domain.TaskReconcileDefaults, domain.ReconcilePayload{
		Feature:   feature,
		OldConfig: current,
		UserID:    req.UserID.Int64(),
	})
	if err != nil {
		s.log.Error("failed to queue default reconciliation, restoring previous default",
			zap.String("feature", feature),
			zap.Error(err),
		)
		if restoreErr := s.manager.SetDefaultConfig(ctx, feature, current); restoreErr != nil {
			s.log.Error("failed to restore previous default", zap.String("feature", feature), zap.Error(restoreErr))
		}
		return nil, err
	}

	s.log.Info("feature default updated",
		zap.String("feature", feature),
		zap.Int64("user_id", req.UserID.Int64()),
		zap.Bool("active", next.Active()),
	)
	return resp, nil
}

func (s *Service) RequestAssign(ctx context.Context, req domain.AssignRequest) error {
	feature := strings.TrimSpace(req.Feature)
	strat, err := s.manager.Strategy(feature)
	if err != nil {
		return err
	}

	params := domain.Params{}
	for name, raw := range req.Params {
		if name == domain.ParamActive {
			continue
		}
		value, err := s.normalizeParam(feature, strat, name, raw)
		if err != nil {
			return err
		}
		params[name] = value
	}

	payload := domain.AssignPayload{
		Feature: feature,
		Owner:   req.Owner,
		Source:  req.Source,
		Params:  params,
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	_, err = s.queue.Push(ctx, domain.TaskAssign, payload)
	return err
}

func (s *Service) RequestRemove(ctx context.Context, req domain.RemoveRequest) error {
	payload := domain.RemovePayload{
		AssignmentID: req.AssignmentID.Int64(),
		UserID:       req.UserID.Int64(),
	}
	if err := payload.Validate(); err != nil {
		return err
	}
	_, err := s.queue.Push(ctx, domain.TaskRemove, payload)
	return err
}

// normalizeParam coerces raw to the declared parameter type and checks it
// against the strategy's validation rule.
func (s *Service) normalizeParam(feature string, strat domain.Strategy, name string, raw any) (any, error) {
	if name == domain.ParamActive {
		active, err := cast.ToBoolE(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", domain.ErrInvalidParameter, feature, name, err)
		}
		return active, nil
	}

	desc, err := strat.ParameterDescriptor(name)
	if err != nil {
		return nil, err
	}

	var value any
	switch desc.Type {
	case strategy.TypeInt:
		value, err = cast.ToIntE(raw)
	case strategy.TypeBool:
		value, err = cast.ToBoolE(raw)
	case strategy.TypeString:
		value, err = cast.ToStringE(raw)
	default:
		value = raw
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", domain.ErrInvalidParameter, feature, name, err)
	}

	rule, err := strat.ParameterValidation(name)
	if err != nil {
		return nil, err
	}
	if rule != "" {
		if err := s.validate.Var(value, rule); err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", domain.ErrInvalidParameter, feature, name, err)
		}
	}
	return value, nil
}
