package strategy

import (
	"context"

	"github.com/smallbiznis/premium/internal/clock"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"gorm.io/gorm"
)

const (
	NameThrottle  = "throttle"
	ParamInterval = "interval"
)

// Throttle limits how often an owner may act. A shorter interval is the
// better grant, so the rating is the negated interval.
type Throttle struct {
	Base
	clock           clock.Clock
	defaultInterval int
}

// NewThrottleFactory builds throttle strategies. The optional
// "default_interval" option (seconds) seeds the default parameter.
func NewThrottleFactory(clk clock.Clock) domain.StrategyFactory {
	return func(def domain.Definition) (domain.Strategy, error) {
		defaultInterval, err := intOption(def.Options, "default_interval", 3600)
		if err != nil {
			return nil, err
		}
		return &Throttle{
			Base: Base{
				Feature: def.Name,
				Parameters: []Parameter{{
					Descriptor: domain.ParameterDescriptor{
						Name:  ParamInterval,
						Label: "Interval (seconds)",
						Type:  TypeInt,
					},
					Default: defaultInterval,
					Rule:    "gte=1",
				}},
			},
			clock:           clk,
			defaultInterval: defaultInterval,
		}, nil
	}
}

func (t *Throttle) CalculateRating(params domain.Params) int {
	return -t.interval(params)
}

func (t *Throttle) UpdateOwner(ctx context.Context, tx *gorm.DB, owner any, params domain.Params) error {
	return upsertLimit(ctx, tx, t.Feature, owner, t.interval(params), params.Active(), t.clock.Now())
}

func (t *Throttle) interval(params domain.Params) int {
	interval, err := params.Int(ParamInterval)
	if err != nil {
		return t.defaultInterval
	}
	return interval
}
