package strategy

import (
	"context"
	"fmt"

	"github.com/smallbiznis/premium/internal/clock"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/spf13/cast"
	"gorm.io/gorm"
)

const (
	NameQuota  = "quota"
	ParamLimit = "limit"
)

// Quota grants a numeric allowance. Larger limits rate higher.
type Quota struct {
	Base
	clock        clock.Clock
	defaultLimit int
}

// NewQuotaFactory builds quota strategies. The optional "default_limit"
// option seeds the default parameter.
func NewQuotaFactory(clk clock.Clock) domain.StrategyFactory {
	return func(def domain.Definition) (domain.Strategy, error) {
		defaultLimit, err := intOption(def.Options, "default_limit", 0)
		if err != nil {
			return nil, err
		}
		return &Quota{
			Base: Base{
				Feature: def.Name,
				Parameters: []Parameter{{
					Descriptor: domain.ParameterDescriptor{
						Name:  ParamLimit,
						Label: "Limit",
						Type:  TypeInt,
						Help:  "Maximum allowance granted to the owner.",
					},
					Default: defaultLimit,
					Rule:    "gte=0",
				}},
			},
			clock:        clk,
			defaultLimit: defaultLimit,
		}, nil
	}
}

func (q *Quota) CalculateRating(params domain.Params) int {
	return q.limit(params)
}

func (q *Quota) UpdateOwner(ctx context.Context, tx *gorm.DB, owner any, params domain.Params) error {
	return upsertLimit(ctx, tx, q.Feature, owner, q.limit(params), params.Active(), q.clock.Now())
}

func (q *Quota) limit(params domain.Params) int {
	limit, err := params.Int(ParamLimit)
	if err != nil {
		return q.defaultLimit
	}
	return limit
}

func intOption(options map[string]any, key string, def int) (int, error) {
	raw, ok := options[key]
	if !ok {
		return def, nil
	}
	value, err := cast.ToIntE(raw)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", key, err)
	}
	return value, nil
}
