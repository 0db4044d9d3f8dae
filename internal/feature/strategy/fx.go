package strategy

import (
	"github.com/smallbiznis/premium/internal/clock"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"go.uber.org/fx"
)

const group = `group:"feature.strategies"`

var Module = fx.Module("feature.strategy",
	fx.Provide(
		fx.Annotate(provideToggle, fx.ResultTags(group)),
		fx.Annotate(provideQuota, fx.ResultTags(group)),
		fx.Annotate(provideThrottle, fx.ResultTags(group)),
	),
)

func provideToggle() domain.NamedStrategyFactory {
	return domain.NamedStrategyFactory{Name: NameToggle, New: NewToggle}
}

func provideQuota(clk clock.Clock) domain.NamedStrategyFactory {
	return domain.NamedStrategyFactory{Name: NameQuota, New: NewQuotaFactory(clk)}
}

func provideThrottle(clk clock.Clock) domain.NamedStrategyFactory {
	return domain.NamedStrategyFactory{Name: NameThrottle, New: NewThrottleFactory(clk)}
}
