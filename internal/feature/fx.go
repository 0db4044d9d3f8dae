package feature

import (
	"github.com/smallbiznis/premium/internal/feature/job"
	"github.com/smallbiznis/premium/internal/feature/registry"
	"github.com/smallbiznis/premium/internal/feature/repository"
	"github.com/smallbiznis/premium/internal/feature/service"
	"github.com/smallbiznis/premium/internal/feature/strategy"
	"go.uber.org/fx"
)

var Module = fx.Module("feature",
	strategy.Module,
	fx.Provide(repository.Provide),
	fx.Provide(registry.New),
	fx.Provide(service.NewManager),
	fx.Provide(service.New),
	job.Module,
)
