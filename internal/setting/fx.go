package setting

import (
	"github.com/smallbiznis/premium/internal/setting/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("setting.repository",
	fx.Provide(repository.Provide),
)
