package job

import (
	jobdomain "github.com/smallbiznis/premium/internal/jobqueue/domain"
	"go.uber.org/fx"
)

const executorGroup = `group:"jobqueue.executors"`

var Module = fx.Module("feature.job",
	fx.Provide(
		fx.Annotate(func(p Params) jobdomain.Executor { return NewAssign(p) }, fx.ResultTags(executorGroup)),
		fx.Annotate(func(p Params) jobdomain.Executor { return NewRemove(p) }, fx.ResultTags(executorGroup)),
		fx.Annotate(func(p Params) jobdomain.Executor { return NewReconcileDefaults(p) }, fx.ResultTags(executorGroup)),
	),
)
