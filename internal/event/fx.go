package event

import "go.uber.org/fx"

var Module = fx.Module("event",
	fx.Provide(
		NewOutbox,
		fx.Annotate(
			func(o *Outbox) Subscription { return o.Subscription() },
			fx.ResultTags(`group:"event.listeners"`),
		),
		NewBus,
	),
)
