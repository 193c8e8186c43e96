package wheel

import (
	"go.uber.org/fx"
)

var Module = fx.Module("wheel.service",
	fx.Provide(NewStore, NewService),
)
