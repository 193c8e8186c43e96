package mission

import (
	"go.uber.org/fx"
)

var Module = fx.Module("mission.service",
	fx.Provide(NewEvaluator, NewService),
)
