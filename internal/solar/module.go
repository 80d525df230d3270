package solar

import "go.uber.org/fx"

// Module provides the solar smoother.
var Module = fx.Options(
	fx.Provide(NewSmoother),
)
