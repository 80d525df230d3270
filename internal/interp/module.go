package interp

import "go.uber.org/fx"

// Module provides the gap interpolator.
var Module = fx.Options(
	fx.Provide(NewInterpolator),
)
