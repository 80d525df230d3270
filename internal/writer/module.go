package writer

import "go.uber.org/fx"

// Module provides the daily output writer.
var Module = fx.Options(
	fx.Provide(NewDailyWriter),
)
