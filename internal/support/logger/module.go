package logger

import "go.uber.org/fx"

// Module replaces fx's own event logger with the pipeline logger.
var Module = fx.Options(
	fx.WithLogger(NewFxLogger),
)
