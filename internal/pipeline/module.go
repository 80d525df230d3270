package pipeline

import "go.uber.org/fx"

// Module provides the batch pipeline.
var Module = fx.Options(
	fx.Provide(NewPipeline),
)
