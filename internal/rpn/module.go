package rpn

import (
	"go.uber.org/fx"

	"github.com/tidewaterlab/gemflux/internal/assemble"
)

// Module provides the hour extractor as the assembler's fetcher.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewExtractor,
		fx.As(new(assemble.HourFetcher)),
	)),
)
