package normalize

import "go.uber.org/fx"

// Module provides the unit normalizer.
var Module = fx.Options(
	fx.Provide(NewNormalizer),
)
