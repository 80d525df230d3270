package assemble

import "go.uber.org/fx"

// Module provides the day assembler.
var Module = fx.Options(
	fx.Provide(NewAssembler),
)
