package config

import "go.uber.org/fx"

// Module provides the bound per-variable conversion rule table. The *Config
// itself is loaded before the Fx app is built and supplied to it, so the log
// level is set before any provider runs.
var Module = fx.Options(
	fx.Provide(func(cfg *Config) (map[string]VariableRule, error) {
		return BindVariableRules(cfg.Gemflux.Variables)
	}),
)
