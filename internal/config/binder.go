package config

import (
	"github.com/mitchellh/mapstructure"

	"github.com/tidewaterlab/gemflux/internal/support/exception"
)

// VariableRule describes the affine unit conversion applied to one raw variable:
// converted = raw*Scale + Offset, then the grid is stored under Rename.
type VariableRule struct {
	// Scale is the multiplicative factor. Zero is treated as 1 (identity).
	Scale float64 `mapstructure:"scale"`
	// Offset is added after scaling.
	Offset float64 `mapstructure:"offset"`
	// Rename is the output field name. Empty keeps the raw name.
	Rename string `mapstructure:"rename"`
	// Optional marks a variable that may be absent from a source file; absence
	// yields a NaN placeholder grid instead of a malformed-input failure.
	Optional bool `mapstructure:"optional"`
}

// Apply converts one raw value under this rule.
func (r VariableRule) Apply(v float64) float64 {
	scale := r.Scale
	if scale == 0 {
		scale = 1
	}
	return v*scale + r.Offset
}

// DefaultVariableRules returns the built-in unit conversion table for the fixed
// raw variable set. YAML rules override entries per variable.
func DefaultVariableRules() map[string]VariableRule {
	return map[string]VariableRule{
		"PN": {Scale: 100, Rename: "atmpres"},        // mb -> Pa
		"NT": {Rename: "percentcloud"},               // cloud fraction, passed through
		"RT": {Scale: 1000, Rename: "PRATE_surface"}, // m/s -> kg m-2 s-1
		"PR": {Scale: 1.0 / 3.6, Rename: "precip"},   // m/hr accumulation -> kg m-2 s-1
		"FB": {Rename: "solar"},                      // W/m^2, passed through
		"TT": {Offset: 273.15, Rename: "tair"},       // degC -> K
		"TD": {Rename: "dewpoint", Optional: true},   // degC, input to derived humidity
		"UU": {Scale: 0.514444, Rename: "u_wind"},    // knots -> m/s
		"VV": {Scale: 0.514444, Rename: "v_wind"},    // knots -> m/s
	}
}

// BindVariableRules decodes the raw "variables" YAML section over the default
// conversion table. Each entry overrides the default rule for its variable;
// unknown variables are accepted so deployments can carry extra fields.
//
// Parameters:
//
//	raw: The raw map decoded from YAML, keyed by raw variable name.
//
// Returns:
//
//	The effective rule table and an error if any entry cannot be decoded.
func BindVariableRules(raw map[string]interface{}) (map[string]VariableRule, error) {
	rules := DefaultVariableRules()
	for name, entry := range raw {
		rule := rules[name]
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &rule,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, exception.Newf(moduleName, "failed to build decoder for variable %q", name, err)
		}
		if err := decoder.Decode(entry); err != nil {
			return nil, exception.Newf(moduleName, "failed to decode conversion rule for variable %q", name, err)
		}
		rules[name] = rule
	}
	return rules, nil
}
