package writer

import "github.com/tidewaterlab/gemflux/internal/model"

// varAttrs holds the descriptive attributes attached to one output variable.
type varAttrs struct {
	level        string
	longName     string
	standardName string
	units        string
	comment      string
}

// fieldMetadata is the attribute table for the daily output variable set.
var fieldMetadata = map[string]varAttrs{
	model.FieldPressure: {
		level:        "mean sea level",
		longName:     "Pressure Reduced to MSL",
		standardName: "air_pressure_at_sea_level",
		units:        "Pa",
	},
	model.FieldCloud: {
		longName:     "Cloud Fraction",
		standardName: "cloud_area_fraction",
		units:        "percent",
	},
	model.FieldPrecipRate: {
		level:        "surface",
		longName:     "Precipitation Rate",
		standardName: "precipitation_flux",
		units:        "kg/m^2/s",
	},
	model.FieldPrecip: {
		level:        "surface",
		longName:     "Total Precipitation",
		standardName: "precipitation_flux",
		units:        "kg/m^2/s",
	},
	model.FieldHumidity: {
		level:        "2 m above surface",
		longName:     "Specific Humidity",
		standardName: "specific_humidity_2maboveground",
		units:        "kg/kg",
		comment:      "calculated from sea level air pressure and dewpoint temperature via WMO 2012 ocean best practices",
	},
	model.FieldRelHum: {
		level:        "2 m above surface",
		longName:     "Relative Humidity",
		standardName: "relative_humidity_2maboveground",
		units:        "percent",
		comment:      "calculated from air temperature and dewpoint temperature via WMO 2012 ocean best practices",
	},
	model.FieldSolar: {
		level:        "surface",
		longName:     "Downward Short-Wave Radiation Flux",
		standardName: "net_downward_shortwave_flux_in_air",
		units:        "W/m^2",
	},
	model.FieldAirTemp: {
		level:        "2 m above surface",
		longName:     "Air Temperature",
		standardName: "air_temperature_2maboveground",
		units:        "K",
	},
	model.FieldLongwave: {
		level:        "surface",
		longName:     "Downward Long-Wave Radiation Flux",
		standardName: "net_downward_longwave_flux_in_air",
		units:        "W/m^2",
		comment:      "calculated from saturation water vapour pressure, air temperature, and cloud fraction via Dilly-Unsworth correlation",
	},
	model.FieldWindU: {
		level:        "10 m above surface",
		longName:     "U-Component of Wind",
		standardName: "x_wind",
		units:        "m/s",
	},
	model.FieldWindV: {
		level:        "10 m above surface",
		longName:     "V-Component of Wind",
		standardName: "y_wind",
		units:        "m/s",
	},
}
