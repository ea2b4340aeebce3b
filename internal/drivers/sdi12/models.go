package sdi12

import (
	"strings"
	"time"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/sensor"
)

// Model is a family of SDI-12 devices: its settling times, outputs in
// response order, and the data commands that fetch them.
type Model struct {
	Name         string
	Timing       sensor.Timing
	Variables    []sensor.Variable
	DataCommands []string
}

var Atmos14 = Model{
	Name: "Atmos14",
	Timing: sensor.Timing{
		WarmUp:        260 * time.Millisecond,
		Stabilization: 50 * time.Millisecond,
		Measurement:   50 * time.Millisecond,
	},
	Variables: []sensor.Variable{
		{Name: "vaporPressure", Unit: "Kilopascal", Code: "AtmosVP", Resolution: 3, Bounds: sensor.Unbounded()},
		{Name: "temperature", Unit: "degreeCelsius", Code: "AirTemp", Resolution: 2, Bounds: sensor.Bounds{Min: -50, Max: 90}},
		{Name: "relativeHumidity", Unit: "Dimensionless", Code: "RH", Resolution: 4, Bounds: sensor.Unbounded()},
		{Name: "pressureAbsolute", Unit: "Kilopascal", Code: "Baro", Resolution: 3, Bounds: sensor.Unbounded()},
	},
	DataCommands: []string{"D0"},
}

var Atmos22 = Model{
	Name: "Atmos22",
	Timing: sensor.Timing{
		WarmUp:        30 * time.Second,
		Stabilization: 2 * time.Second,
		Measurement:   2 * time.Second,
	},
	Variables: []sensor.Variable{
		{Name: "windSpeed", Unit: "meterPerSecond", Code: "WindSpd", Resolution: 3, Bounds: sensor.Bounds{Min: 0, Max: 30}},
		{Name: "windDirection", Unit: "degree", Code: "WindDir", Resolution: 1, Bounds: sensor.Bounds{Min: 0, Max: 360}},
		{Name: "windGustSpeed", Unit: "meterPerSecond", Code: "Gust", Resolution: 3, Bounds: sensor.Bounds{Min: 0, Max: 30}},
		{Name: "temperature", Unit: "degreeCelsius", Code: "AirTemp", Resolution: 2, Bounds: sensor.Bounds{Min: -40, Max: 80}},
	},
	DataCommands: []string{"D0", "D1"},
}

var models = map[string]Model{
	"atmos14": Atmos14,
	"atmos22": Atmos22,
}

// Lookup finds a model by case-insensitive name.
func Lookup(name string) (Model, error) {
	m, ok := models[strings.ToLower(name)]
	if !ok {
		return Model{}, errors.New().WithData(ErrUnknownModel, name)
	}

	return m, nil
}
