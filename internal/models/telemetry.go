package models

// LiveSample is a single synthetic reading served by /api/data.
type LiveSample struct {
	Power             bool    `json:"power"`
	Mode              string  `json:"mode"`
	LastSeen          string  `json:"last_seen"`
	ForwardDistanceCM float64 `json:"forward_distance_cm"`
	TemperatureC      float64 `json:"temperature_c"`
	HumidityPercent   float64 `json:"humidity_percent"`
	AirQualityRaw     int     `json:"air_quality_raw"`
}

// HistorySeries is a synthetic per-minute time series, oldest point first.
// All slices have the same length.
type HistorySeries struct {
	Labels          []string  `json:"labels"`
	TemperatureC    []float64 `json:"temperature_c"`
	HumidityPercent []float64 `json:"humidity_percent"`
	AirQualityRaw   []int     `json:"air_quality_raw"`
}

// CommandAck acknowledges a POST /command. Received echoes the parsed payload.
type CommandAck struct {
	OK       bool           `json:"ok"`
	Received map[string]any `json:"received"`
}
