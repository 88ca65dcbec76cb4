package config

import "nftstake/native/common"

// Indexer drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// RateLimit controls per-client admission on the HTTP surface.
type RateLimit struct {
	RequestsPerMinute uint32
	Burst             uint32
}

// Enabled reports whether requests are throttled at all.
func (r RateLimit) Enabled() bool {
	return r.RequestsPerMinute > 0
}

type Pauses struct {
	Staking bool
}

// View converts the configured switches into the runtime pause view.
func (p Pauses) View() *common.Pauses {
	view := common.NewPauses()
	view.Set("staking", p.Staking)
	return view
}

// Telemetry configures OTLP export. An empty Endpoint disables it.
type Telemetry struct {
	Endpoint string
	Insecure bool
	// Headers uses the OTEL_EXPORTER_OTLP_HEADERS form: key=value,other=value.
	Headers string
	Traces  bool
	Metrics bool
}
