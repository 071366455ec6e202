package domain

// Health is the liveness payload of GET /health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// DetailedHealth is the payload of GET /health/detailed.
type DetailedHealth struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Timestamp  float64           `json:"timestamp,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// Metrics is passed through untouched; the client attaches no meaning to it.
type Metrics map[string]any
