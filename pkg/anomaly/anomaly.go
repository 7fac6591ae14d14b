// Package anomaly provides the public request and response types of the
// detection API. Clients can import it without pulling in the engine.
package anomaly

import "time"

// Kind names used in JSON payloads.
const (
	KindBackground = "background"
	KindCollective = "collective"
	KindPoint      = "point"
)

// Transform names accepted in DetectRequest.Transform.
const (
	TransformNone   = "none"   // Series is already in baseline units
	TransformRobust = "robust" // Centre on the median, scale by MAD
)

// DetectRequest is the request body for POST /capa/detect.
type DetectRequest struct {
	Series    []float64 `json:"series"`
	MinLength int       `json:"min_length"`
	MaxLength int       `json:"max_length"`

	// BetaChange is a per-length penalty table for lengths
	// MinLength..MaxLength. When empty, Beta (or the log(n) default) is
	// used for every length.
	BetaChange  []float64 `json:"beta_change,omitempty"`
	Beta        *float64  `json:"beta,omitempty"`
	BetaAnomaly *float64  `json:"beta_anomaly,omitempty"`

	Online    bool   `json:"online,omitempty"`
	Transform string `json:"transform,omitempty"` // "none" (default) or "robust"
}

// Anomaly is one reported segment. Start and End are 1-based and inclusive.
type Anomaly struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Kind  string `json:"kind"`
}

// Step is the online view published after observation T.
type Step struct {
	T     int     `json:"t"`
	Start int     `json:"start"`
	Kind  string  `json:"kind"`
	Cost  float64 `json:"cost"`
}

// Penalties echoes the penalties a run actually used.
type Penalties struct {
	MinLength   int       `json:"min_length"`
	MaxLength   int       `json:"max_length"`
	BetaChange  []float64 `json:"beta_change"`
	BetaAnomaly float64   `json:"beta_anomaly"`
}

// Scaling reports the transform applied before detection.
type Scaling struct {
	Method   string  `json:"method"`
	Location float64 `json:"location"`
	Scale    float64 `json:"scale"`
}

// DetectResponse is the response for POST /capa/detect.
type DetectResponse struct {
	RunID      string    `json:"run_id"`
	N          int       `json:"n"`
	Online     bool      `json:"online"`
	Anomalies  []Anomaly `json:"anomalies"`
	Steps      []Step    `json:"steps,omitempty"`
	Flat       []int     `json:"flat"`
	TotalCost  float64   `json:"total_cost"`
	Penalties  Penalties `json:"penalties"`
	Scaling    *Scaling  `json:"scaling,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// DefaultsResponse is the response for GET /capa/defaults.
type DefaultsResponse struct {
	MinLength       int     `json:"min_length"`
	MaxLength       int     `json:"max_length"`
	Threshold       float64 `json:"threshold"`
	Tolerance       float64 `json:"tolerance"`
	MaxIterations   int     `json:"max_iterations"`
	MaxSeriesLength int     `json:"max_series_length"`
	Transform       string  `json:"transform"`
	BetaFormula     string  `json:"beta_formula"`
	BetaAnomalyForm string  `json:"beta_anomaly_formula"`
}

// DetectionSummary is the payload of the detection completed event and of
// the live detections feed.
type DetectionSummary struct {
	RunID      string    `json:"run_id"`
	N          int       `json:"n"`
	Online     bool      `json:"online"`
	Anomalies  int       `json:"anomalies"`
	Collective int       `json:"collective"`
	Point      int       `json:"point"`
	TotalCost  float64   `json:"total_cost"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}
