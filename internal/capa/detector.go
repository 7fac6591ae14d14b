package capa

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/HerbHall/capa/internal/detect"
	"github.com/HerbHall/capa/internal/detect/transform"
	"github.com/HerbHall/capa/pkg/anomaly"
	"github.com/HerbHall/capa/pkg/plugin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TopicDetectionCompleted is published after every successful run with an
// anomaly.DetectionSummary payload.
const TopicDetectionCompleted = "capa.detection.completed"

// Detector turns API requests into engine runs. It holds no per-run state,
// so one Detector serves concurrent requests.
type Detector struct {
	cfg     Config
	logger  *zap.Logger
	metrics *detect.Metrics
	bus     plugin.EventBus

	runs     atomic.Int64
	failures atomic.Int64
}

// NewDetector creates a Detector. metrics and bus may be nil.
func NewDetector(cfg Config, logger *zap.Logger, metrics *detect.Metrics, bus plugin.EventBus) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{cfg: cfg, logger: logger, metrics: metrics, bus: bus}
}

// Config returns the detector's defaults and limits.
func (d *Detector) Config() Config {
	return d.cfg
}

// Runs returns the number of runs attempted.
func (d *Detector) Runs() int64 { return d.runs.Load() }

// Failures returns the number of runs that returned an error.
func (d *Detector) Failures() int64 { return d.failures.Load() }

// plan is a request resolved against the defaults.
type plan struct {
	series  []float64
	scaling transform.Scaling
	cfg     detect.Config
}

// resolve applies defaults and the transform. Errors wrap
// detect.ErrInvalidConfig; everything else is checked by the engine.
func (d *Detector) resolve(req anomaly.DetectRequest) (plan, error) {
	n := len(req.Series)

	maxLength := req.MaxLength
	if maxLength == 0 {
		maxLength = min(n, d.cfg.MaxLength)
	}
	minLength := req.MinLength
	if minLength == 0 {
		minLength = min(d.cfg.MinLength, maxLength)
	}

	betaAnomaly := detect.DefaultBetaAnomaly(n)
	if req.BetaAnomaly != nil {
		betaAnomaly = *req.BetaAnomaly
	}

	var p detect.Penalties
	switch {
	case len(req.BetaChange) > 0 && req.Beta != nil:
		return plan{}, fmt.Errorf("%w: set beta or beta_change, not both", detect.ErrInvalidConfig)
	case len(req.BetaChange) > 0:
		p = detect.Penalties{
			MinLength:   minLength,
			MaxLength:   maxLength,
			BetaChange:  req.BetaChange,
			BetaAnomaly: betaAnomaly,
		}
	default:
		beta := detect.DefaultBeta(n)
		if req.Beta != nil {
			beta = *req.Beta
		}
		p = detect.ConstantPenalties(minLength, maxLength, beta, betaAnomaly)
	}

	method := req.Transform
	if method == "" {
		method = d.cfg.Transform
	}
	series, scaling, err := transform.Apply(method, req.Series)
	if err != nil {
		return plan{}, fmt.Errorf("%w: %w", detect.ErrInvalidConfig, err)
	}

	return plan{
		series:  series,
		scaling: scaling,
		cfg: detect.Config{
			Penalties:       p,
			Estimator:       d.cfg.Estimator(),
			Online:          req.Online,
			MaxSeriesLength: d.cfg.MaxSeriesLength,
		},
	}, nil
}

// Detect runs one detection. When onStep is non-nil the run is online and
// onStep receives every step as it is solved; an error from onStep aborts
// the run.
func (d *Detector) Detect(ctx context.Context, req anomaly.DetectRequest, onStep func(anomaly.Step) error) (*anomaly.DetectResponse, error) {
	d.runs.Add(1)
	runID := uuid.NewString()
	logger := d.logger.With(zap.String("run_id", runID))
	if reqID := plugin.RequestID(ctx); reqID != "" {
		logger = logger.With(zap.String("request_id", reqID))
	}

	resp, err := d.detect(ctx, runID, req, onStep, logger)
	if err != nil {
		d.failures.Add(1)
		logger.Warn("detection failed", zap.Int("n", len(req.Series)), zap.Error(err))
		return nil, err
	}

	logger.Info("detection completed",
		zap.Int("n", resp.N),
		zap.Bool("online", resp.Online),
		zap.Int("anomalies", len(resp.Anomalies)),
		zap.Int64("duration_ms", resp.DurationMS),
	)
	d.publish(ctx, resp)
	return resp, nil
}

func (d *Detector) detect(ctx context.Context, runID string, req anomaly.DetectRequest, onStep func(anomaly.Step) error, logger *zap.Logger) (*anomaly.DetectResponse, error) {
	if onStep != nil {
		req.Online = true
	}
	p, err := d.resolve(req)
	if err != nil {
		return nil, err
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	opts := []detect.Option{
		detect.WithLogger(logger),
		detect.WithMetrics(d.metrics),
		detect.WithStepBudget(d.cfg.StepBudget),
	}
	if onStep != nil {
		opts = append(opts, detect.WithStepHook(func(s detect.Step) error {
			return onStep(toStep(s))
		}))
	}

	start := time.Now()
	res, err := detect.Run(ctx, p.series, p.cfg, opts...)
	if err != nil {
		return nil, err
	}

	resp := &anomaly.DetectResponse{
		RunID:      runID,
		N:          len(p.series),
		Online:     p.cfg.Online,
		Anomalies:  make([]anomaly.Anomaly, 0, len(res.Anomalies)),
		Flat:       res.Flat,
		TotalCost:  res.TotalCost,
		Penalties:  toPenalties(p.cfg.Penalties),
		DurationMS: time.Since(start).Milliseconds(),
		FinishedAt: time.Now().UTC(),
	}
	for _, a := range res.Anomalies {
		resp.Anomalies = append(resp.Anomalies, anomaly.Anomaly{Start: a.Start, End: a.End, Kind: a.Kind.String()})
	}
	for _, s := range res.Steps {
		resp.Steps = append(resp.Steps, toStep(s))
	}
	if p.scaling.Method != transform.MethodNone {
		resp.Scaling = &anomaly.Scaling{
			Method:   p.scaling.Method,
			Location: p.scaling.Location,
			Scale:    p.scaling.Scale,
		}
	}
	return resp, nil
}

func (d *Detector) publish(ctx context.Context, resp *anomaly.DetectResponse) {
	if d.bus == nil {
		return
	}
	d.bus.PublishAsync(context.WithoutCancel(ctx), plugin.Event{
		Topic:     TopicDetectionCompleted,
		Source:    pluginName,
		Timestamp: resp.FinishedAt,
		Payload:   Summarize(resp),
	})
}

// Summarize condenses a response into the event payload.
func Summarize(resp *anomaly.DetectResponse) anomaly.DetectionSummary {
	s := anomaly.DetectionSummary{
		RunID:      resp.RunID,
		N:          resp.N,
		Online:     resp.Online,
		Anomalies:  len(resp.Anomalies),
		TotalCost:  resp.TotalCost,
		DurationMS: resp.DurationMS,
		FinishedAt: resp.FinishedAt,
	}
	for _, a := range resp.Anomalies {
		switch a.Kind {
		case anomaly.KindCollective:
			s.Collective++
		case anomaly.KindPoint:
			s.Point++
		}
	}
	return s
}

func toStep(s detect.Step) anomaly.Step {
	return anomaly.Step{T: s.T, Start: s.Start, Kind: s.Kind.String(), Cost: s.Cost}
}

func toPenalties(p detect.Penalties) anomaly.Penalties {
	return anomaly.Penalties{
		MinLength:   p.MinLength,
		MaxLength:   p.MaxLength,
		BetaChange:  p.BetaChange,
		BetaAnomaly: p.BetaAnomaly,
	}
}
