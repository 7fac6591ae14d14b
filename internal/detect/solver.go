// Package detect finds collective and point anomalies in a series with a
// penalised, pruned dynamic programme over robust segment costs.
//
// The series is expected in baseline units: the typical level is 0 and the
// typical spread is 1 (see the transform package for robust scaling).
// Observation t is explained either as background (cost Loss(x_t)), as a
// point anomaly (cost BetaAnomaly), or as the last observation of a
// collective anomaly τ+1..t whose length lies in [MinLength, MaxLength]
// (cost C(τ+1..t) + BetaChange[len]).
package detect

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/HerbHall/capa/internal/detect/candidates"
	"github.com/HerbHall/capa/internal/detect/robust"
	"go.uber.org/zap"
)

// Config is the immutable configuration of one run.
type Config struct {
	Penalties Penalties        `mapstructure:"penalties" json:"penalties"`
	Estimator robust.Estimator `mapstructure:"estimator" json:"estimator"`
	Online    bool             `mapstructure:"online" json:"online"`

	// MaxSeriesLength caps the working tables; 0 means no limit.
	MaxSeriesLength int `mapstructure:"max_series_length" json:"max_series_length,omitempty"`
}

// Validate checks the configuration against a series of length n.
func (c Config) Validate(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: series is empty", ErrInvalidConfig)
	}
	if c.MaxSeriesLength > 0 && n > c.MaxSeriesLength {
		return fmt.Errorf("%w: series length %d exceeds limit %d", ErrResource, n, c.MaxSeriesLength)
	}
	if err := c.Penalties.Validate(n); err != nil {
		return err
	}
	if err := c.Estimator.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) mode() string {
	if c.Online {
		return "online"
	}
	return "batch"
}

// Option customises a Solve call.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *Metrics
	hooks   []func(Step) error
	budget  int
}

// WithLogger sets the logger used for run summaries.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records run statistics on m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithStepHook registers fn to receive the online view after every time
// step of an online run. An error from fn aborts the run.
func WithStepHook(fn func(Step) error) Option {
	return func(o *options) {
		if fn != nil {
			o.hooks = append(o.hooks, fn)
		}
	}
}

// WithStepBudget aborts the run after the given number of time steps.
// Zero means no budget.
func WithStepBudget(steps int) Option {
	return func(o *options) { o.budget = steps }
}

// Solve runs the recursion over series and returns the solved state. On any
// error no solution is returned and all working state has been released.
func Solve(ctx context.Context, series []float64, cfg Config, opts ...Option) (*Solution, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()

	if err := cfg.Validate(len(series)); err != nil {
		outcome := outcomeInvalid
		if errors.Is(err, ErrResource) {
			outcome = outcomeLimit
		}
		o.metrics.observeRun(cfg.mode(), outcome, 0)
		return nil, err
	}
	cfg.Penalties.BetaChange = slices.Clone(cfg.Penalties.BetaChange)

	s := newSolver(series, cfg, o)
	defer s.arena.Release()

	err := s.run(ctx)
	o.metrics.observeScan(s.evaluations, s.pruned, s.arena.Peak())
	if err != nil {
		o.metrics.observeRun(cfg.mode(), outcomeFor(err), 0)
		o.logger.Debug("detection failed",
			zap.Int("n", len(series)),
			zap.Int("evaluations", s.evaluations),
			zap.Error(err),
		)
		return nil, err
	}

	elapsed := time.Since(start)
	o.metrics.observeRun(cfg.mode(), outcomeOK, elapsed.Seconds())
	o.logger.Debug("detection solved",
		zap.String("mode", cfg.mode()),
		zap.Int("n", len(series)),
		zap.Float64("total_cost", s.sol.TotalCost()),
		zap.Int("evaluations", s.evaluations),
		zap.Int("pruned", s.pruned),
		zap.Int("peak_candidates", s.arena.Peak()),
		zap.Duration("duration", elapsed),
	)
	return s.sol, nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrNumeric):
		return outcomeNumeric
	case errors.Is(err, ErrAborted):
		return outcomeAborted
	case errors.Is(err, ErrResource):
		return outcomeLimit
	default:
		return outcomeInvalid
	}
}

// solver is the mutable state of one scan.
type solver struct {
	series []float64
	cfg    Config
	opts   options
	arena  *candidates.Arena
	sol    *Solution
	margin float64

	evaluations int
	pruned      int
}

func newSolver(series []float64, cfg Config, o options) *solver {
	s := &solver{
		series: series,
		cfg:    cfg,
		opts:   o,
		arena:  candidates.NewArena(len(series)),
		sol:    newSolution(len(series), cfg.Penalties),
	}
	s.margin = pruneMargin(cfg.Penalties, cfg.Estimator)
	s.arena.Append(0)
	return s
}

// pruneMargin is the slack a candidate may exceed the current optimum by and
// still start a future optimal segment. Beyond it, any future segment from
// the candidate costs more than either a segment from the current time
// (length penalties differ by at most max-min) or, when that segment would be
// too short, explaining the gap point by point.
func pruneMargin(p Penalties, e robust.Estimator) float64 {
	lo, hi := p.bounds()
	perPoint := math.Min(e.MaxLoss(), p.BetaAnomaly)
	gap := float64(p.MinLength-1)*perPoint - lo
	return math.Max(0, math.Max(hi-lo, gap))
}

func (s *solver) run(ctx context.Context) error {
	for t := 1; t <= len(s.series); t++ {
		if err := s.checkStop(ctx, t); err != nil {
			return err
		}
		if err := s.step(t); err != nil {
			return err
		}
		if s.cfg.Online {
			step := s.sol.StepAt(t)
			for _, hook := range s.opts.hooks {
				if err := hook(step); err != nil {
					return fmt.Errorf("%w: step hook at %d: %w", ErrAborted, t, err)
				}
			}
		}
	}
	return nil
}

func (s *solver) checkStop(ctx context.Context, t int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w at step %d: %w", ErrAborted, t, err)
	}
	if s.opts.budget > 0 && t > s.opts.budget {
		return fmt.Errorf("%w: step budget of %d exhausted", ErrAborted, s.opts.budget)
	}
	return nil
}

// step solves prefix 1..t, then adds t as a candidate and prunes.
func (s *solver) step(t int) error {
	x := s.series[t-1]
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fmt.Errorf("%w: observation %d is %v", ErrNumeric, t, x)
	}

	best, prev, kind := math.Inf(1), t-1, KindBackground

	// Collective candidates, oldest first; strict comparison keeps the
	// oldest candidate on ties.
	err := s.arena.Each(func(n *candidates.Node) error {
		n.Observe(x)
		c, err := s.cfg.Estimator.Cost(n.Seg)
		s.evaluations++
		if err != nil {
			return fmt.Errorf("%w: segment %d..%d: %w", ErrNumeric, n.T+1, t, err)
		}
		n.SegCost = c

		beta, ok := s.cfg.Penalties.Collective(t - n.T)
		if !ok {
			return nil
		}
		if total := s.sol.cost[n.T] + c + beta; total < best {
			best, prev, kind = total, n.T, KindCollective
		}
		return nil
	})
	if err != nil {
		return err
	}

	before := s.sol.cost[t-1]
	if bg := before + s.cfg.Estimator.Loss(x); bg < best {
		best, prev, kind = bg, t-1, KindBackground
	}
	if pt := before + s.cfg.Penalties.BetaAnomaly; pt < best {
		best, prev, kind = pt, t-1, KindPoint
	}
	if math.IsNaN(best) || math.IsInf(best, 0) {
		return fmt.Errorf("%w: optimal cost at %d is %v", ErrNumeric, t, best)
	}

	s.sol.cost[t] = best
	s.sol.prev[t] = prev
	s.sol.kind[t] = kind

	s.arena.Append(t)
	s.prune(t)
	return nil
}

func (s *solver) prune(t int) {
	maxLen := s.cfg.Penalties.MaxLength
	bound := s.sol.cost[t] + s.margin
	s.pruned += s.arena.Prune(func(n *candidates.Node) bool {
		if n.T == t {
			return false
		}
		if t-n.T >= maxLen {
			return true
		}
		return s.sol.cost[n.T]+n.SegCost > bound
	})
}
