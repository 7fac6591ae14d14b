package capa

import (
	"fmt"
	"time"

	"github.com/HerbHall/capa/internal/detect/robust"
	"github.com/HerbHall/capa/internal/detect/transform"
)

// Config holds the service defaults and limits. Request fields override the
// defaults; the limits always apply.
type Config struct {
	MinLength     int     `mapstructure:"min_length"`
	MaxLength     int     `mapstructure:"max_length"` // Clamped to the series length
	Threshold     float64 `mapstructure:"threshold"`  // Biweight tuning constant
	Tolerance     float64 `mapstructure:"tolerance"`
	MaxIterations int     `mapstructure:"max_iterations"`
	Transform     string  `mapstructure:"transform"` // "none" or "robust"

	MaxSeriesLength int           `mapstructure:"max_series_length"` // Sized so a default run finishes well inside Timeout
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	Timeout         time.Duration `mapstructure:"timeout"`     // Per run; 0 disables
	StepBudget      int           `mapstructure:"step_budget"` // Per run; 0 disables
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		MinLength:       2,
		MaxLength:       100,
		Threshold:       robust.DefaultThreshold,
		Tolerance:       robust.DefaultTolerance,
		MaxIterations:   robust.DefaultMaxIterations,
		Transform:       transform.MethodNone,
		MaxSeriesLength: 20_000,
		MaxBodyBytes:    8 << 20,
		Timeout:         30 * time.Second,
	}
}

// Estimator returns the segment cost settings.
func (c Config) Estimator() robust.Estimator {
	return robust.Estimator{
		Threshold:     c.Threshold,
		Tolerance:     c.Tolerance,
		MaxIterations: c.MaxIterations,
	}
}

// Validate checks settings that do not depend on a request.
func (c Config) Validate() error {
	switch {
	case c.MinLength < 1:
		return fmt.Errorf("min_length must be positive, got %d", c.MinLength)
	case c.MaxLength < c.MinLength:
		return fmt.Errorf("max_length %d is below min_length %d", c.MaxLength, c.MinLength)
	case c.MaxSeriesLength < 1:
		return fmt.Errorf("max_series_length must be positive, got %d", c.MaxSeriesLength)
	case c.MaxBodyBytes < 1:
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	case c.Timeout < 0:
		return fmt.Errorf("timeout must not be negative, got %v", c.Timeout)
	case c.StepBudget < 0:
		return fmt.Errorf("step_budget must not be negative, got %d", c.StepBudget)
	}
	if _, _, err := transform.Apply(c.Transform, nil); err != nil {
		return err
	}
	if err := c.Estimator().Validate(); err != nil {
		return err
	}
	return nil
}
