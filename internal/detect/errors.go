package detect

import (
	"errors"
	"fmt"
)

// ErrDetectionFailed is wrapped by every error the engine returns. A failed
// run never produces a partial result.
var ErrDetectionFailed = errors.New("detection failed")

var (
	// ErrInvalidConfig reports a configuration rejected before the scan starts.
	ErrInvalidConfig = fmt.Errorf("%w: invalid configuration", ErrDetectionFailed)
	// ErrNumeric reports a non-finite value or an estimator that did not converge.
	ErrNumeric = fmt.Errorf("%w: numeric failure", ErrDetectionFailed)
	// ErrResource reports a series too large for the configured working tables.
	ErrResource = fmt.Errorf("%w: resource limit", ErrDetectionFailed)
	// ErrAborted reports a run stopped by its context or step budget.
	ErrAborted = fmt.Errorf("%w: aborted", ErrDetectionFailed)
)
