package detect

import "context"

// Result is the outcome of one end-to-end detection run.
type Result struct {
	Anomalies []Anomaly
	Steps     []Step // online runs only
	Flat      []int  // boundary encoding for the selected mode
	TotalCost float64
}

// Run solves series and reconstructs the result for the configured mode. On
// failure it returns the zero Result and an error wrapping ErrDetectionFailed;
// an empty Anomalies slice with a nil error is a legitimate "nothing found".
func Run(ctx context.Context, series []float64, cfg Config, opts ...Option) (Result, error) {
	var rec OnlineRecorder
	if cfg.Online {
		opts = append(opts, WithStepHook(rec.Record))
	}

	sol, err := Solve(ctx, series, cfg, opts...)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Anomalies: sol.Anomalies(),
		TotalCost: sol.TotalCost(),
	}
	if cfg.Online {
		res.Steps = rec.Steps()
		res.Flat = EncodeOnline(res.Steps)
	} else {
		res.Flat = EncodeBatch(res.Anomalies)
	}
	return res, nil
}

// EncodeBatch flattens anomalies into (start, end, kind) triples.
func EncodeBatch(anomalies []Anomaly) []int {
	out := make([]int, 0, 3*len(anomalies))
	for _, a := range anomalies {
		out = append(out, a.Start, a.End, int(a.Kind))
	}
	return out
}

// EncodeOnline flattens online steps into (start, kind) pairs, one per index.
func EncodeOnline(steps []Step) []int {
	out := make([]int, 0, 2*len(steps))
	for _, s := range steps {
		out = append(out, s.Start, int(s.Kind))
	}
	return out
}
