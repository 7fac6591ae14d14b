package detect

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestEncodeBatch(t *testing.T) {
	got := EncodeBatch([]Anomaly{
		{Start: 3, End: 7, Kind: KindCollective},
		{Start: 12, End: 12, Kind: KindPoint},
	})
	want := []int{3, 7, 1, 12, 12, 2}
	if !slices.Equal(got, want) {
		t.Errorf("EncodeBatch() = %v, want %v", got, want)
	}
	if got := EncodeBatch(nil); got == nil || len(got) != 0 {
		t.Errorf("EncodeBatch(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestEncodeOnline(t *testing.T) {
	got := EncodeOnline([]Step{
		{T: 1, Start: 1, Kind: KindBackground},
		{T: 2, Start: 2, Kind: KindPoint},
		{T: 3, Start: 3, Kind: KindCollective},
		{T: 4, Start: 3, Kind: KindCollective},
	})
	want := []int{1, 0, 2, 2, 3, 1, 3, 1}
	if !slices.Equal(got, want) {
		t.Errorf("EncodeOnline() = %v, want %v", got, want)
	}
}

func TestRun_FlatEncodings(t *testing.T) {
	series, p := spikeScenario()

	batch, err := Run(context.Background(), series, batchConfig(p))
	if err != nil {
		t.Fatalf("Run(batch) error = %v", err)
	}
	if want := []int{10, 10, 2}; !slices.Equal(batch.Flat, want) {
		t.Errorf("batch Flat = %v, want %v", batch.Flat, want)
	}
	if batch.Steps != nil {
		t.Errorf("batch Steps = %v, want nil", batch.Steps)
	}

	online, err := Run(context.Background(), series, onlineConfig(p))
	if err != nil {
		t.Fatalf("Run(online) error = %v", err)
	}
	if len(online.Flat) != 2*len(series) {
		t.Fatalf("online Flat has %d ints, want %d", len(online.Flat), 2*len(series))
	}
	if start, kind := online.Flat[18], online.Flat[19]; start != 10 || kind != int(KindPoint) {
		t.Errorf("online Flat at t=10 = (%d, %d), want (10, %d)", start, kind, KindPoint)
	}
	if online.TotalCost != batch.TotalCost {
		t.Errorf("online TotalCost = %v, batch = %v", online.TotalCost, batch.TotalCost)
	}
}

func TestRun_FailureReturnsZeroResult(t *testing.T) {
	series, p := spikeScenario()
	p.MinLength, p.MaxLength = 5, 3

	res, err := Run(context.Background(), series, batchConfig(p))
	if !errors.Is(err, ErrDetectionFailed) {
		t.Fatalf("Run() error = %v, want ErrDetectionFailed", err)
	}
	if res.Flat != nil || res.Anomalies != nil {
		t.Errorf("Run() result = %+v, want zero Result", res)
	}
}
