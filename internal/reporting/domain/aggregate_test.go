package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func sampleAt(t time.Time, value float64) MetricSample {
	return MetricSample{DeviceID: "dev-1", TagID: "energy_kwh", Timestamp: t, Value: value, Unit: "kWh"}
}

func TestAggregateDailyOneBucketPerDay(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	samples := []MetricSample{
		sampleAt(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), 4),
		sampleAt(time.Date(2026, 3, 3, 12, 30, 0, 0, time.UTC), 6),
	}

	result, err := AggregateDaily(samples, start, end)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(result.DailyData) != 5 {
		t.Fatalf("expected 5 buckets, got %d", len(result.DailyData))
	}
	for i, entry := range result.DailyData {
		want := start.AddDate(0, 0, i).Format(DateLayout)
		if entry.Date != want {
			t.Fatalf("bucket %d: expected date %s, got %s", i, want, entry.Date)
		}
	}
	empty := result.DailyData[1]
	if empty.Count != 0 || empty.Sum != 0 {
		t.Fatalf("expected empty bucket, got count=%d sum=%f", empty.Count, empty.Sum)
	}
	if empty.Avg != nil || empty.Max != nil || empty.Min != nil {
		t.Fatalf("expected nil avg/max/min for empty bucket")
	}
	if result.Unit != "kWh" {
		t.Fatalf("expected unit kWh, got %s", result.Unit)
	}
}

func TestAggregateDailySumMatchesBuckets(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	var samples []MetricSample
	for i := 0; i < 240; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		samples = append(samples, sampleAt(ts, 0.1*float64(i)+0.7))
	}

	result, err := AggregateDaily(samples, start, end)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	var bucketSum float64
	for _, entry := range result.DailyData {
		bucketSum += entry.Sum
	}
	if relDiff(bucketSum, result.Sum) > 1e-6 {
		t.Fatalf("bucket sum %f does not match overall sum %f", bucketSum, result.Sum)
	}
	if result.Count != len(samples) {
		t.Fatalf("expected count %d, got %d", len(samples), result.Count)
	}
}

func TestAggregateDailyMidnightBelongsToStartingDay(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	samples := []MetricSample{
		sampleAt(time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), 3),
	}

	result, err := AggregateDaily(samples, start, end)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if result.DailyData[0].Count != 0 {
		t.Fatalf("expected first day empty, got count %d", result.DailyData[0].Count)
	}
	if result.DailyData[1].Count != 1 {
		t.Fatalf("expected midnight sample in second day, got count %d", result.DailyData[1].Count)
	}
}

func TestAggregateDailyKeepsDuplicateTimestamps(t *testing.T) {
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	ts := day.Add(8 * time.Hour)
	samples := []MetricSample{sampleAt(ts, 2), sampleAt(ts, 5)}

	result, err := AggregateDaily(samples, day, day)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("expected both duplicate samples kept, got count %d", result.Count)
	}
	if result.Sum != 7 {
		t.Fatalf("expected sum 7, got %f", result.Sum)
	}
}

func TestAggregateDailyEmptyWindow(t *testing.T) {
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	result, err := AggregateDaily(nil, day, day)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if result.Avg != nil || result.Max != nil || result.Min != nil {
		t.Fatalf("expected nil overall markers for empty window")
	}
	if len(result.DailyData) != 1 {
		t.Fatalf("expected single bucket, got %d", len(result.DailyData))
	}
}

func TestAggregateDailyEndBeforeStart(t *testing.T) {
	start := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := AggregateDaily(nil, start, end)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func relDiff(a, b float64) float64 {
	if a == b {
		return 0
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale == 0 {
		return 0
	}
	return math.Abs(a-b) / scale
}
