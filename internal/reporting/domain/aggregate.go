package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day key used by daily buckets.
const DateLayout = "2006-01-02"

// DailyAggregate holds the statistics of one calendar-day bucket.
// Avg, Max and Min are nil when the bucket holds no samples; a nil value
// distinguishes "no data" from a measured zero.
type DailyAggregate struct {
	Date  string   `json:"date"`
	Sum   float64  `json:"sum"`
	Avg   *float64 `json:"avg"`
	Max   *float64 `json:"max"`
	Min   *float64 `json:"min"`
	Count int      `json:"count"`
}

// AggregationResult is the whole-window statistic plus its daily buckets.
// It is recomputed per request and never persisted.
type AggregationResult struct {
	Sum       float64          `json:"sum"`
	Avg       *float64         `json:"avg"`
	Max       *float64         `json:"max"`
	Min       *float64         `json:"min"`
	Count     int              `json:"count"`
	Unit      string           `json:"unit"`
	DailyData []DailyAggregate `json:"daily_data"`
}

type accumulator struct {
	sum   float64
	max   float64
	min   float64
	count int
}

func (a *accumulator) add(value float64) {
	if a.count == 0 || value > a.max {
		a.max = value
	}
	if a.count == 0 || value < a.min {
		a.min = value
	}
	a.sum += value
	a.count++
}

// AggregateDaily buckets samples into UTC calendar days over the inclusive
// [start, end] window. Every day in the window gets a bucket, including
// days without samples (Count 0, Sum 0, nil Avg/Max/Min). A sample at
// exactly midnight belongs to the day it starts. Duplicate timestamps are
// all kept; nothing is deduplicated.
func AggregateDaily(samples []MetricSample, start, end time.Time) (AggregationResult, error) {
	startDay := truncateToDay(start.UTC())
	endDay := truncateToDay(end.UTC())
	if endDay.Before(startDay) {
		return AggregationResult{}, fmt.Errorf("%w: end date %s before start date %s", ErrBadRequest, endDay.Format(DateLayout), startDay.Format(DateLayout))
	}
	windowEnd := endDay.AddDate(0, 0, 1)

	byDay := make(map[string]*accumulator)
	var overall accumulator
	unit := ""
	for _, sample := range samples {
		ts := sample.Timestamp.UTC()
		if ts.Before(startDay) || !ts.Before(windowEnd) {
			continue
		}
		if unit == "" {
			unit = sample.Unit
		}
		key := ts.Format(DateLayout)
		acc := byDay[key]
		if acc == nil {
			acc = &accumulator{}
			byDay[key] = acc
		}
		acc.add(sample.Value)
		overall.add(sample.Value)
	}

	days := int(windowEnd.Sub(startDay).Hours() / 24)
	daily := make([]DailyAggregate, 0, days)
	for day := startDay; day.Before(windowEnd); day = day.AddDate(0, 0, 1) {
		key := day.Format(DateLayout)
		entry := DailyAggregate{Date: key}
		if acc, ok := byDay[key]; ok {
			entry.Sum = acc.sum
			entry.Count = acc.count
			entry.Avg = optFloat(acc.sum / float64(acc.count))
			entry.Max = optFloat(acc.max)
			entry.Min = optFloat(acc.min)
		}
		daily = append(daily, entry)
	}

	result := AggregationResult{
		Sum:       overall.sum,
		Count:     overall.count,
		Unit:      unit,
		DailyData: daily,
	}
	if overall.count > 0 {
		result.Avg = optFloat(overall.sum / float64(overall.count))
		result.Max = optFloat(overall.max)
		result.Min = optFloat(overall.min)
	}
	return result, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func optFloat(value float64) *float64 {
	return &value
}
