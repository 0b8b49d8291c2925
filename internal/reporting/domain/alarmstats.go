package domain

import "sort"

// DefaultTopTypes is the default limit for the most frequent alarm types.
const DefaultTopTypes = 10

// ResolutionStats summarizes trigger-to-resolution durations over resolved
// alarms. All minute fields are nil when no alarm was resolved.
type ResolutionStats struct {
	AvgMinutes    *float64 `json:"avg_minutes"`
	MinMinutes    *float64 `json:"min_minutes"`
	MaxMinutes    *float64 `json:"max_minutes"`
	TotalResolved int      `json:"total_resolved"`
}

// AlarmTypeCount is one entry of the most-frequent alarm type ranking.
type AlarmTypeCount struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Count    int      `json:"count"`
}

// AlarmStats groups alarms by severity and status and ranks alarm types.
type AlarmStats struct {
	Total      int                 `json:"total"`
	BySeverity map[Severity]int    `json:"by_severity"`
	ByStatus   map[AlarmStatus]int `json:"by_status"`
	Resolution ResolutionStats     `json:"resolution"`
	TopTypes   []AlarmTypeCount    `json:"top_types"`
}

// CalculateAlarmStats computes groupings, resolution statistics and the
// top-N alarm types for a set of alarms. Resolution statistics only cover
// alarms with status RESOLVED. Types are grouped by exact message, sorted
// by count descending, ties broken by severity rank (most severe seen in
// the group) then message ascending. topN <= 0 falls back to DefaultTopTypes.
func CalculateAlarmStats(alarms []AlarmEvent, topN int) AlarmStats {
	if topN <= 0 {
		topN = DefaultTopTypes
	}

	stats := AlarmStats{
		Total:      len(alarms),
		BySeverity: make(map[Severity]int),
		ByStatus:   make(map[AlarmStatus]int),
	}

	var (
		sumMinutes float64
		minMinutes float64
		maxMinutes float64
	)
	types := make(map[string]*AlarmTypeCount)
	for _, alarm := range alarms {
		stats.BySeverity[alarm.Severity]++
		stats.ByStatus[alarm.Status]++

		if minutes, ok := alarm.ResolutionMinutes(); ok {
			if stats.Resolution.TotalResolved == 0 || minutes < minMinutes {
				minMinutes = minutes
			}
			if stats.Resolution.TotalResolved == 0 || minutes > maxMinutes {
				maxMinutes = minutes
			}
			sumMinutes += minutes
			stats.Resolution.TotalResolved++
		}

		entry := types[alarm.Message]
		if entry == nil {
			entry = &AlarmTypeCount{Message: alarm.Message, Severity: alarm.Severity}
			types[alarm.Message] = entry
		}
		entry.Count++
		if alarm.Severity.Rank() > entry.Severity.Rank() {
			entry.Severity = alarm.Severity
		}
	}

	if stats.Resolution.TotalResolved > 0 {
		stats.Resolution.AvgMinutes = optFloat(sumMinutes / float64(stats.Resolution.TotalResolved))
		stats.Resolution.MinMinutes = optFloat(minMinutes)
		stats.Resolution.MaxMinutes = optFloat(maxMinutes)
	}

	ranked := make([]AlarmTypeCount, 0, len(types))
	for _, entry := range types {
		ranked = append(ranked, *entry)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		if ranked[i].Severity.Rank() != ranked[j].Severity.Rank() {
			return ranked[i].Severity.Rank() > ranked[j].Severity.Rank()
		}
		return ranked[i].Message < ranked[j].Message
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	stats.TopTypes = ranked

	return stats
}
