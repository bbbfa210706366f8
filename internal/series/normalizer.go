// Package series validates and normalizes raw groundwater observation
// series before any statistics are computed over them.
package series

import (
	"fmt"
	"math"
	"sort"
	"time"

	"groundwatch/internal/types"
)

// MinPoints is the minimum number of valid observations required for any
// regression or trend statistic downstream to be meaningful.
const MinPoints = 3

// Drop records a single observation removed during normalization. Drops are
// diagnostics, not hard failures.
type Drop struct {
	Observation types.Observation `json:"observation"`
	Reason      string            `json:"reason"`
}

// Normalize sorts the raw series chronologically, deduplicates observations
// sharing a calendar date (the later entry in input order wins), and removes
// entries with non-finite or negative depth.
//
// The normalized series is returned even when it is too short, so callers
// can still report the current level; the accompanying error is
// insufficient_data when fewer than MinPoints valid observations remain.
func Normalize(raw []types.Observation) ([]types.Observation, []Drop, error) {
	var drops []Drop
	byDate := make(map[string]types.Observation, len(raw))

	for _, obs := range raw {
		switch {
		case obs.Date.IsZero():
			drops = append(drops, Drop{Observation: obs, Reason: "missing date"})
			continue
		case math.IsNaN(obs.Depth) || math.IsInf(obs.Depth, 0):
			drops = append(drops, Drop{Observation: obs, Reason: "non-finite depth"})
			continue
		case obs.Depth < 0:
			drops = append(drops, Drop{Observation: obs, Reason: "negative depth"})
			continue
		}
		byDate[dayKey(obs.Date)] = obs
	}

	out := make([]types.Observation, 0, len(byDate))
	for _, obs := range byDate {
		out = append(out, obs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	if len(out) < MinPoints {
		return out, drops, types.NewAppError(types.ErrCodeInsufficientData,
			fmt.Sprintf("need at least %d valid observations, have %d", MinPoints, len(out)), nil)
	}
	return out, drops, nil
}

// dayKey collapses a timestamp to its calendar date in UTC, the granularity
// at which duplicate observations are resolved.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
