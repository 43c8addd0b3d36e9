// Package reconcile decides which fetched weather samples may be
// written back to the store. A sample qualifies only when a reading row
// for its timestamp already exists AND that row still lacks an ambient
// temperature; everything else is left untouched.
package reconcile

import (
	"ambient-sync/internal/models"
)

// Set holds canonical timestamp strings.
type Set map[string]struct{}

func NewSet(timestamps ...string) Set {
	s := make(Set, len(timestamps))
	for _, ts := range timestamps {
		s.Add(ts)
	}
	return s
}

func (s Set) Add(ts string) {
	s[ts] = struct{}{}
}

func (s Set) Contains(ts string) bool {
	_, ok := s[ts]
	return ok
}

// Intersect returns a new Set with the timestamps present in both sets.
func (s Set) Intersect(other Set) Set {
	small, large := s, other
	if len(other) < len(s) {
		small, large = other, s
	}

	result := make(Set)
	for ts := range small {
		if large.Contains(ts) {
			result.Add(ts)
		}
	}
	return result
}

// Filter retains exactly the samples whose canonical timestamp is in
// existing ∩ missing, preserving the input order. It never mutates its
// arguments and the result is always a subset of the input.
func Filter(samples []models.WeatherSample, existing, missing Set) []models.WeatherSample {
	toWrite := existing.Intersect(missing)
	if len(toWrite) == 0 {
		return nil
	}

	var filtered []models.WeatherSample
	for _, sample := range samples {
		if toWrite.Contains(sample.CanonicalTimestamp()) {
			filtered = append(filtered, sample)
		}
	}
	return filtered
}
