// Package filter provides peak filtering functions for isotopic envelopes
package filter

import (
	"sort"

	"github.com/ChrisMcGann/isodist/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN            int     // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64 // Keep only peaks above this % of base peak (0 = no cutoff)
	MinIntensity    float64 // Keep only peaks at or above this absolute intensity (0 = keep all)
}

// Active reports whether any filter is configured.
func (c *Config) Active() bool {
	return c.TopN > 0 || c.IntensityCutoff > 0 || c.MinIntensity > 0
}

// Apply applies all configured filters to an envelope
func (c *Config) Apply(env *core.Envelope) {
	if c.MinIntensity > 0 {
		c.filterByMinimum(env)
	}

	// Apply intensity filters
	if c.IntensityCutoff > 0 {
		c.filterByIntensity(env)
	}

	// Apply top-N filter
	if c.TopN > 0 {
		c.filterTopN(env)
	}

	// Ensure peaks are sorted after all filtering
	env.SortPeaks()
}

// filterByMinimum removes peaks below an absolute intensity
func (c *Config) filterByMinimum(env *core.Envelope) {
	var filtered []core.Peak
	for _, peak := range env.Peaks {
		if peak.Intensity >= c.MinIntensity {
			filtered = append(filtered, peak)
		}
	}
	env.Peaks = filtered
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c *Config) filterByIntensity(env *core.Envelope) {
	base, ok := env.BasePeak()
	if !ok {
		return
	}

	threshold := (c.IntensityCutoff / 100.0) * base.Intensity

	var filtered []core.Peak
	for _, peak := range env.Peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}

	env.Peaks = filtered
}

// filterTopN keeps only the N most intense peaks
func (c *Config) filterTopN(env *core.Envelope) {
	if len(env.Peaks) <= c.TopN {
		return
	}

	// Create a copy and sort by intensity descending; ties keep the lighter peak
	peaks := make([]core.Peak, len(env.Peaks))
	copy(peaks, env.Peaks)

	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Intensity > peaks[j].Intensity
	})

	env.Peaks = peaks[:c.TopN]
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(env *core.Envelope) {
	var filtered []core.Peak
	for _, peak := range env.Peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	env.Peaks = filtered
}
