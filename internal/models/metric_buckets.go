package models

import "math"

// BucketDirection controls which side of a threshold set counts as better.
type BucketDirection int

const (
	// LowerIsBetter classifies values below the thresholds as better (e.g. coding time).
	LowerIsBetter BucketDirection = iota
	// HigherIsBetter classifies values above the thresholds as better (e.g. maturity).
	HigherIsBetter
)

// BucketCounts is a four-tier histogram of classified metric values
type BucketCounts struct {
	Elite      int `json:"elite"`
	Good       int `json:"good"`
	Fair       int `json:"fair"`
	NeedsFocus int `json:"needs_focus"`
}

// BucketPercentages is the percentage view derived from BucketCounts
type BucketPercentages struct {
	Elite      float64 `json:"elite"`
	Good       float64 `json:"good"`
	Fair       float64 `json:"fair"`
	NeedsFocus float64 `json:"needs_focus"`
}

// MetricBuckets pairs tier counts with their derived percentages.
// Percentages are recomputed from counts on every classification and
// sum to 100 (up to rounding) whenever at least one value was classified.
type MetricBuckets struct {
	Counts      BucketCounts      `json:"counts"`
	Percentages BucketPercentages `json:"percentages"`
}

// Total returns the number of values classified so far
func (b *MetricBuckets) Total() int {
	return b.Counts.Elite + b.Counts.Good + b.Counts.Fair + b.Counts.NeedsFocus
}

// Classify assigns value to exactly one tier using the ordered thresholds,
// then refreshes the percentage view. Defined for any finite value.
func (b *MetricBuckets) Classify(value float64, thresholds [3]float64, direction BucketDirection) {
	switch direction {
	case HigherIsBetter:
		switch {
		case value > thresholds[0]:
			b.Counts.Elite++
		case value > thresholds[1]:
			b.Counts.Good++
		case value > thresholds[2]:
			b.Counts.Fair++
		default:
			b.Counts.NeedsFocus++
		}
	default:
		switch {
		case value < thresholds[0]:
			b.Counts.Elite++
		case value < thresholds[1]:
			b.Counts.Good++
		case value < thresholds[2]:
			b.Counts.Fair++
		default:
			b.Counts.NeedsFocus++
		}
	}

	b.recalculatePercentages()
}

func (b *MetricBuckets) recalculatePercentages() {
	total := b.Total()
	if total == 0 {
		return
	}

	b.Percentages.Elite = roundTwoDecimals(float64(b.Counts.Elite) / float64(total) * 100)
	b.Percentages.Good = roundTwoDecimals(float64(b.Counts.Good) / float64(total) * 100)
	b.Percentages.Fair = roundTwoDecimals(float64(b.Counts.Fair) / float64(total) * 100)
	b.Percentages.NeedsFocus = roundTwoDecimals(float64(b.Counts.NeedsFocus) / float64(total) * 100)
}

// TextMaturityScore is the length-based maturity proxy used for comments and
// commit messages: round(len/maturityLength, 2) * 100. Longer text scores
// higher and the score is not capped at 100.
func TextMaturityScore(text string, maturityLength int) float64 {
	if maturityLength <= 0 {
		return 0
	}
	return roundTwoDecimals(float64(len(text))/float64(maturityLength)) * 100
}

func roundTwoDecimals(value float64) float64 {
	return math.Round(value*100) / 100
}
