package dataset

import (
	"math"
	"sort"

	roaring "github.com/RoaringBitmap/roaring"
	"gonum.org/v1/gonum/stat"
)

// LengthStats summarizes a set of sequence lengths.
type LengthStats struct {
	Mean   float64
	StdDev float64
	Min    int
	Max    int
	P50    float64
	P95    float64
}

// Report describes a built dataset.
type Report struct {
	Examples int
	// Input is over len(input_ids); Supervised over labels != IgnoreIndex.
	Input      LengthStats
	Supervised LengthStats
	// Truncated holds indexes whose full text exceeded the max length.
	Truncated *roaring.Bitmap
	// Unsupervised holds indexes with no label left after masking.
	Unsupervised *roaring.Bitmap
}

func newReport(built []builtExample) *Report {
	r := &Report{
		Examples:     len(built),
		Truncated:    roaring.New(),
		Unsupervised: roaring.New(),
	}
	inputs := make([]float64, len(built))
	supervised := make([]float64, len(built))
	for i, b := range built {
		inputs[i] = float64(len(b.InputIDs))
		n := SupervisedCount(b.Labels)
		supervised[i] = float64(n)
		if b.Truncated {
			r.Truncated.Add(uint32(i))
		}
		if n == 0 {
			r.Unsupervised.Add(uint32(i))
		}
	}
	r.Input = lengthStats(inputs)
	r.Supervised = lengthStats(supervised)
	return r
}

// SupervisedCount returns the number of labels that take part in the loss.
func SupervisedCount(labels []int) int {
	n := 0
	for _, l := range labels {
		if l != IgnoreIndex {
			n++
		}
	}
	return n
}

func lengthStats(x []float64) LengthStats {
	if len(x) == 0 {
		return LengthStats{}
	}
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)

	s := LengthStats{
		Mean: stat.Mean(sorted, nil),
		Min:  int(sorted[0]),
		Max:  int(sorted[len(sorted)-1]),
		P50:  stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:  stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	return s
}
