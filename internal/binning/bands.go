// Package binning turns raw grade counts into bounded, labelled histogram bands.
package binning

import (
	"errors"
	"math"
	"strconv"
)

// ErrInvalidBandConfiguration is returned for a maximum grade that cannot be banded.
var ErrInvalidBandConfiguration = errors.New("binning: max grade must be a positive finite number")

// BandSpec is the number and width of the bands covering a grade scale.
type BandSpec struct {
	Count int     `json:"count"`
	Width float64 `json:"width"`
}

// Scale is a quiz grade scale and the precision its values are displayed with.
type Scale struct {
	MaxGrade      float64
	DecimalPoints int
}

// Spec computes the band layout for the scale's maximum grade.
func (s Scale) Spec() (BandSpec, error) {
	return ComputeBandSpec(s.MaxGrade)
}

// Format renders a bound with the scale's display precision.
func (s Scale) Format(v float64) string {
	dp := s.DecimalPoints
	if dp < 0 {
		dp = 0
	}
	return strconv.FormatFloat(v, 'f', dp, 64)
}

// ComputeBandSpec derives a band count in [11, 20] from maxGrade by repeatedly
// halving, fifthing, doubling or quintupling it, then sets width = maxGrade / count.
func ComputeBandSpec(maxGrade float64) (BandSpec, error) {
	if math.IsNaN(maxGrade) || math.IsInf(maxGrade, 0) || maxGrade <= 0 {
		return BandSpec{}, ErrInvalidBandConfiguration
	}

	bands := maxGrade
	for bands > 20 || bands <= 10 {
		if bands > 50 {
			bands /= 5
		} else if bands > 20 {
			bands /= 2
		}
		if bands < 4 {
			bands *= 5
		} else if bands <= 10 {
			bands *= 2
		}
	}

	count := int(math.Ceil(bands))
	return BandSpec{Count: count, Width: maxGrade / float64(count)}, nil
}

// BandLabels returns count labels "<lo> - <hi>" where band i (1-indexed) spans
// (i-1)*width*(100/count) to i*width*(100/count).
func BandLabels(count int, width float64, scale Scale) []string {
	if count <= 0 {
		return nil
	}

	coefficient := 100 / float64(count)
	labels := make([]string, count)
	for i := 1; i <= count; i++ {
		lo := float64(i-1) * width * coefficient
		hi := float64(i) * width * coefficient
		labels[i-1] = scale.Format(lo) + " - " + scale.Format(hi)
	}
	return labels
}

// Rebin returns the labels and counts to display for spec. A 100-band spec is
// collapsed into 10 bands of summed counts; any other spec keeps data as is.
func Rebin(spec BandSpec, scale Scale, data []int) ([]string, []int) {
	if spec.Count != 100 {
		return BandLabels(spec.Count, spec.Width, scale), data
	}

	merged := make([]int, 0, (len(data)+9)/10)
	for start := 0; start < len(data); start += 10 {
		end := min(start+10, len(data))
		sum := 0
		for _, n := range data[start:end] {
			sum += n
		}
		merged = append(merged, sum)
	}
	return BandLabels(10, spec.Width, scale), merged
}

// FoldBands turns sparse FLOOR(grade/width) counts into count dense bands.
// Index count (a perfect grade) and anything above it fold into the last band,
// negative indexes into the first, so the band sum always equals the row sum.
func FoldBands(raw map[int]int, count int) []int {
	if count <= 0 {
		return nil
	}

	data := make([]int, count)
	for idx, n := range raw {
		switch {
		case idx < 0:
			idx = 0
		case idx >= count:
			idx = count - 1
		}
		data[idx] += n
	}
	return data
}
