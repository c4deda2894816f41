package binning

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/stemsi/quiz-overview/internal/model"
)

// DisplayRawBands is the number of fixed-width raw bands the display histogram reads.
const DisplayRawBands = 10

// ErrRawBandCount is returned when the display histogram gets the wrong number of raw bands.
var ErrRawBandCount = errors.New("binning: display histogram needs exactly 10 raw bands")

// Direction is the reading direction labels are rendered for.
type Direction int

const (
	LeftToRight Direction = iota
	RightToLeft
)

func (d Direction) String() string {
	if d == RightToLeft {
		return "rtl"
	}
	return "ltr"
}

// Layout selects the bucket boundaries of the display histogram.
type Layout int

const (
	// LayoutTenPoint covers a 0-10 scale with raw bands of width 1.
	LayoutTenPoint Layout = iota
	// LayoutHundredPoint covers a 0-100 scale with raw bands of width 10.
	LayoutHundredPoint
)

// LayoutFor picks the hundred-point layout for a quiz graded out of 100 and the
// ten-point layout for every other scale.
func LayoutFor(maxGrade float64) Layout {
	if maxGrade == 100 {
		return LayoutHundredPoint
	}
	return LayoutTenPoint
}

// BandWidth is the raw band width the grade counts must be grouped by.
func (l Layout) BandWidth() float64 {
	if l == LayoutHundredPoint {
		return 10
	}
	return 1
}

func (l Layout) bounds() []float64 {
	if l == LayoutHundredPoint {
		return []float64{0, 55, 60, 70, 80, 90, 100}
	}
	return []float64{0, 5, 6, 7, 8, 9, 10}
}

// Labels returns the six grade bucket labels in the given direction.
func (l Layout) Labels(dir Direction) []string {
	b := l.bounds()
	labels := make([]string, 0, len(b)-1)
	for i := 1; i < len(b); i++ {
		lo := strconv.FormatFloat(b[i-1], 'f', -1, 64)
		hi := strconv.FormatFloat(b[i], 'f', -1, 64)
		if dir == RightToLeft {
			labels = append(labels, hi+" - "+lo)
		} else {
			labels = append(labels, lo+" - "+hi)
		}
	}
	return labels
}

// DisplayHistogram builds the fixed 7-bucket chart: not submitted, raw bands 0-4
// merged, then raw bands 5-9 one each.
func DisplayHistogram(raw []int, notSubmitted int, layout Layout, dir Direction, notSubmittedLabel string) ([]model.Bucket, error) {
	if len(raw) != DisplayRawBands {
		return nil, fmt.Errorf("%w: got %d", ErrRawBandCount, len(raw))
	}

	lower := 0
	for _, n := range raw[:5] {
		lower += n
	}

	counts := make([]int, 0, 7)
	counts = append(counts, notSubmitted, lower)
	counts = append(counts, raw[5:]...)

	labels := append([]string{notSubmittedLabel}, layout.Labels(dir)...)

	buckets := make([]model.Bucket, len(counts))
	for i := range counts {
		buckets[i] = model.Bucket{Label: labels[i], Count: counts[i]}
	}
	return buckets, nil
}

// EmptyHistogram is the chart shown before any grade exists: every bucket zero.
func EmptyHistogram(layout Layout, dir Direction, notSubmittedLabel string) []model.Bucket {
	buckets, _ := DisplayHistogram(make([]int, DisplayRawBands), 0, layout, dir, notSubmittedLabel)
	return buckets
}
