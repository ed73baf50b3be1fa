package adjust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvertSegments_Empty(t *testing.T) {
	gaps := InvertSegments(nil, 100, 10)
	assert.Equal(t, []Segment{{Start: 0, Stop: 100}}, gaps)
}

func TestInvertSegments_LeadingAndInnerGaps(t *testing.T) {
	segments := []Segment{{Start: 10, Stop: 40}, {Start: 50, Stop: 70}}
	gaps := InvertSegments(segments, 100, 5)
	assert.Equal(t, []Segment{
		{Start: 0, Stop: 10},
		{Start: 40, Stop: 50},
		{Start: 70, Stop: 100},
	}, gaps)
}

func TestInvertSegments_DropsShortTrailingGap(t *testing.T) {
	segments := []Segment{{Start: 0, Stop: 95}}
	gaps := InvertSegments(segments, 100, 10)
	assert.Empty(t, gaps, "trailing gap of length 5 is under the minimum of 10 and must be dropped")
}

func TestInvertSegments_KeepsTrailingGapAboveMinimum(t *testing.T) {
	segments := []Segment{{Start: 0, Stop: 80}}
	gaps := InvertSegments(segments, 100, 10)
	assert.Equal(t, []Segment{{Start: 80, Stop: 100}}, gaps)
}

func TestModifiedSegmentsInvariant(t *testing.T) {
	// spec.md §8 invariant 6: sum(modified) == sum(segments) - sum(cuts ∩ segments)
	segments := []Segment{{Start: 0, Stop: 45000}, {Start: 55000, Stop: 70000}}
	cuts := []Segment{{Start: 20000, Stop: 40000}}

	totalSegments := TotalLen(segments)
	totalCuts := TotalLen(cuts)

	modified := InvertSegments(cuts, totalSegments, 0)
	assert.Equal(t, totalSegments-totalCuts, TotalLen(modified))
}
