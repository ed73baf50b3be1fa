// Package adjust implements the pure, DB-free math behind the room
// adjust and edition commit engines: segment inversion, gap-collapse
// shifting, and stream-cut pairing. All three are grounded on
// original_source/src/app/operations/adjust_room/{segments.rs,mod.rs,v1.rs}.
//
// Time units: segments and gaps returned to callers are milliseconds;
// event timestamps handled by CollapseGaps are nanoseconds. Callers are
// responsible for the ×NanosPerMillisecond conversion at the boundary.
package adjust

// NanosPerMillisecond mirrors original_source's NANOSECONDS_IN_MILLISECOND.
const NanosPerMillisecond = 1_000_000

// InvertSegments computes the complement of segments within
// [0, roomDurationMs), dropping a trailing gap no longer than
// minSegmentLengthMs. Grounded on adjust_room/segments.rs::invert_segments.
//
// segments must be sorted and non-overlapping; the empty case returns a
// single gap spanning the whole room.
func InvertSegments(segments []Segment, roomDurationMs, minSegmentLengthMs int64) []Segment {
	if len(segments) == 0 {
		return []Segment{{Start: 0, Stop: roomDurationMs}}
	}

	gaps := make([]Segment, 0, len(segments)+1)

	if segments[0].Start > 0 {
		gaps = append(gaps, Segment{Start: 0, Stop: segments[0].Start})
	}

	for i := 1; i < len(segments); i++ {
		prevStop := segments[i-1].Stop
		curStart := segments[i].Start
		if curStart > prevStop {
			gaps = append(gaps, Segment{Start: prevStop, Stop: curStart})
		}
	}

	last := segments[len(segments)-1].Stop
	if roomDurationMs-last > minSegmentLengthMs {
		gaps = append(gaps, Segment{Start: last, Stop: roomDurationMs})
	}

	return gaps
}

// Segment is a half-open interval; callers choose the unit (ms for
// capture segments, ns for gap arithmetic against event timestamps).
type Segment struct {
	Start int64
	Stop  int64
}

// Len returns Stop - Start.
func (s Segment) Len() int64 { return s.Stop - s.Start }

// TotalLen sums the lengths of segments, used to check the "modified
// segments invariant" from spec.md §8.
func TotalLen(segments []Segment) int64 {
	var total int64
	for _, s := range segments {
		total += s.Len()
	}
	return total
}
