package adjust

import "fmt"

// Infinity stands in for an unbounded gap stop. It is deliberately far
// below math.MaxInt64 so downstream arithmetic (offset addition,
// nanosecond conversion) cannot overflow.
const Infinity int64 = 1 << 62

// CutEvent is the minimal shape CutEventsToGaps needs from a "stream"
// kind event: its collapsed timestamp and its cut command.
type CutEvent struct {
	OccurredAt int64
	Cut        string // "start" or "stop"
}

type cutState int

const (
	cutStopped cutState = iota
	cutStarted
)

// CutEventsToGaps turns an ordered start/stop event list into a gap
// list with a small FSM, grounded on
// adjust_room/mod.rs::cut_events_to_gaps.
//
// spec.md §4.E step 5 is explicit that an unpaired trailing "start"
// pairs with +Infinity and an unpaired leading "stop" pairs with 0;
// original_source's FSM instead silently drops the former and no-ops
// the latter. The spec text is unambiguous, so it is implemented
// literally here (see DESIGN.md for the resolution).
func CutEventsToGaps(events []CutEvent) ([]Segment, error) {
	gaps := make([]Segment, 0, len(events))
	state := cutStopped
	var pendingStart int64

	for _, e := range events {
		switch e.Cut {
		case "start":
			switch state {
			case cutStopped, cutStarted:
				pendingStart = e.OccurredAt
				state = cutStarted
			}
		case "stop":
			switch state {
			case cutStarted:
				gaps = append(gaps, Segment{Start: pendingStart, Stop: e.OccurredAt})
				state = cutStopped
			case cutStopped:
				// Leading unpaired stop: pairs with 0 per spec.md §4.E.
				// A stop after a completed pair is redundant and ignored.
				if len(gaps) == 0 {
					gaps = append(gaps, Segment{Start: 0, Stop: e.OccurredAt})
				}
			}
		default:
			return nil, fmt.Errorf("adjust: invalid cut command %q", e.Cut)
		}
	}

	if state == cutStarted {
		// Trailing unpaired start: pairs with +Infinity per spec.md §4.E.
		gaps = append(gaps, Segment{Start: pendingStart, Stop: Infinity})
	}

	return gaps, nil
}
