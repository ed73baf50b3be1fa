package adjust

// CollapseGaps maps occurredAt (nanoseconds, relative to a room's
// opening) through a gap-collapse against gaps (also nanoseconds),
// then adds offset. Gaps must be sorted and non-overlapping.
//
// Grounded on adjust_room/mod.rs::clone_events's raw-SQL CASE
// expression: an event inside (or before, via the start==0 gap) a gap
// collapses to the gap's start; the accumulated width of every gap
// strictly before occurred_at is otherwise subtracted out.
func CollapseGaps(occurredAt int64, gaps []Segment, offset int64) int64 {
	for _, g := range gaps {
		if g.Start == 0 && occurredAt <= g.Stop {
			return offset
		}
	}

	var removed int64
	for _, g := range gaps {
		if g.Start < 0 || g.Start >= occurredAt {
			continue
		}
		stop := g.Stop
		if occurredAt < stop {
			stop = occurredAt
		}
		removed += stop - g.Start
	}
	return occurredAt - removed + offset
}

// MonotonizeNonStream re-derives the ROW_NUMBER() OVER (PARTITION BY
// occurred_at, kind = 'stream' ORDER BY created_at) tie-break the
// original clone_events SQL applies after collapsing: events of any
// kind other than "stream" that land on the same collapsed occurred_at
// are nudged forward by their rank within the tie, in CreatedAt order,
// so events that shared a timestamp no longer share it with each other
// (a nudged event can still land on a neighbouring event's timestamp). Stream cut markers are left untouched so cut-pair
// detection isn't skewed.
//
// events must already carry their post-CollapseGaps OccurredAt values.
func MonotonizeNonStream(events []ClonedEvent) {
	type key struct {
		occurredAt int64
	}
	groups := make(map[key][]int)
	for i, e := range events {
		if e.Kind == "stream" {
			continue
		}
		k := key{occurredAt: e.OccurredAt}
		groups[k] = append(groups[k], i)
	}
	for _, idxs := range groups {
		if len(idxs) < 2 {
			continue
		}
		sortByCreatedAt(events, idxs)
		for rank, idx := range idxs {
			events[idx].OccurredAt += int64(rank)
		}
	}
}

// ClonedEvent is the minimal shape MonotonizeNonStream needs: enough to
// group by collapsed timestamp and break ties by insertion order.
type ClonedEvent struct {
	Kind       string
	OccurredAt int64
	CreatedAt  int64 // unix nanos, used only for tie-break ordering
}

func sortByCreatedAt(events []ClonedEvent, idxs []int) {
	for i := 1; i < len(idxs); i++ {
		j := i
		for j > 0 && events[idxs[j-1]].CreatedAt > events[idxs[j]].CreatedAt {
			idxs[j-1], idxs[j] = idxs[j], idxs[j-1]
			j--
		}
	}
}
