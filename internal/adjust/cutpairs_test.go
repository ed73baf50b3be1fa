package adjust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCutEventsToGaps_SimplePair(t *testing.T) {
	events := []CutEvent{
		{OccurredAt: 20_000 * NanosPerMillisecond, Cut: "start"},
		{OccurredAt: 40_000 * NanosPerMillisecond, Cut: "stop"},
	}
	gaps, err := CutEventsToGaps(events)
	require.NoError(t, err)
	assert.Equal(t, []Segment{
		{Start: 20_000 * NanosPerMillisecond, Stop: 40_000 * NanosPerMillisecond},
	}, gaps)
}

func TestCutEventsToGaps_AbandonedStartIsOverwritten(t *testing.T) {
	events := []CutEvent{
		{OccurredAt: 10, Cut: "start"},
		{OccurredAt: 20, Cut: "start"}, // abandons the first start silently
		{OccurredAt: 30, Cut: "stop"},
	}
	gaps, err := CutEventsToGaps(events)
	require.NoError(t, err)
	assert.Equal(t, []Segment{{Start: 20, Stop: 30}}, gaps)
}

func TestCutEventsToGaps_RedundantStopIsNoop(t *testing.T) {
	events := []CutEvent{
		{OccurredAt: 10, Cut: "start"},
		{OccurredAt: 20, Cut: "stop"},
		{OccurredAt: 30, Cut: "stop"}, // already stopped, ignored
	}
	gaps, err := CutEventsToGaps(events)
	require.NoError(t, err)
	assert.Equal(t, []Segment{{Start: 10, Stop: 20}}, gaps)
}

func TestCutEventsToGaps_TrailingUnpairedStartPairsWithInfinity(t *testing.T) {
	events := []CutEvent{
		{OccurredAt: 10, Cut: "start"},
	}
	gaps, err := CutEventsToGaps(events)
	require.NoError(t, err)
	assert.Equal(t, []Segment{{Start: 10, Stop: Infinity}}, gaps)
}

func TestCutEventsToGaps_LeadingUnpairedStopPairsWithZero(t *testing.T) {
	events := []CutEvent{
		{OccurredAt: 15, Cut: "stop"},
	}
	gaps, err := CutEventsToGaps(events)
	require.NoError(t, err)
	assert.Equal(t, []Segment{{Start: 0, Stop: 15}}, gaps)
}

func TestCutEventsToGaps_InvalidCommand(t *testing.T) {
	events := []CutEvent{{OccurredAt: 1, Cut: "pause"}}
	_, err := CutEventsToGaps(events)
	assert.Error(t, err)
}
