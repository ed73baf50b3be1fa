package gormpersistence_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gormpersistence "github.com/foxford/event/internal/infra/persistence/gorm"
	"github.com/foxford/event/internal/repository"
)

func TestEventRepository_LatestPerLabel_UsesRowNumberWindow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := gormpersistence.NewEventRepository(db)

	roomID := uuid.New()
	eventID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM \(SELECT \*, ROW_NUMBER\(\) OVER \(PARTITION BY label ORDER BY occurred_at DESC, created_at DESC\) AS rn FROM .event. WHERE room_id = \? AND .set. = \? AND deleted_at IS NULL\) AS ranked WHERE rn = 1 AND removed = \?`).
		WithArgs(roomID.String(), "whiteboard", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "set", "occurred_at", "removed"}).
			AddRow(eventID.String(), roomID.String(), "whiteboard", int64(1000), false))

	events, err := repo.LatestPerLabel(context.Background(), repository.EventQuery{
		RoomID: roomID,
		SetID:  "whiteboard",
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventID, events[0].ID)
	assert.Equal(t, int64(1000), events[0].OccurredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_LatestPerLabel_PropagatesQueryError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := gormpersistence.NewEventRepository(db)

	roomID := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM \(SELECT`).WillReturnError(assertDBError("connection reset"))

	_, err := repo.LatestPerLabel(context.Background(), repository.EventQuery{RoomID: roomID, SetID: "whiteboard"})
	assert.Error(t, err)
}

func TestEventRepository_EventsInRoomRange_AppliesFiltersAndCursor(t *testing.T) {
	db, mock := newMockDB(t)
	repo := gormpersistence.NewEventRepository(db)

	roomID := uuid.New()
	eventID := uuid.New()
	cursor := int64(500)

	mock.ExpectQuery(`SELECT \* FROM .event. WHERE room_id = \? AND kind = \? AND removed = \? AND occurred_at > \? ORDER BY occurred_at ASC`).
		WithArgs(roomID.String(), "draw", false, cursor).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "kind", "occurred_at", "removed"}).
			AddRow(eventID.String(), roomID.String(), "draw", int64(600), false))

	removed := false
	events, err := repo.EventsInRoomRange(context.Background(), repository.EventQuery{
		RoomID:         roomID,
		Kind:           "draw",
		Removed:        &removed,
		LastOccurredAt: &cursor,
		Direction:      "forward",
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventID, events[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_EventsForAdjust_KeepsRemovedExcludesDeleted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := gormpersistence.NewEventRepository(db)

	roomID := uuid.New()
	keptID := uuid.New()
	removedID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM .event. WHERE room_id = \? AND deleted_at IS NULL ORDER BY occurred_at ASC`).
		WithArgs(roomID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "occurred_at", "removed"}).
			AddRow(keptID.String(), roomID.String(), int64(1000), false).
			AddRow(removedID.String(), roomID.String(), int64(2000), true))

	events, err := repo.EventsForAdjust(context.Background(), roomID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.False(t, events[0].Removed)
	assert.True(t, events[1].Removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_FindByID_MapsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := gormpersistence.NewEventRepository(db)

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM .event.`).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEventRepository_BulkInsertEvents_NoopOnEmpty(t *testing.T) {
	db, _ := newMockDB(t)
	repo := gormpersistence.NewEventRepository(db)

	err := repo.BulkInsertEvents(context.Background(), nil)
	assert.NoError(t, err)
}

type assertDBError string

func (e assertDBError) Error() string { return string(e) }
