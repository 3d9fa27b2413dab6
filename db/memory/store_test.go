package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raillink/entity"
)

func testSchedule(capacity int) entity.Schedule {
	departure := time.Now().Add(time.Hour)
	schedule := entity.Schedule{
		ID:                 uuid.NewString(),
		TrainID:            "TLK-1",
		DepartureStationID: "KRK",
		ArrivalStationID:   "WRO",
		DepartureTime:      departure,
		ArrivalTime:        departure.Add(time.Hour),
		Status:             entity.ScheduleStatusOnTime,
		Seats:              map[entity.FareClass]entity.SeatInventory{},
	}
	for _, class := range entity.FareClasses {
		schedule.Seats[class] = entity.SeatInventory{
			Class:     class,
			Price:     entity.Money{Amount: "5.00", Currency: "PLN"},
			Capacity:  capacity,
			SeatsLeft: capacity,
		}
	}

	return schedule
}

func TestStore_rollback_restores_state(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	schedule := testSchedule(1)
	require.NoError(t, store.Schedules().Store(ctx, schedule))

	errBoom := errors.New("boom")
	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, store.Inventory().Reserve(ctx, schedule.ID, entity.FareClassEconomy))
		require.NoError(t, store.Publish(ctx, "event"))
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	seats, err := store.Inventory().Get(ctx, schedule.ID, entity.FareClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, 1, seats.SeatsLeft)
	assert.Empty(t, store.Events())
}

func TestStore_commit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	schedule := testSchedule(1)
	require.NoError(t, store.Schedules().Store(ctx, schedule))

	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		// nested transactions join the outer one
		return store.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := store.Inventory().Reserve(ctx, schedule.ID, entity.FareClassVIP); err != nil {
				return err
			}
			return store.Publish(ctx, "event")
		})
	})
	require.NoError(t, err)

	seats, err := store.Inventory().Get(ctx, schedule.ID, entity.FareClassVIP)
	require.NoError(t, err)
	assert.Equal(t, 0, seats.SeatsLeft)
	assert.Equal(t, []any{"event"}, store.Events())

	err = store.Inventory().Reserve(ctx, schedule.ID, entity.FareClassVIP)
	assert.ErrorIs(t, err, entity.ErrSeatUnavailable)
}

func TestStore_rollback_on_panic(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	schedule := testSchedule(1)
	require.NoError(t, store.Schedules().Store(ctx, schedule))

	assert.Panics(t, func() {
		_ = store.WithinTransaction(ctx, func(ctx context.Context) error {
			_ = store.Inventory().Reserve(ctx, schedule.ID, entity.FareClassBusiness)
			panic("boom")
		})
	})

	seats, err := store.Inventory().Get(ctx, schedule.ID, entity.FareClassBusiness)
	require.NoError(t, err)
	assert.Equal(t, 1, seats.SeatsLeft)
}

func TestStore_cancelled_context(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewStore().WithinTransaction(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestStore_release_is_capped(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	schedule := testSchedule(2)
	require.NoError(t, store.Schedules().Store(ctx, schedule))

	require.NoError(t, store.Inventory().Release(ctx, schedule.ID, entity.FareClassEconomy))

	seats, err := store.Inventory().Get(ctx, schedule.ID, entity.FareClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, 2, seats.SeatsLeft)

	err = store.Inventory().Release(ctx, uuid.NewString(), entity.FareClassEconomy)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestStore_returned_schedule_is_a_copy(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	schedule := testSchedule(3)
	require.NoError(t, store.Schedules().Store(ctx, schedule))

	got, err := store.Schedules().Get(ctx, schedule.ID)
	require.NoError(t, err)

	seats := got.Seats[entity.FareClassEconomy]
	seats.SeatsLeft = 0
	got.Seats[entity.FareClassEconomy] = seats

	stored, err := store.Inventory().Get(ctx, schedule.ID, entity.FareClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.SeatsLeft)
}

func TestStore_schedule_stored_twice(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	schedule := testSchedule(3)
	require.NoError(t, store.Schedules().Store(ctx, schedule))

	same := testSchedule(3)
	same.ID = schedule.ID
	same.DepartureTime = schedule.DepartureTime
	same.ArrivalTime = schedule.ArrivalTime
	assert.NoError(t, store.Schedules().Store(ctx, same))

	different := testSchedule(4)
	different.ID = schedule.ID
	err := store.Schedules().Store(ctx, different)
	assert.ErrorIs(t, err, entity.ErrConflict)

	stored, err := store.Schedules().Get(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Seats[entity.FareClassEconomy].Capacity)
}

func TestStore_search_schedules(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	day := time.Date(2031, 3, 14, 0, 0, 0, 0, time.UTC)

	add := func(departure time.Time, from, to string) entity.Schedule {
		s := testSchedule(2)
		s.DepartureTime = departure
		s.ArrivalTime = departure.Add(time.Hour)
		s.DepartureStationID = from
		s.ArrivalStationID = to
		require.NoError(t, store.Schedules().Store(ctx, s))
		return s
	}

	late := add(day.Add(23*time.Hour), "KRK", "WRO")
	early := add(day.Add(time.Hour), "KRK", "WRO")
	add(day.Add(24*time.Hour), "KRK", "WRO")
	add(day.Add(2*time.Hour), "WRO", "KRK")

	found, err := store.Schedules().Search(ctx, entity.ScheduleQuery{
		DepartureStationID: "KRK",
		ArrivalStationID:   "WRO",
		Date:               day,
	})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, early.ID, found[0].ID)
	assert.Equal(t, late.ID, found[1].ID)

	all, err := store.Schedules().Search(ctx, entity.ScheduleQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := store.Schedules().Search(ctx, entity.ScheduleQuery{DepartureStationID: "GDN"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestStore_reserve_on_cancelled_schedule(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	schedule := testSchedule(1)
	require.NoError(t, store.Schedules().Store(ctx, schedule))
	require.NoError(t, store.Schedules().UpdateStatus(ctx, schedule.ID, entity.ScheduleStatusCancelled, time.Time{}, time.Time{}))

	err := store.Inventory().Reserve(ctx, schedule.ID, entity.FareClassEconomy)
	assert.ErrorIs(t, err, entity.ErrValidation)

	seats, err := store.Inventory().Get(ctx, schedule.ID, entity.FareClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, 1, seats.SeatsLeft)
}
