package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/errs"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/model"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(hhmm int) time.Time {
	return day.Add(time.Duration(hhmm/100)*time.Hour + time.Duration(hhmm%100)*time.Minute)
}

func newRsv(resource, requester string, start, end time.Time) model.Reservation {
	return model.Reservation{
		BookingCode:  model.NewBookingCode(),
		ResourceID:   resource,
		RequesterID:  requester,
		VehicleClass: model.ClassFourSeater,
		StartTime:    start,
		EndTime:      end,
		TotalHours:   model.BillableHours(start, end),
	}
}

func TestMemoryAdmitRespectsCapacity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.AdmitReservation(ctx, newRsv("lot-1", "alice", at(1000), at(1200)), 1)
	require.NoError(t, err)

	// capacity=1: [11:00,13:00) overlaps [10:00,12:00)
	_, err = repo.AdmitReservation(ctx, newRsv("lot-1", "bob", at(1100), at(1300)), 1)
	require.ErrorIs(t, err, errs.ErrOverCapacity)

	// boundary-touching window is admitted
	_, err = repo.AdmitReservation(ctx, newRsv("lot-1", "bob", at(1200), at(1300)), 1)
	require.NoError(t, err)

	// other resources are unaffected
	_, err = repo.AdmitReservation(ctx, newRsv("lot-2", "bob", at(1100), at(1300)), 1)
	require.NoError(t, err)
}

func TestMemoryAdmitAfterCancelFreesSlot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMemoryRepository()

	a, err := repo.AdmitReservation(ctx, newRsv("lot-1", "alice", at(1000), at(1200)), 1)
	require.NoError(t, err)

	_, err = repo.AdmitReservation(ctx, newRsv("lot-1", "bob", at(1100), at(1300)), 1)
	require.ErrorIs(t, err, errs.ErrOverCapacity)

	_, err = repo.TransitionStatus(ctx, a.ID, []model.Status{model.StatusBooked}, model.StatusCancelled, at(1030))
	require.NoError(t, err)

	// the identical request is now admitted
	_, err = repo.AdmitReservation(ctx, newRsv("lot-1", "bob", at(1100), at(1300)), 1)
	require.NoError(t, err)
}

func TestMemoryConcurrentAdmissionExactness(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMemoryRepository()

	const (
		capacity = 5
		racers   = 20
	)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AdmitReservation(ctx, newRsv("lot-1", "racer", at(1000), at(1200)), capacity)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, errs.ErrOverCapacity):
				rejected++
			default:
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, capacity, admitted)
	require.Equal(t, racers-capacity, rejected)

	n, err := repo.CountOverlapping(ctx, "lot-1", model.ClassFourSeater, at(1000), at(1200), 0)
	require.NoError(t, err)
	require.Equal(t, capacity, n)
}

func TestMemoryTransitionGuards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMemoryRepository()

	rsv, err := repo.AdmitReservation(ctx, newRsv("lot-1", "alice", at(1000), at(1200)), 1)
	require.NoError(t, err)

	_, err = repo.TransitionStatus(ctx, rsv.ID, []model.Status{model.StatusCheckedIn}, model.StatusCompleted, at(1100))
	var conflict *StatusConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, model.StatusBooked, conflict.Current)

	checked, err := repo.TransitionStatus(ctx, rsv.ID, []model.Status{model.StatusBooked}, model.StatusCheckedIn, at(1005))
	require.NoError(t, err)
	require.Equal(t, model.StatusCheckedIn, checked.Status)
	require.NotNil(t, checked.ActualStart)
	require.Equal(t, at(1005), *checked.ActualStart)

	_, err = repo.TransitionStatus(ctx, rsv.ID, []model.Status{model.StatusBooked}, model.StatusCancelled, at(1010))
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, model.StatusCheckedIn, conflict.Current)

	_, err = repo.TransitionStatus(ctx, 999, []model.Status{model.StatusBooked}, model.StatusCancelled, at(1010))
	require.ErrorIs(t, err, errs.ErrReservationNotFound)
}

func TestMemoryExpireOverdue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMemoryRepository()

	overdue, err := repo.AdmitReservation(ctx, newRsv("lot-1", "alice", at(800), at(959)), 4)
	require.NoError(t, err)
	_, err = repo.AdmitReservation(ctx, newRsv("lot-1", "bob", at(900), at(1100)), 4)
	require.NoError(t, err)
	done, err := repo.AdmitReservation(ctx, newRsv("lot-1", "carol", at(700), at(900)), 4)
	require.NoError(t, err)
	occupied, err := repo.AdmitReservation(ctx, newRsv("lot-1", "dave", at(830), at(930)), 4)
	require.NoError(t, err)

	// completed before the sweep: must be left untouched
	_, err = repo.TransitionStatus(ctx, done.ID, []model.Status{model.StatusBooked}, model.StatusCheckedIn, at(700))
	require.NoError(t, err)
	_, err = repo.TransitionStatus(ctx, done.ID, []model.Status{model.StatusCheckedIn}, model.StatusCompleted, at(855))
	require.NoError(t, err)

	// checked in and never left: expired all the same once the window
	// elapses
	_, err = repo.TransitionStatus(ctx, occupied.ID, []model.Status{model.StatusBooked}, model.StatusCheckedIn, at(835))
	require.NoError(t, err)

	n, err := repo.ExpireOverdue(ctx, at(1000))
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	got, err := repo.GetByBookingCode(ctx, overdue.BookingCode)
	require.NoError(t, err)
	require.Equal(t, model.StatusExpired, got.Status)

	got, err = repo.GetByBookingCode(ctx, occupied.BookingCode)
	require.NoError(t, err)
	require.Equal(t, model.StatusExpired, got.Status)

	// idempotent: a second pass finds nothing
	n, err = repo.ExpireOverdue(ctx, at(1000))
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestMemoryReminderMarkerOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMemoryRepository()

	created, err := repo.CreateReminderMarker(ctx, 1, 30)
	require.NoError(t, err)
	require.True(t, created)

	created, err = repo.CreateReminderMarker(ctx, 1, 30)
	require.NoError(t, err)
	require.False(t, created)

	// a different lead window is a distinct marker
	created, err = repo.CreateReminderMarker(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, created)
}
