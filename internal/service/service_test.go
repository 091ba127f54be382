package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/errs"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/model"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/repository"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/pkg/auth"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(hhmm int) time.Time {
	return day.Add(time.Duration(hhmm/100)*time.Hour + time.Duration(hhmm%100)*time.Minute)
}

type stubCatalog struct {
	resources map[string]model.Resource
}

func (s *stubCatalog) GetResource(_ context.Context, resourceID string) (model.Resource, error) {
	res, ok := s.resources[resourceID]
	if !ok {
		return model.Resource{}, errs.ErrResourceNotFound
	}
	return res, nil
}

func intp(n int) *int { return &n }

func newFixture(t *testing.T, clock func() time.Time) (*Service, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	catalog := &stubCatalog{resources: map[string]model.Resource{
		"lot-1": {
			ResourceID: "lot-1",
			Approved:   true,
			OperatorID: "op-1",
			HourlyRate: 50,
			SlotsByClass: map[model.VehicleClass]int{
				model.ClassFourSeater: 2,
				model.ClassSUV:        0,
			},
			TotalSlots: intp(10),
		},
		"lot-aggregate": {
			ResourceID: "lot-aggregate",
			Approved:   true,
			OperatorID: "op-1",
			HourlyRate: 30,
			TotalSlots: intp(1),
		},
		"lot-bare": {
			ResourceID: "lot-bare",
			Approved:   true,
			OperatorID: "op-1",
			HourlyRate: 30,
		},
		"lot-pending": {
			ResourceID: "lot-pending",
			Approved:   false,
			OperatorID: "op-1",
			HourlyRate: 30,
			TotalSlots: intp(5),
		},
	}}
	svc := NewService(repo, catalog, zap.NewNop(), WithClock(clock))
	return svc, repo
}

func createReq(resource string, class model.VehicleClass, start, end time.Time) model.CreateReservationRequest {
	return model.CreateReservationRequest{
		ResourceID:   resource,
		VehicleClass: class,
		StartTime:    start,
		EndTime:      end,
		RequesterID:  "alice",
	}
}

func TestCreateReservation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newFixture(t, func() time.Time { return at(900) })

	tests := []struct {
		name    string
		req     model.CreateReservationRequest
		wantErr error
	}{
		{
			name: "ok",
			req:  createReq("lot-1", model.ClassFourSeater, at(1000), at(1200)),
		},
		{
			name:    "invalid interval",
			req:     createReq("lot-1", model.ClassFourSeater, at(1200), at(1000)),
			wantErr: errs.ErrInvalidInterval,
		},
		{
			name:    "empty interval",
			req:     createReq("lot-1", model.ClassFourSeater, at(1000), at(1000)),
			wantErr: errs.ErrInvalidInterval,
		},
		{
			name:    "resource not found",
			req:     createReq("lot-404", model.ClassFourSeater, at(1000), at(1200)),
			wantErr: errs.ErrResourceNotFound,
		},
		{
			name:    "resource not approved",
			req:     createReq("lot-pending", model.ClassFourSeater, at(1000), at(1200)),
			wantErr: errs.ErrResourceNotApproved,
		},
		{
			name:    "specific class zero rejects without fallback",
			req:     createReq("lot-1", model.ClassSUV, at(1000), at(1200)),
			wantErr: errs.ErrNoCapacityConfigured,
		},
		{
			name: "aggregate fallback used when class missing",
			req:  createReq("lot-1", model.ClassTwoWheeler, at(1000), at(1200)),
		},
		{
			name:    "no capacity configured",
			req:     createReq("lot-bare", model.ClassFourSeater, at(1000), at(1200)),
			wantErr: errs.ErrNoCapacityConfigured,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rsv, err := svc.CreateReservation(ctx, tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, model.StatusBooked, rsv.Status)
			require.Regexp(t, `^PRK-[A-Z0-9]{8}$`, rsv.BookingCode)
		})
	}
}

func TestCreateReservationPricing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newFixture(t, func() time.Time { return at(900) })

	// 2h30m rounds up to 3 billable hours at rate 50
	rsv, err := svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(1000), at(1230)))
	require.NoError(t, err)
	require.Equal(t, 3, rsv.TotalHours)
	require.Equal(t, 150.0, rsv.TotalAmount)
}

func TestCreateReservationOverCapacity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newFixture(t, func() time.Time { return at(900) })

	// aggregate capacity of lot-aggregate is 1
	_, err := svc.CreateReservation(ctx, createReq("lot-aggregate", model.ClassFourSeater, at(1000), at(1200)))
	require.NoError(t, err)
	_, err = svc.CreateReservation(ctx, createReq("lot-aggregate", model.ClassFourSeater, at(1100), at(1300)))
	require.ErrorIs(t, err, errs.ErrOverCapacity)
}

func TestExtendReservationRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newFixture(t, func() time.Time { return at(1030) })

	rsv, err := svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(1000), at(1200)))
	require.NoError(t, err)
	require.Equal(t, 100.0, rsv.TotalAmount)

	extended, err := svc.ExtendReservation(ctx, "alice", rsv.BookingCode, 2)
	require.NoError(t, err)
	require.Equal(t, at(1400), extended.EndTime)
	require.Equal(t, 4, extended.TotalHours)
	require.Equal(t, 200.0, extended.TotalAmount)

	extended, err = svc.ExtendReservation(ctx, "alice", rsv.BookingCode, 3)
	require.NoError(t, err)
	require.Equal(t, at(1700), extended.EndTime)
	require.Equal(t, 7, extended.TotalHours)
	require.Equal(t, 350.0, extended.TotalAmount)
}

func TestExtendReservationConflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newFixture(t, func() time.Time { return at(1030) })

	// fill both four-seater slots for the tail window
	rsv, err := svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(1000), at(1200)))
	require.NoError(t, err)
	_, err = svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(1200), at(1400)))
	require.NoError(t, err)
	_, err = svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(1200), at(1400)))
	require.NoError(t, err)

	// extending into [12:00,13:00) would make 3 overlapping in a 2-slot class
	_, err = svc.ExtendReservation(ctx, "alice", rsv.BookingCode, 1)
	require.ErrorIs(t, err, errs.ErrCannotExtend)

	// the reservation's own interval does not block its extension
	lone, err := svc.CreateReservation(ctx, createReq("lot-aggregate", model.ClassFourSeater, at(1000), at(1200)))
	require.NoError(t, err)
	_, err = svc.ExtendReservation(ctx, "alice", lone.BookingCode, 1)
	require.NoError(t, err)
}

func TestExtendReservationValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newFixture(t, func() time.Time { return at(1030) })

	rsv, err := svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(1000), at(1200)))
	require.NoError(t, err)

	_, err = svc.ExtendReservation(ctx, "alice", rsv.BookingCode, 0)
	require.ErrorIs(t, err, errs.ErrInvalidInterval)

	_, err = svc.ExtendReservation(ctx, "mallory", rsv.BookingCode, 1)
	require.ErrorIs(t, err, errs.ErrReservationNotFound)

	_, err = svc.ExtendReservation(ctx, "alice", "PRK-MISSING1", 1)
	require.ErrorIs(t, err, errs.ErrReservationNotFound)
}

func TestExtendExpiredSelfHeals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(1030)
	svc, repo := newFixture(t, func() time.Time { return now })

	rsv, err := svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(900), at(1000)))
	require.NoError(t, err)

	// the sweep has not run yet; the handler detects the elapsed window,
	// expires the reservation itself and rejects
	_, err = svc.ExtendReservation(ctx, "alice", rsv.BookingCode, 1)
	require.ErrorIs(t, err, errs.ErrAlreadyExpired)

	got, err := repo.GetByBookingCode(ctx, rsv.BookingCode)
	require.NoError(t, err)
	require.Equal(t, model.StatusExpired, got.Status)
}

func TestExtendAfterSweepExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(959)
	svc, repo := newFixture(t, func() time.Time { return now })

	rsv, err := svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(800), at(959)))
	require.NoError(t, err)

	// the sweep expired the row between submission and processing
	_, err = repo.ExpireOverdue(ctx, at(1000))
	require.NoError(t, err)

	_, err = svc.ExtendReservation(ctx, "alice", rsv.BookingCode, 1)
	require.ErrorIs(t, err, errs.ErrAlreadyExpired)
}

func TestExtendCompletedPastEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(1005)
	svc, _ := newFixture(t, func() time.Time { return now })

	operator := auth.Identity{Username: "op-1", Role: auth.RoleOperator}

	rsv, err := svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(1000), at(1200)))
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, operator, rsv.BookingCode)
	require.NoError(t, err)
	_, err = svc.CheckOut(ctx, operator, rsv.BookingCode)
	require.NoError(t, err)

	// the window has elapsed, but the reservation ran to completion;
	// report the real state instead of calling it expired
	now = at(1230)
	_, err = svc.ExtendReservation(ctx, "alice", rsv.BookingCode, 1)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
	require.ErrorContains(t, err, "cannot extend a COMPLETED reservation")
	require.NotErrorIs(t, err, errs.ErrAlreadyExpired)
}

func TestLifecycleTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newFixture(t, func() time.Time { return at(1005) })

	operator := auth.Identity{Username: "op-1", Role: auth.RoleOperator}
	stranger := auth.Identity{Username: "op-2", Role: auth.RoleOperator}
	admin := auth.Identity{Username: "root", Role: auth.RoleAdmin}

	rsv, err := svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(1000), at(1200)))
	require.NoError(t, err)

	// check-out before check-in
	_, err = svc.CheckOut(ctx, operator, rsv.BookingCode)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
	require.ErrorContains(t, err, "must be checked-in first")

	// operator of another resource is rejected by the ownership check
	_, err = svc.CheckIn(ctx, stranger, rsv.BookingCode)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	checked, err := svc.CheckIn(ctx, operator, rsv.BookingCode)
	require.NoError(t, err)
	require.Equal(t, model.StatusCheckedIn, checked.Status)
	require.NotNil(t, checked.ActualStart)

	_, err = svc.CheckIn(ctx, operator, rsv.BookingCode)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
	require.ErrorContains(t, err, "already checked in")

	// cancel after check-in is rejected
	_, err = svc.Cancel(ctx, "alice", rsv.BookingCode)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
	require.ErrorContains(t, err, "cannot cancel")

	// admin may check out without owning the resource
	done, err := svc.CheckOut(ctx, admin, rsv.BookingCode)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.ActualEnd)

	// terminal states are immutable
	_, err = svc.CheckIn(ctx, operator, rsv.BookingCode)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestCancelOnlyWhileBooked(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newFixture(t, func() time.Time { return at(1005) })

	rsv, err := svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(1000), at(1200)))
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, "alice", rsv.BookingCode)
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, cancelled.Status)

	_, err = svc.Cancel(ctx, "alice", rsv.BookingCode)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestTicketPayload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newFixture(t, func() time.Time { return at(900) })

	rsv, err := svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(1000), at(1200)))
	require.NoError(t, err)

	ticket, err := svc.Ticket(ctx, "alice", rsv.BookingCode)
	require.NoError(t, err)
	require.Equal(t, model.TicketPayload{
		BookingCode: rsv.BookingCode,
		ResourceID:  "lot-1",
		RequesterID: "alice",
		Start:       at(1000),
		End:         at(1200),
	}, ticket)

	_, err = svc.Ticket(ctx, "mallory", rsv.BookingCode)
	require.ErrorIs(t, err, errs.ErrReservationNotFound)
}

func TestListActiveAndHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newFixture(t, func() time.Time { return at(900) })

	a, err := svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(1000), at(1200)))
	require.NoError(t, err)
	b, err := svc.CreateReservation(ctx, createReq("lot-1", model.ClassFourSeater, at(1300), at(1500)))
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, "alice", b.BookingCode)
	require.NoError(t, err)

	active, err := svc.ListActive(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, a.BookingCode, active[0].BookingCode)

	history, err := svc.ListHistory(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, b.BookingCode, history[0].BookingCode)
}
