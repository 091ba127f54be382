package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/errs"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/model"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/repository"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/pkg/auth"
)

// ResourceCatalog is the external collaborator owning parking resources,
// their approval state, rates and capacity configuration.
type ResourceCatalog interface {
	GetResource(ctx context.Context, resourceID string) (model.Resource, error)
}

type Service struct {
	log     *zap.Logger
	repo    repository.Repository
	catalog ResourceCatalog
	now     func() time.Time
}

type Option func(*Service)

// WithClock overrides the wall clock, letting tests drive virtual time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo repository.Repository, catalog ResourceCatalog, log *zap.Logger, ops ...Option) *Service {
	s := &Service{
		log:     log,
		repo:    repo,
		catalog: catalog,
		now:     time.Now,
	}
	for _, op := range ops {
		op(s)
	}
	return s
}

// CreateReservation admits a new booking against the per-class capacity
// of the resource. The overlap-count-then-insert runs atomically in the
// repository, serialized per (resource, class).
func (s *Service) CreateReservation(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error) {
	if !req.StartTime.Before(req.EndTime) {
		return model.Reservation{}, errs.ErrInvalidInterval
	}

	res, err := s.catalog.GetResource(ctx, req.ResourceID)
	if err != nil {
		return model.Reservation{}, err
	}
	if !res.Approved {
		return model.Reservation{}, errs.ErrResourceNotApproved
	}
	capacity, err := resolveCapacity(res, req.VehicleClass)
	if err != nil {
		return model.Reservation{}, err
	}

	hours := model.BillableHours(req.StartTime, req.EndTime)
	rsv := model.Reservation{
		BookingCode:  model.NewBookingCode(),
		ResourceID:   req.ResourceID,
		RequesterID:  req.RequesterID,
		VehicleClass: req.VehicleClass,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		TotalHours:   hours,
		TotalAmount:  float64(hours) * res.HourlyRate,
		Status:       model.StatusBooked,
	}
	created, err := s.repo.AdmitReservation(ctx, rsv, capacity)
	if err != nil {
		return model.Reservation{}, err
	}
	s.log.Info("reservation admitted",
		zap.String("booking_code", created.BookingCode),
		zap.String("resource_id", created.ResourceID),
		zap.String("vehicle_class", string(created.VehicleClass)))
	return created, nil
}

// ExtendReservation pushes the end time out by extraHours after
// re-validating capacity over the whole [start, newEnd) window,
// excluding the reservation itself. The price is recomputed from the
// new hour total, not added incrementally.
func (s *Service) ExtendReservation(ctx context.Context, requesterID, bookingCode string, extraHours int) (model.Reservation, error) {
	if extraHours <= 0 {
		return model.Reservation{}, errs.ErrInvalidInterval
	}
	rsv, err := s.repo.GetByBookingCode(ctx, bookingCode)
	if err != nil {
		return model.Reservation{}, err
	}
	if rsv.RequesterID != requesterID {
		return model.Reservation{}, errs.ErrReservationNotFound
	}

	now := s.now()
	if now.After(rsv.EndTime) {
		// Self-heal ahead of the sweep: the window has elapsed, so
		// expire the reservation before rejecting the extension.
		if _, err := s.repo.TransitionStatus(ctx, rsv.ID,
			[]model.Status{model.StatusBooked, model.StatusCheckedIn},
			model.StatusExpired, now); err != nil {
			var conflict *repository.StatusConflictError
			if !errors.As(err, &conflict) {
				return model.Reservation{}, err
			}
			if conflict.Current != model.StatusExpired {
				return model.Reservation{}, errs.Transition("cannot extend a " + string(conflict.Current) + " reservation")
			}
		}
		return model.Reservation{}, errs.ErrAlreadyExpired
	}

	res, err := s.catalog.GetResource(ctx, rsv.ResourceID)
	if err != nil {
		return model.Reservation{}, err
	}
	capacity, err := resolveCapacity(res, rsv.VehicleClass)
	if err != nil {
		return model.Reservation{}, err
	}

	newEnd := rsv.EndTime.Add(time.Duration(extraHours) * time.Hour)
	totalHours := rsv.TotalHours + extraHours
	totalAmount := float64(totalHours) * res.HourlyRate

	updated, err := s.repo.ExtendReservation(ctx, rsv.ID, newEnd, totalHours, totalAmount, capacity)
	if err != nil {
		var conflict *repository.StatusConflictError
		if errors.As(err, &conflict) {
			if conflict.Current == model.StatusExpired {
				return model.Reservation{}, errs.ErrAlreadyExpired
			}
			return model.Reservation{}, errs.Transition("cannot extend a " + string(conflict.Current) + " reservation")
		}
		return model.Reservation{}, err
	}
	return updated, nil
}

// Cancel is allowed only while the reservation is still BOOKED.
func (s *Service) Cancel(ctx context.Context, requesterID, bookingCode string) (model.Reservation, error) {
	rsv, err := s.repo.GetByBookingCode(ctx, bookingCode)
	if err != nil {
		return model.Reservation{}, err
	}
	if rsv.RequesterID != requesterID {
		return model.Reservation{}, errs.ErrReservationNotFound
	}
	updated, err := s.repo.TransitionStatus(ctx, rsv.ID,
		[]model.Status{model.StatusBooked}, model.StatusCancelled, s.now())
	if err != nil {
		var conflict *repository.StatusConflictError
		if errors.As(err, &conflict) {
			if conflict.Current == model.StatusCheckedIn {
				return model.Reservation{}, errs.Transition("cannot cancel this booking: already checked in")
			}
			return model.Reservation{}, errs.Transition("cannot cancel a " + string(conflict.Current) + " booking")
		}
		return model.Reservation{}, err
	}
	return updated, nil
}

// CheckIn records vehicle arrival. The role gate upstream admits only
// operators and admins; the resource-operator match here is the second
// half of the double check.
func (s *Service) CheckIn(ctx context.Context, actor auth.Identity, bookingCode string) (model.Reservation, error) {
	rsv, err := s.repo.GetByBookingCode(ctx, bookingCode)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := s.authorizeOperator(ctx, actor, rsv.ResourceID); err != nil {
		return model.Reservation{}, err
	}
	updated, err := s.repo.TransitionStatus(ctx, rsv.ID,
		[]model.Status{model.StatusBooked}, model.StatusCheckedIn, s.now())
	if err != nil {
		var conflict *repository.StatusConflictError
		if errors.As(err, &conflict) {
			if conflict.Current == model.StatusCheckedIn {
				return model.Reservation{}, errs.Transition("already checked in")
			}
			return model.Reservation{}, errs.Transition("cannot check in a " + string(conflict.Current) + " reservation")
		}
		return model.Reservation{}, err
	}
	return updated, nil
}

// CheckOut completes a checked-in reservation.
func (s *Service) CheckOut(ctx context.Context, actor auth.Identity, bookingCode string) (model.Reservation, error) {
	rsv, err := s.repo.GetByBookingCode(ctx, bookingCode)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := s.authorizeOperator(ctx, actor, rsv.ResourceID); err != nil {
		return model.Reservation{}, err
	}
	updated, err := s.repo.TransitionStatus(ctx, rsv.ID,
		[]model.Status{model.StatusCheckedIn}, model.StatusCompleted, s.now())
	if err != nil {
		var conflict *repository.StatusConflictError
		if errors.As(err, &conflict) {
			if conflict.Current == model.StatusBooked {
				return model.Reservation{}, errs.Transition("must be checked-in first")
			}
			return model.Reservation{}, errs.Transition("cannot check out a " + string(conflict.Current) + " reservation")
		}
		return model.Reservation{}, err
	}
	return updated, nil
}

func (s *Service) authorizeOperator(ctx context.Context, actor auth.Identity, resourceID string) error {
	if actor.Role == auth.RoleAdmin {
		return nil
	}
	res, err := s.catalog.GetResource(ctx, resourceID)
	if err != nil {
		return err
	}
	if res.OperatorID != actor.Username {
		return errs.ErrUnauthorized
	}
	return nil
}

func (s *Service) ListActive(ctx context.Context, requesterID string) ([]model.Reservation, error) {
	return s.repo.ListByRequester(ctx, requesterID, true)
}

func (s *Service) ListHistory(ctx context.Context, requesterID string) ([]model.Reservation, error) {
	return s.repo.ListByRequester(ctx, requesterID, false)
}

// Ticket derives the scan payload for the requester's own reservation.
func (s *Service) Ticket(ctx context.Context, requesterID, bookingCode string) (model.TicketPayload, error) {
	rsv, err := s.repo.GetByBookingCode(ctx, bookingCode)
	if err != nil {
		return model.TicketPayload{}, err
	}
	if rsv.RequesterID != requesterID {
		return model.TicketPayload{}, errs.ErrReservationNotFound
	}
	return rsv.Ticket(), nil
}
