package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/errs"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/model"
)

// Repository is the storage contract of the booking engine. Three of its
// operations must be atomic for correctness: AdmitReservation
// (check-then-insert), TransitionStatus / ExtendReservation
// (status-guarded update), and ExpireOverdue (bulk guarded update).
type Repository interface {
	AdmitReservation(ctx context.Context, rsv model.Reservation, capacity int) (model.Reservation, error)
	ExtendReservation(ctx context.Context, id int64, newEnd time.Time, totalHours int, totalAmount float64, capacity int) (model.Reservation, error)
	TransitionStatus(ctx context.Context, id int64, from []model.Status, to model.Status, at time.Time) (model.Reservation, error)
	GetByBookingCode(ctx context.Context, bookingCode string) (model.Reservation, error)
	CountOverlapping(ctx context.Context, resourceID string, class model.VehicleClass, start, end time.Time, excludeID int64) (int, error)
	ListByRequester(ctx context.Context, requesterID string, activeOnly bool) ([]model.Reservation, error)
	EndingWithin(ctx context.Context, from, to time.Time) ([]model.Reservation, error)
	CreateReminderMarker(ctx context.Context, reservationID int64, leadMinutes int) (bool, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// StatusConflictError reports a guarded transition that found the row in
// a state outside the allowed set. The service layer turns it into a
// descriptive InvalidTransition rejection.
type StatusConflictError struct {
	Current model.Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("status conflict: reservation is %s", e.Current)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const reservationTableName = `reservation`

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var activeStatuses = []model.Status{model.StatusBooked, model.StatusCheckedIn}

var reservationColumns = []string{
	"id", "booking_code", "resource_id", "requester_id", "vehicle_class",
	"start_time", "end_time", "total_hours", "total_amount", "status",
	"actual_start", "actual_end", "created_at",
}

// admissionLock serializes check-then-write admission per (resource,
// class) for the duration of the surrounding transaction.
func admissionLock(ctx context.Context, tx *sqlx.Tx, resourceID string, class model.VehicleClass) error {
	_, err := tx.ExecContext(ctx,
		`select pg_advisory_xact_lock(hashtext($1))`,
		resourceID+"/"+string(class))
	return err
}

func countOverlappingTx(ctx context.Context, q sqlx.QueryerContext, resourceID string, class model.VehicleClass, start, end time.Time, excludeID int64) (int, error) {
	query := `
	select count(*) from reservation
	where resource_id = $1 and vehicle_class = $2
	  and status in ('BOOKED', 'CHECKED_IN')
	  and start_time < $3 and end_time > $4
	  and id <> $5`
	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, resourceID, class, end, start, excludeID); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) CountOverlapping(ctx context.Context, resourceID string, class model.VehicleClass, start, end time.Time, excludeID int64) (int, error) {
	return countOverlappingTx(ctx, r.db, resourceID, class, start, end, excludeID)
}

func (r *repository) AdmitReservation(ctx context.Context, rsv model.Reservation, capacity int) (model.Reservation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Reservation{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := admissionLock(ctx, tx, rsv.ResourceID, rsv.VehicleClass); err != nil {
		return model.Reservation{}, err
	}
	overlap, err := countOverlappingTx(ctx, tx, rsv.ResourceID, rsv.VehicleClass, rsv.StartTime, rsv.EndTime, 0)
	if err != nil {
		return model.Reservation{}, err
	}
	if overlap >= capacity {
		return model.Reservation{}, errs.ErrOverCapacity
	}

	q, args, err := qb.Insert(reservationTableName).
		Columns("booking_code", "resource_id", "requester_id", "vehicle_class",
			"start_time", "end_time", "total_hours", "total_amount", "status").
		Values(rsv.BookingCode, rsv.ResourceID, rsv.RequesterID, rsv.VehicleClass,
			rsv.StartTime, rsv.EndTime, rsv.TotalHours, rsv.TotalAmount, model.StatusBooked).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	var created model.Reservation
	if err := tx.GetContext(ctx, &created, q, args...); err != nil {
		r.log.Error("AdmitReservation insert", zap.String("q", q), zap.Any("args", args))
		return model.Reservation{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Reservation{}, err
	}
	return created, nil
}

func (r *repository) ExtendReservation(ctx context.Context, id int64, newEnd time.Time, totalHours int, totalAmount float64, capacity int) (model.Reservation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Reservation{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	var rsv model.Reservation
	q, args, err := qb.Select(reservationColumns...).
		From(reservationTableName).
		Where(sq.Eq{"id": id}).
		Suffix("for update").
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	if err := tx.GetContext(ctx, &rsv, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, errs.ErrReservationNotFound
		}
		return model.Reservation{}, err
	}
	if rsv.Status != model.StatusBooked && rsv.Status != model.StatusCheckedIn {
		return model.Reservation{}, &StatusConflictError{Current: rsv.Status}
	}

	if err := admissionLock(ctx, tx, rsv.ResourceID, rsv.VehicleClass); err != nil {
		return model.Reservation{}, err
	}
	// The re-check spans the original start, excluding the reservation
	// itself so its own prior window cannot conflict.
	overlap, err := countOverlappingTx(ctx, tx, rsv.ResourceID, rsv.VehicleClass, rsv.StartTime, newEnd, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if overlap >= capacity {
		return model.Reservation{}, errs.ErrCannotExtend
	}

	q, args, err = qb.Update(reservationTableName).
		Set("end_time", newEnd).
		Set("total_hours", totalHours).
		Set("total_amount", totalAmount).
		Where(sq.Eq{"id": id}).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	var updated model.Reservation
	if err := tx.GetContext(ctx, &updated, q, args...); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Reservation{}, err
	}
	return updated, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id int64, from []model.Status, to model.Status, at time.Time) (model.Reservation, error) {
	b := qb.Update(reservationTableName).
		Set("status", to).
		Where(sq.Eq{"id": id, "status": from})
	switch to {
	case model.StatusCheckedIn:
		b = b.Set("actual_start", at)
	case model.StatusCompleted:
		b = b.Set("actual_end", at)
	}
	q, args, err := b.Suffix("returning *").ToSql()
	if err != nil {
		return model.Reservation{}, err
	}

	var updated model.Reservation
	err = r.db.GetContext(ctx, &updated, q, args...)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, err
	}

	// The guard did not match: distinguish a missing row from a row in
	// the wrong state so callers can report a precise rejection.
	var current model.Status
	err = r.db.GetContext(ctx, &current,
		`select status from reservation where id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, errs.ErrReservationNotFound
	}
	if err != nil {
		return model.Reservation{}, err
	}
	return model.Reservation{}, &StatusConflictError{Current: current}
}

func (r *repository) GetByBookingCode(ctx context.Context, bookingCode string) (model.Reservation, error) {
	q, args, err := qb.Select(reservationColumns...).
		From(reservationTableName).
		Where(sq.Eq{"booking_code": bookingCode}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	var rsv model.Reservation
	if err := r.db.GetContext(ctx, &rsv, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, errs.ErrReservationNotFound
		}
		return model.Reservation{}, err
	}
	return rsv, nil
}

func (r *repository) ListByRequester(ctx context.Context, requesterID string, activeOnly bool) ([]model.Reservation, error) {
	b := qb.Select(reservationColumns...).
		From(reservationTableName).
		Where(sq.Eq{"requester_id": requesterID}).
		OrderBy("start_time")
	if activeOnly {
		b = b.Where(sq.Eq{"status": activeStatuses})
	} else {
		b = b.Where(sq.NotEq{"status": activeStatuses})
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.Reservation
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) EndingWithin(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	q := `
	select * from reservation
	where status in ('BOOKED', 'CHECKED_IN')
	  and end_time >= $1 and end_time < $2`
	var items []model.Reservation
	if err := r.db.SelectContext(ctx, &items, q, from, to); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateReminderMarker records that a reminder for (reservation, lead
// window) was emitted. It reports false when the marker already exists;
// the unique constraint keeps this race-free across sweep replicas.
func (r *repository) CreateReminderMarker(ctx context.Context, reservationID int64, leadMinutes int) (bool, error) {
	_, err := r.db.ExecContext(ctx,
		`insert into reminder_marker (reservation_id, lead_minutes) values ($1, $2)`,
		reservationID, leadMinutes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	update reservation set status = 'EXPIRED'
	where status in ('BOOKED', 'CHECKED_IN') and end_time < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
