package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/errs"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/model"
)

type markerKey struct {
	reservationID int64
	leadMinutes   int
}

// MemoryRepository keeps every reservation behind a single mutex, which
// trivially satisfies the atomicity the Repository contract demands.
// Used by tests and as a standalone mode for local development.
type MemoryRepository struct {
	mu      sync.Mutex
	nextID  int64
	items   map[int64]model.Reservation
	markers map[markerKey]struct{}
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID:  1,
		items:   make(map[int64]model.Reservation),
		markers: make(map[markerKey]struct{}),
	}
}

func (m *MemoryRepository) countOverlappingLocked(resourceID string, class model.VehicleClass, start, end time.Time, excludeID int64) int {
	count := 0
	for _, rsv := range m.items {
		if rsv.ID == excludeID || rsv.ResourceID != resourceID || rsv.VehicleClass != class {
			continue
		}
		if rsv.Status != model.StatusBooked && rsv.Status != model.StatusCheckedIn {
			continue
		}
		if model.Overlaps(rsv.StartTime, rsv.EndTime, start, end) {
			count++
		}
	}
	return count
}

func (m *MemoryRepository) AdmitReservation(_ context.Context, rsv model.Reservation, capacity int) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.countOverlappingLocked(rsv.ResourceID, rsv.VehicleClass, rsv.StartTime, rsv.EndTime, 0) >= capacity {
		return model.Reservation{}, errs.ErrOverCapacity
	}
	rsv.ID = m.nextID
	m.nextID++
	rsv.Status = model.StatusBooked
	rsv.CreatedAt = time.Now().UTC()
	m.items[rsv.ID] = rsv
	return rsv, nil
}

func (m *MemoryRepository) ExtendReservation(_ context.Context, id int64, newEnd time.Time, totalHours int, totalAmount float64, capacity int) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rsv, ok := m.items[id]
	if !ok {
		return model.Reservation{}, errs.ErrReservationNotFound
	}
	if rsv.Status != model.StatusBooked && rsv.Status != model.StatusCheckedIn {
		return model.Reservation{}, &StatusConflictError{Current: rsv.Status}
	}
	if m.countOverlappingLocked(rsv.ResourceID, rsv.VehicleClass, rsv.StartTime, newEnd, id) >= capacity {
		return model.Reservation{}, errs.ErrCannotExtend
	}
	rsv.EndTime = newEnd
	rsv.TotalHours = totalHours
	rsv.TotalAmount = totalAmount
	m.items[id] = rsv
	return rsv, nil
}

func (m *MemoryRepository) TransitionStatus(_ context.Context, id int64, from []model.Status, to model.Status, at time.Time) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rsv, ok := m.items[id]
	if !ok {
		return model.Reservation{}, errs.ErrReservationNotFound
	}
	allowed := false
	for _, s := range from {
		if rsv.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return model.Reservation{}, &StatusConflictError{Current: rsv.Status}
	}
	rsv.Status = to
	switch to {
	case model.StatusCheckedIn:
		t := at
		rsv.ActualStart = &t
	case model.StatusCompleted:
		t := at
		rsv.ActualEnd = &t
	}
	m.items[id] = rsv
	return rsv, nil
}

func (m *MemoryRepository) GetByBookingCode(_ context.Context, bookingCode string) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rsv := range m.items {
		if rsv.BookingCode == bookingCode {
			return rsv, nil
		}
	}
	return model.Reservation{}, errs.ErrReservationNotFound
}

func (m *MemoryRepository) CountOverlapping(_ context.Context, resourceID string, class model.VehicleClass, start, end time.Time, excludeID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countOverlappingLocked(resourceID, class, start, end, excludeID), nil
}

func (m *MemoryRepository) ListByRequester(_ context.Context, requesterID string, activeOnly bool) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []model.Reservation
	for _, rsv := range m.items {
		if rsv.RequesterID != requesterID {
			continue
		}
		active := rsv.Status == model.StatusBooked || rsv.Status == model.StatusCheckedIn
		if active == activeOnly {
			items = append(items, rsv)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartTime.Before(items[j].StartTime) })
	return items, nil
}

func (m *MemoryRepository) EndingWithin(_ context.Context, from, to time.Time) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []model.Reservation
	for _, rsv := range m.items {
		if rsv.Status != model.StatusBooked && rsv.Status != model.StatusCheckedIn {
			continue
		}
		if !rsv.EndTime.Before(from) && rsv.EndTime.Before(to) {
			items = append(items, rsv)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *MemoryRepository) CreateReminderMarker(_ context.Context, reservationID int64, leadMinutes int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := markerKey{reservationID: reservationID, leadMinutes: leadMinutes}
	if _, exists := m.markers[key]; exists {
		return false, nil
	}
	m.markers[key] = struct{}{}
	return true, nil
}

func (m *MemoryRepository) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, rsv := range m.items {
		if rsv.Status != model.StatusBooked && rsv.Status != model.StatusCheckedIn {
			continue
		}
		if rsv.EndTime.Before(now) {
			rsv.Status = model.StatusExpired
			m.items[id] = rsv
			n++
		}
	}
	return n, nil
}
