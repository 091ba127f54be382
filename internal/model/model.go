package model

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusBooked    Status = "BOOKED"
	StatusCheckedIn Status = "CHECKED_IN"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

type VehicleClass string

const (
	ClassTwoWheeler VehicleClass = "TWO_WHEELER"
	ClassFourSeater VehicleClass = "FOUR_SEATER"
	ClassSUV        VehicleClass = "SUV"
)

func (v VehicleClass) Valid() bool {
	switch v {
	case ClassTwoWheeler, ClassFourSeater, ClassSUV:
		return true
	}
	return false
}

type Reservation struct {
	ID           int64        `json:"-" db:"id"`
	BookingCode  string       `json:"bookingCode" db:"booking_code"`
	ResourceID   string       `json:"resourceId" db:"resource_id"`
	RequesterID  string       `json:"requesterId" db:"requester_id"`
	VehicleClass VehicleClass `json:"vehicleClass" db:"vehicle_class"`
	StartTime    time.Time    `json:"startTime" db:"start_time"`
	EndTime      time.Time    `json:"endTime" db:"end_time"`
	TotalHours   int          `json:"totalHours" db:"total_hours"`
	TotalAmount  float64      `json:"totalAmount" db:"total_amount"`
	Status       Status       `json:"status" db:"status"`
	ActualStart  *time.Time   `json:"actualStart,omitempty" db:"actual_start"`
	ActualEnd    *time.Time   `json:"actualEnd,omitempty" db:"actual_end"`
	CreatedAt    time.Time    `json:"-" db:"created_at"`
}

// Overlaps applies the half-open interval test: [a1,a2) and [b1,b2)
// intersect iff a1 < b2 && a2 > b1. Boundary-touching intervals do not
// overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// BillableHours is the ceiling of the interval length in whole hours.
func BillableHours(start, end time.Time) int {
	return int(math.Ceil(end.Sub(start).Hours()))
}

const bookingCodePrefix = "PRK"

// NewBookingCode derives a shareable code from a random UUID:
// PRK-<8 uppercase alphanumerics>. Collisions are not checked.
func NewBookingCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return bookingCodePrefix + "-" + raw[:8]
}

type CreateReservationRequest struct {
	ResourceID   string       `json:"resourceId" validate:"required"`
	VehicleClass VehicleClass `json:"vehicleClass" validate:"required"`
	StartTime    time.Time    `json:"startTime" validate:"required"`
	EndTime      time.Time    `json:"endTime" validate:"required"`
	RequesterID  string       `validate:"required"`
}

type ExtendReservationRequest struct {
	ExtraHours int `json:"extraHours" validate:"required,gt=0"`
}

// TicketPayload is the object consumed by the scan surface at the gate.
// It is derived from the reservation on demand and never stored.
type TicketPayload struct {
	BookingCode string    `json:"bookingCode"`
	ResourceID  string    `json:"resourceId"`
	RequesterID string    `json:"requesterId"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

func (r Reservation) Ticket() TicketPayload {
	return TicketPayload{
		BookingCode: r.BookingCode,
		ResourceID:  r.ResourceID,
		RequesterID: r.RequesterID,
		Start:       r.StartTime,
		End:         r.EndTime,
	}
}

// Resource is the Resource Catalog collaborator's view of a parking
// location. Capacity is resolved specific-class-first with TotalSlots
// as the aggregate fallback.
type Resource struct {
	ResourceID   string               `json:"resourceId"`
	Name         string               `json:"name"`
	Approved     bool                 `json:"approved"`
	OperatorID   string               `json:"operatorId"`
	HourlyRate   float64              `json:"hourlyRate"`
	SlotsByClass map[VehicleClass]int `json:"slotsByClass"`
	TotalSlots   *int                 `json:"totalSlots,omitempty"`
}

type ReminderEvent struct {
	UserID        string `json:"userId"`
	ReservationID int64  `json:"reservationId"`
	LeadMinutes   int    `json:"leadMinutes"`
	Message       string `json:"message"`
}
