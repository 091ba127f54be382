package handler

import (
	"context"

	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/model"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/service"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/pkg/auth"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type BookingService interface {
	CreateReservation(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error)
	ExtendReservation(ctx context.Context, requesterID, bookingCode string, extraHours int) (model.Reservation, error)
	Cancel(ctx context.Context, requesterID, bookingCode string) (model.Reservation, error)
	CheckIn(ctx context.Context, actor auth.Identity, bookingCode string) (model.Reservation, error)
	CheckOut(ctx context.Context, actor auth.Identity, bookingCode string) (model.Reservation, error)
	ListActive(ctx context.Context, requesterID string) ([]model.Reservation, error)
	ListHistory(ctx context.Context, requesterID string) ([]model.Reservation, error)
	Ticket(ctx context.Context, requesterID, bookingCode string) (model.TicketPayload, error)
}

var _ BookingService = (*service.Service)(nil)
