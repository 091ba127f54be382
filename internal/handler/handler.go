package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/errs"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/model"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/pkg/auth"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/pkg/validate"
)

type Handler struct {
	bookingSvc BookingService
	log        *zap.Logger
}

func New(bookingSvc BookingService, log *zap.Logger) *Handler {
	return &Handler{
		bookingSvc: bookingSvc,
		log:        log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", newRateLimiterMW(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(requestLoggerConfig()),
		middleware.RequestID(),
		newRateLimiterMW(apiRPS),
		authContextMW,
	)

	api.POST("/reservations", h.CreateReservation)
	api.GET("/reservations", h.ListActive)
	api.GET("/reservations/history", h.ListHistory)
	api.GET("/reservations/:bookingCode/ticket", h.Ticket)
	api.POST("/reservations/:bookingCode/cancel", h.Cancel)
	api.POST("/reservations/:bookingCode/extend", h.Extend)

	gate := api.Group("", requireRole(auth.RoleOperator, auth.RoleAdmin))
	gate.POST("/reservations/:bookingCode/checkin", h.CheckIn)
	gate.POST("/reservations/:bookingCode/checkout", h.CheckOut)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError maps engine rejections onto HTTP statuses. Unknown errors
// become 500s.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, errs.ErrInvalidInterval),
		errors.Is(err, errs.ErrNoCapacityConfigured):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrResourceNotFound),
		errors.Is(err, errs.ErrReservationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrResourceNotApproved),
		errors.Is(err, errs.ErrOverCapacity),
		errors.Is(err, errs.ErrCannotExtend),
		errors.Is(err, errs.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrAlreadyExpired):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) CreateReservation(c echo.Context) error {
	var req model.CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := auth.FromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	req.RequesterID = id.Username

	if err := c.Validate(req); err != nil {
		return err
	}
	if !req.VehicleClass.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown vehicle class")
	}

	rsv, err := h.bookingSvc.CreateReservation(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rsv)
}

func (h *Handler) ListActive(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	items, err := h.bookingSvc.ListActive(ctx, id.Username)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListHistory(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	items, err := h.bookingSvc.ListHistory(ctx, id.Username)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Ticket(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	bookingCode := c.Param("bookingCode")
	if bookingCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookingCode is empty")
	}
	ticket, err := h.bookingSvc.Ticket(ctx, id.Username, bookingCode)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ticket)
}

func (h *Handler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	bookingCode := c.Param("bookingCode")
	if bookingCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookingCode is empty")
	}
	rsv, err := h.bookingSvc.Cancel(ctx, id.Username, bookingCode)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rsv)
}

func (h *Handler) Extend(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	bookingCode := c.Param("bookingCode")
	if bookingCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookingCode is empty")
	}
	var req model.ExtendReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	rsv, err := h.bookingSvc.ExtendReservation(ctx, id.Username, bookingCode, req.ExtraHours)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rsv)
}

func (h *Handler) CheckIn(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	bookingCode := c.Param("bookingCode")
	if bookingCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookingCode is empty")
	}
	rsv, err := h.bookingSvc.CheckIn(ctx, id, bookingCode)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rsv)
}

func (h *Handler) CheckOut(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	bookingCode := c.Param("bookingCode")
	if bookingCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookingCode is empty")
	}
	rsv, err := h.bookingSvc.CheckOut(ctx, id, bookingCode)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rsv)
}
