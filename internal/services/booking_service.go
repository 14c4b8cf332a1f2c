package services

import (
	"context"
	"time"

	"github.com/aarondl/null/v8"
	"go.uber.org/zap"

	"business-api/internal/dto"
	"business-api/internal/entities"
	"business-api/internal/scheduling"
	"business-api/internal/tenancy"
	apperrors "business-api/pkg/errors"
)

type BookingServiceInterface interface {
	Validate(ctx context.Context, tc *tenancy.TenantContext, req dto.BookingCheckDTO) (*scheduling.Decision, error)
	Reserve(ctx context.Context, tc *tenancy.TenantContext, req dto.BookingReserveDTO) (*entities.Booking, error)
}

type BookingService struct {
	checker *scheduling.Checker
	logger  *zap.Logger
}

func NewBookingService(checker *scheduling.Checker, logger *zap.Logger) BookingServiceInterface {
	return &BookingService{checker: checker, logger: logger}
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError(field, "ожидается дата в формате ГГГГ-ММ-ДД")
	}
	return t, nil
}

func bookingQuery(equipmentID int64, start, end string) (scheduling.Query, error) {
	startDate, err := parseDate("start_date", start)
	if err != nil {
		return scheduling.Query{}, err
	}
	endDate, err := parseDate("end_date", end)
	if err != nil {
		return scheduling.Query{}, err
	}
	return scheduling.Query{EquipmentID: equipmentID, StartDate: startDate, EndDate: endDate}, nil
}

func (s *BookingService) Validate(ctx context.Context, tc *tenancy.TenantContext, req dto.BookingCheckDTO) (*scheduling.Decision, error) {
	q, err := bookingQuery(req.EquipmentID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	q.ExcludeRequestID = null.Int64FromPtr(req.ExcludeRequestID)
	return s.checker.Validate(ctx, tc.DB.Conn(), q)
}

func (s *BookingService) Reserve(ctx context.Context, tc *tenancy.TenantContext, req dto.BookingReserveDTO) (*entities.Booking, error) {
	q, err := bookingQuery(req.EquipmentID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	return s.checker.Reserve(ctx, tc.DB.Conn(), req.RequestID, q)
}
