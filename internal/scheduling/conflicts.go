// Package scheduling проверяет пересечения броней оборудования.
// Даты календарные, оба конца отрезка включительно.
package scheduling

import (
	"time"

	"github.com/aarondl/null/v8"

	"business-api/internal/entities"
	apperrors "business-api/pkg/errors"
)

type Query struct {
	EquipmentID int64
	StartDate   time.Time
	EndDate     time.Time
	// ExcludeRequestID - брони этой заявки не считаются конфликтом (перепроверка при редактировании).
	ExcludeRequestID null.Int64
}

type Decision struct {
	Allowed   bool               `json:"allowed"`
	Conflicts []entities.Booking `json:"conflicts"`
}

// Day - календарная дата t в её собственной зоне как полночь UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (q Query) normalized() Query {
	q.StartDate = Day(q.StartDate)
	q.EndDate = Day(q.EndDate)
	return q
}

// Check - предусловия запроса. Нарушение - ошибка ввода, а не конфликт.
func (q Query) Check() error {
	if q.EquipmentID <= 0 {
		return apperrors.NewValidationError("equipment_id", "идентификатор оборудования должен быть положительным")
	}
	if q.StartDate.IsZero() || q.EndDate.IsZero() {
		return apperrors.NewValidationError("start_date", "даты начала и окончания обязательны")
	}
	if Day(q.StartDate).After(Day(q.EndDate)) {
		return apperrors.NewValidationError("start_date", "дата начала %s позже даты окончания %s",
			Day(q.StartDate).Format(time.DateOnly), Day(q.EndDate).Format(time.DateOnly))
	}
	return nil
}

// Overlaps: [aStart, aEnd] и [bStart, bEnd] пересекаются, если aStart <= bEnd и bStart <= aEnd.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !Day(aStart).After(Day(bEnd)) && !Day(bStart).After(Day(aEnd))
}

// FindConflicts возвращает все брони оборудования, пересекающиеся с запросом.
func FindConflicts(bookings []entities.Booking, q Query) []entities.Booking {
	q = q.normalized()
	conflicts := make([]entities.Booking, 0)
	for _, b := range bookings {
		if b.EquipmentID != q.EquipmentID {
			continue
		}
		if q.ExcludeRequestID.Valid && b.RequestID == q.ExcludeRequestID.Int64 {
			continue
		}
		if Overlaps(q.StartDate, q.EndDate, b.StartDate, b.EndDate) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts
}

// Evaluate - Check и FindConflicts вместе. Неверный отрезок до сканирования не доходит.
func Evaluate(bookings []entities.Booking, q Query) (*Decision, error) {
	if err := q.Check(); err != nil {
		return nil, err
	}
	conflicts := FindConflicts(bookings, q)
	return &Decision{Allowed: len(conflicts) == 0, Conflicts: conflicts}, nil
}
