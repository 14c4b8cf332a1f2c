package entities

import "time"

// Booking - бронь оборудования на период, привязанная к заявке.
// Даты календарные, оба конца включительно.
type Booking struct {
	ID          int64     `json:"id"`
	EquipmentID int64     `json:"equipment_id"`
	RequestID   int64     `json:"request_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	CreatedAt   time.Time `json:"created_at"`
}
