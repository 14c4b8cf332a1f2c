package dto

// BookingCheckDTO - проверка периода бронирования оборудования.
type BookingCheckDTO struct {
	EquipmentID      int64  `json:"equipment_id" validate:"required,gt=0"`
	StartDate        string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate          string `json:"end_date" validate:"required,datetime=2006-01-02"`
	ExcludeRequestID *int64 `json:"exclude_request_id" validate:"omitempty,gt=0"`
}

// BookingReserveDTO - бронирование периода за заявкой.
type BookingReserveDTO struct {
	EquipmentID int64  `json:"equipment_id" validate:"required,gt=0"`
	RequestID   int64  `json:"request_id" validate:"required,gt=0"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
}
