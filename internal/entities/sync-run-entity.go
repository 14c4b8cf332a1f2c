package entities

import (
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
)

// SyncRun - журнал запусков синхронизации в БД компании.
type SyncRun struct {
	ID         uuid.UUID   `json:"id"`
	Resource   string      `json:"resource"`
	Mode       string      `json:"mode"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Created    int         `json:"created"`
	Updated    int         `json:"updated"`
	Rejected   int         `json:"rejected"`
	Error      null.String `json:"error"`
}
