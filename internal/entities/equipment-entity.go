package entities

import (
	"github.com/aarondl/null/v8"

	"business-api/pkg/types"
)

// Equipment - единица оборудования, зеркалируемая из Business Central.
type Equipment struct {
	ID              int64       `json:"id"`
	ExternalID      null.String `json:"external_id"`
	Number          string      `json:"number"`
	DisplayName     string      `json:"display_name"`
	Category        null.String `json:"category"`
	SerialNumber    null.String `json:"serial_number"`
	Blocked         bool        `json:"blocked"`
	RemoteUpdatedAt null.Time   `json:"remote_updated_at"`

	types.BaseEntity
}

func (e *Equipment) LocalID() int64 { return e.ID }

func (e *Equipment) SetLocalID(id int64) { e.ID = id }
