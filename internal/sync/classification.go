package sync

import "fmt"

// Kind - результат сопоставления удалённой записи с локальной.
type Kind int

const (
	KindNew Kind = iota + 1
	KindExisting
)

func (k Kind) String() string {
	switch k {
	case KindNew:
		return "new"
	case KindExisting:
		return "existing"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Classification вычисляется в момент сопоставления, до записи, и дальше не пересчитывается.
// PreviousID заполнен только для KindExisting.
type Classification struct {
	Kind       Kind  `json:"kind"`
	PreviousID int64 `json:"previous_id,omitempty"`
}

func ClassifyNew() Classification { return Classification{Kind: KindNew} }

func ClassifyExisting(previousID int64) Classification {
	return Classification{Kind: KindExisting, PreviousID: previousID}
}

func (c Classification) IsNew() bool { return c.Kind == KindNew }
