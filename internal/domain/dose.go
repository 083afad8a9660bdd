package domain

import (
	"time"

	"github.com/google/uuid"
)

// Dose records one intake of a medication. MedicationID is a non-owning
// reference and may dangle once the medication is deleted.
type Dose struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Seq          int64     `json:"-" gorm:"autoIncrement;uniqueIndex"`
	MedicationID uuid.UUID `json:"medicationId" gorm:"type:uuid;not null;index"`
	UserID       uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`
	TakenAt      time.Time `json:"takenAt" gorm:"not null;index"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName returns the table name for GORM
func (Dose) TableName() string {
	return "doses"
}

// HistoryEntry is a dose joined to its medication. Medication is nil when
// the medication has been deleted since.
type HistoryEntry struct {
	Dose       *Dose
	Medication *Medication
}
