package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Medication is a user's medication with a daily time-of-day window.
// OwnerID is fixed at creation.
type Medication struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OwnerID      uuid.UUID      `json:"ownerId" gorm:"column:user_id;type:uuid;not null;index"`
	Name         string         `json:"name" gorm:"not null"`
	Dosage       string         `json:"dosage" gorm:"not null"`
	Frequency    string         `json:"frequency"`
	Instructions *string        `json:"instructions,omitempty"`
	StartTime    datatypes.Time `json:"startTime" gorm:"not null"`
	EndTime      datatypes.Time `json:"endTime" gorm:"not null"`
	Color        *string        `json:"color,omitempty" gorm:"type:varchar(64)"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// TableName returns the table name for GORM
func (Medication) TableName() string {
	return "medications"
}

// Validate checks the fields every stored medication must carry
func (m *Medication) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(m.Dosage) == "" {
		return fmt.Errorf("%w: dosage is required", ErrInvalidInput)
	}
	if !validTimeOfDay(m.StartTime) || !validTimeOfDay(m.EndTime) {
		return ErrInvalidTimeOfDay
	}
	return nil
}

// WindowStateAt derives the medication's state at now. Nothing about it
// is persisted.
func (m *Medication) WindowStateAt(now time.Time) WindowState {
	if IsWithinWindow(m.StartTime, m.EndTime, now) {
		return WithinWindow
	}
	return OutsideWindow
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS". Seconds are accepted but
// dropped, the window works on whole minutes.
func ParseTimeOfDay(s string) (datatypes.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return datatypes.NewTime(t.Hour(), t.Minute(), 0, 0), nil
		}
	}
	return 0, ErrInvalidTimeOfDay
}

// FormatTimeOfDay renders a time of day as "HH:MM"
func FormatTimeOfDay(t datatypes.Time) string {
	m := MinutesOfDay(t)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// MinutesOfDay returns the number of whole minutes since midnight
func MinutesOfDay(t datatypes.Time) int {
	return int(time.Duration(t) / time.Minute)
}

func validTimeOfDay(t datatypes.Time) bool {
	return t >= 0 && time.Duration(t) < 24*time.Hour
}
