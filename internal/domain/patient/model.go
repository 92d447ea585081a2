package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table.
type Patient struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	LastName       string     `db:"last_name" json:"last_name"`
	FirstName      string     `db:"first_name" json:"first_name"`
	MiddleName     *string    `db:"middle_name" json:"middle_name,omitempty"`
	BirthDate      time.Time  `db:"birth_date" json:"birth_date"`
	Gender         string     `db:"gender" json:"gender"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	Email          *string    `db:"email" json:"email,omitempty"`
	Address        *string    `db:"address" json:"address,omitempty"`
	MedicalHistory *string    `db:"medical_history" json:"medical_history,omitempty"`
	UserID         *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	CreatedBy      uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Age derives the patient's age in full years at the given moment.
// It is never stored.
func (p *Patient) Age(at time.Time) int {
	years := at.Year() - p.BirthDate.Year()
	// Subtract one if the birthday has not yet passed this year.
	anniversary := time.Date(at.Year(), p.BirthDate.Month(), p.BirthDate.Day(), 0, 0, 0, 0, at.Location())
	if at.Before(anniversary) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// FullName joins the name parts for display and notifications.
func (p *Patient) FullName() string {
	name := p.LastName + " " + p.FirstName
	if p.MiddleName != nil && *p.MiddleName != "" {
		name += " " + *p.MiddleName
	}
	return name
}
