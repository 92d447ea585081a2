package analysis

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an analysis.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusRegistered, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// transitions defines the allowed status edges.
var transitions = map[Status][]Status{
	StatusRegistered: {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Analysis maps to the analyses table. Result, reference range, performer and
// completion date are only populated in the terminal completed state.
type Analysis struct {
	ID             uuid.UUID              `db:"id" json:"id"`
	PatientID      uuid.UUID              `db:"patient_id" json:"patient_id"`
	AnalysisTypeID uuid.UUID              `db:"analysis_type_id" json:"analysis_type_id"`
	Status         Status                 `db:"status" json:"status"`
	CollectionDate *time.Time             `db:"collection_date" json:"collection_date,omitempty"`
	CompletionDate *time.Time             `db:"completion_date" json:"completion_date,omitempty"`
	Result         *string                `db:"result" json:"result,omitempty"`
	ResultValues   map[string]interface{} `db:"result_values" json:"result_values,omitempty"`
	ReferenceRange *string                `db:"reference_range" json:"reference_range,omitempty"`
	Notes          *string                `db:"notes" json:"notes,omitempty"`
	CancelReason   *string                `db:"cancel_reason" json:"cancel_reason,omitempty"`
	PerformedBy    *uuid.UUID             `db:"performed_by" json:"performed_by,omitempty"`
	CreatedBy      uuid.UUID              `db:"created_by" json:"created_by"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time              `db:"updated_at" json:"updated_at"`
}
