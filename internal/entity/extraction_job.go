package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/doc-extractor/constants"
)

// ExtractionJob represents an extraction job for data transfer between layers.
type ExtractionJob struct {
	ID               uuid.UUID           `json:"id"`
	SubjectID        string              `json:"subject_id"`
	Status           constants.JobStatus `json:"status"`
	ProgressPercent  int                 `json:"progress_percent"`
	ProgressMessage  string              `json:"progress_message,omitempty"`
	RequestedMethod  string              `json:"requested_method"`
	ExtractionMethod string              `json:"extraction_method,omitempty"`
	ErrorMessage     *string             `json:"error_message,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	StartedAt        *time.Time          `json:"started_at,omitempty"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
}
