package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/doc-extractor/constants"
)

// ExtractionResult is the text produced for one job. It is written once, when the job completes.
type ExtractionResult struct {
	JobID                uuid.UUID          `json:"job_id"`
	SubjectID            string             `json:"subject_id"`
	Text                 string             `json:"text"`
	Method               string             `json:"method"`
	Confidence           float64            `json:"confidence"`
	Language             constants.Language `json:"language"`
	ProcessingDurationMs int64              `json:"processing_duration_ms"`
	Metadata             map[string]any     `json:"metadata"`
	CreatedAt            time.Time          `json:"created_at"`
}

// Clone returns a copy whose metadata map can be modified independently.
func (r *ExtractionResult) Clone() *ExtractionResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Metadata = make(map[string]any, len(r.Metadata))
	for k, v := range r.Metadata {
		c.Metadata[k] = v
	}
	return &c
}
