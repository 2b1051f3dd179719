package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/entity"
)

// ExtractionResultRepository reads stored extraction results. Results are written by
// ExtractJobRepository.Complete together with the job status.
type ExtractionResultRepository interface {
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.ExtractionResult, error)
	// GetLatestBySubjectID returns the newest result for the subject, or nil when there is none.
	GetLatestBySubjectID(ctx context.Context, subjectID string) (*entity.ExtractionResult, error)
}

var resultColumns = []string{
	"job_id", "subject_id", "text", "method", "confidence", "language",
	"processing_duration_ms", "metadata", "created_at",
}

type extractionResultRepo struct {
	drv *entsql.Driver
	log *slog.Logger
}

func NewExtractionResultRepository(db *DB, log *slog.Logger) ExtractionResultRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractionResultRepo{drv: db.drv, log: log}
}

func (r *extractionResultRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.ExtractionResult, error) {
	res, err := r.queryOne(ctx, entsql.EQ("job_id", jobID.String()))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: extraction result for job %s", common.ErrNotFound, jobID)
	}
	return res, nil
}

func (r *extractionResultRepo) GetLatestBySubjectID(ctx context.Context, subjectID string) (*entity.ExtractionResult, error) {
	return r.queryOne(ctx, entsql.EQ("subject_id", subjectID))
}

func (r *extractionResultRepo) queryOne(ctx context.Context, where *entsql.Predicate) (*entity.ExtractionResult, error) {
	b := entsql.Dialect(r.drv.Dialect())
	query, args := b.Select(resultColumns...).
		From(b.Table(resultsTable)).
		Where(where).
		OrderBy(entsql.Desc("created_at")).
		Limit(1).
		Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: query result: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: query result: %v", common.ErrDatabase, err)
		}
		return nil, nil
	}
	var (
		res      entity.ExtractionResult
		language string
		metadata []byte
		created  dbTime
	)
	if err := rows.Scan(&res.JobID, &res.SubjectID, &res.Text, &res.Method, &res.Confidence, &language,
		&res.ProcessingDurationMs, &metadata, &created); err != nil {
		return nil, fmt.Errorf("%w: scan result: %v", common.ErrDatabase, err)
	}
	res.Language = constants.Language(language)
	res.CreatedAt = created.Time.UTC()
	res.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &res.Metadata); err != nil {
			r.log.Warn("stored metadata is not valid json", "job_id", res.JobID, "error", err)
		}
	}
	return &res, nil
}

// marshalMetadata encodes metadata as a JSON object; nil becomes {}.
func marshalMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("%w: metadata: %v", common.ErrValidation, err)
	}
	return string(b), nil
}
