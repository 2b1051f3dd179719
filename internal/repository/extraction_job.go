package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/entity"
)

// ExtractJobRepository persists extraction jobs and their status transitions.
type ExtractJobRepository interface {
	// Create inserts a PENDING job, refusing when the subject already has an active one.
	Create(ctx context.Context, subjectID, requestedMethod string) (*entity.ExtractionJob, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.ExtractionJob, error)
	// MarkProcessing moves a PENDING job to PROCESSING and stamps started_at.
	MarkProcessing(ctx context.Context, id uuid.UUID) (*entity.ExtractionJob, error)
	// UpdateProgress records progress; it never lowers the stored percentage.
	UpdateProgress(ctx context.Context, id uuid.UUID, percent int, message string) error
	// Complete stores the result and marks the job COMPLETED in one transaction.
	Complete(ctx context.Context, id uuid.UUID, result *entity.ExtractionResult) error
	// Fail marks an unfinished job FAILED.
	Fail(ctx context.Context, id uuid.UUID, message string) error
	// FailStale fails every PENDING or PROCESSING job created before cutoff and
	// returns how many it touched.
	FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error)
}

var jobColumns = []string{
	"id", "subject_id", "status", "progress_percent", "progress_message", "requested_method",
	"extraction_method", "error_message", "created_at", "started_at", "completed_at",
}

type extractJobRepo struct {
	drv *entsql.Driver
	log *slog.Logger
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{drv: db.drv, log: log}
}

func (r *extractJobRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func (r *extractJobRepo) Create(ctx context.Context, subjectID, requestedMethod string) (*entity.ExtractionJob, error) {
	job := &entity.ExtractionJob{
		ID:              uuid.New(),
		SubjectID:       subjectID,
		Status:          constants.JobStatusPending,
		RequestedMethod: requestedMethod,
		CreatedAt:       now(),
	}

	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	active, err := r.countActive(ctx, tx, subjectID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if active > 0 {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%w: %s", common.ErrDuplicateJobInProgress, subjectID)
	}

	query, args := r.builder().Insert(jobsTable).
		Columns("id", "subject_id", "status", "progress_percent", "progress_message", "requested_method", "created_at").
		Values(job.ID.String(), job.SubjectID, string(job.Status), 0, "", job.RequestedMethod, job.CreatedAt).
		Query()
	var res entsql.Result
	if err := tx.Exec(ctx, query, args, &res); err != nil {
		_ = tx.Rollback()
		if sqlgraph.IsUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: %s", common.ErrDuplicateJobInProgress, subjectID)
		}
		r.log.Error("extract_job create failed", "subject_id", subjectID, "err", err)
		return nil, fmt.Errorf("%w: insert job: %v", common.ErrDatabase, err)
	}
	if err := tx.Commit(); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: %s", common.ErrDuplicateJobInProgress, subjectID)
		}
		return nil, fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	r.log.Info("extract_job created", "job_id", job.ID, "subject_id", subjectID, "requested_method", requestedMethod)
	return job, nil
}

func (r *extractJobRepo) countActive(ctx context.Context, tx dialect.Tx, subjectID string) (int, error) {
	b := r.builder()
	query, args := b.Select(entsql.Count("*")).
		From(b.Table(jobsTable)).
		Where(entsql.And(
			entsql.EQ("subject_id", subjectID),
			entsql.In("status", string(constants.JobStatusPending), string(constants.JobStatusProcessing)),
		)).
		Query()
	var rows entsql.Rows
	if err := tx.Query(ctx, query, args, &rows); err != nil {
		return 0, fmt.Errorf("%w: count active jobs: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	n := 0
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("%w: count active jobs: %v", common.ErrDatabase, err)
		}
	}
	return n, rows.Err()
}

func (r *extractJobRepo) Get(ctx context.Context, id uuid.UUID) (*entity.ExtractionJob, error) {
	b := r.builder()
	query, args := b.Select(jobColumns...).
		From(b.Table(jobsTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: get job: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: get job: %v", common.ErrDatabase, err)
		}
		return nil, fmt.Errorf("%w: extraction job %s", common.ErrNotFound, id)
	}
	job, err := scanJob(&rows)
	if err != nil {
		return nil, fmt.Errorf("%w: scan job: %v", common.ErrDatabase, err)
	}
	return job, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*entity.ExtractionJob, error) {
	var (
		job                  entity.ExtractionJob
		status               string
		method, errMsg       sql.NullString
		created, started, cm dbTime
	)
	if err := s.Scan(&job.ID, &job.SubjectID, &status, &job.ProgressPercent, &job.ProgressMessage,
		&job.RequestedMethod, &method, &errMsg, &created, &started, &cm); err != nil {
		return nil, err
	}
	job.Status = constants.JobStatus(status)
	job.ExtractionMethod = method.String
	if errMsg.Valid {
		job.ErrorMessage = &errMsg.String
	}
	job.CreatedAt = created.Time.UTC()
	job.StartedAt = started.ptr()
	job.CompletedAt = cm.ptr()
	return &job, nil
}

func (r *extractJobRepo) MarkProcessing(ctx context.Context, id uuid.UUID) (*entity.ExtractionJob, error) {
	query, args := r.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusProcessing)).
		Set("started_at", now()).
		Set("progress_message", "starting").
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.EQ("status", string(constants.JobStatusPending)),
		)).
		Query()
	n, err := r.exec(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		job, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: job %s is %s", common.ErrJobNotPending, id, job.Status)
	}
	r.log.Info("extract_job processing", "job_id", id)
	return r.Get(ctx, id)
}

func (r *extractJobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, percent int, message string) error {
	query, args := r.builder().Update(jobsTable).
		Set("progress_percent", percent).
		Set("progress_message", message).
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.EQ("status", string(constants.JobStatusProcessing)),
			entsql.LTE("progress_percent", percent),
		)).
		Query()
	_, err := r.exec(ctx, query, args)
	return err
}

func (r *extractJobRepo) Complete(ctx context.Context, id uuid.UUID, result *entity.ExtractionResult) error {
	metadata, err := marshalMetadata(result.Metadata)
	if err != nil {
		return err
	}
	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	b := r.builder()
	completed := now()

	query, args := b.Update(jobsTable).
		Set("status", string(constants.JobStatusCompleted)).
		Set("progress_percent", 100).
		Set("progress_message", "completed").
		Set("extraction_method", result.Method).
		Set("completed_at", completed).
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.EQ("status", string(constants.JobStatusProcessing)),
		)).
		Query()
	var res entsql.Result
	if err := tx.Exec(ctx, query, args, &res); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: complete job: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("%w: job %s is not processing", common.ErrJobNotActive, id)
	}

	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = completed
	}
	query, args = b.Insert(resultsTable).
		Columns("job_id", "subject_id", "text", "method", "confidence", "language",
			"processing_duration_ms", "metadata", "created_at").
		Values(id.String(), result.SubjectID, result.Text, result.Method, result.Confidence,
			string(result.Language), result.ProcessingDurationMs, metadata, createdAt).
		Query()
	if err := tx.Exec(ctx, query, args, &res); err != nil {
		_ = tx.Rollback()
		r.log.Error("extract_job save result failed", "job_id", id, "err", err)
		return fmt.Errorf("%w: insert result: %v", common.ErrDatabase, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	r.log.Info("extract_job finished (COMPLETED)", "job_id", id, "method", result.Method, "confidence", result.Confidence)
	return nil
}

func (r *extractJobRepo) Fail(ctx context.Context, id uuid.UUID, message string) error {
	query, args := r.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusFailed)).
		Set("error_message", message).
		Set("progress_message", "failed").
		Set("completed_at", now()).
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.In("status", string(constants.JobStatusPending), string(constants.JobStatusProcessing)),
		)).
		Query()
	n, err := r.exec(ctx, query, args)
	if err != nil {
		r.log.Error("extract_job finish(FAILED) failed", "job_id", id, "err", err)
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: job %s", common.ErrJobNotActive, id)
	}
	r.log.Warn("extract_job finished (FAILED)", "job_id", id, "error", message)
	return nil
}

func (r *extractJobRepo) FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	query, args := r.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusFailed)).
		Set("error_message", message).
		Set("progress_message", "failed").
		Set("completed_at", now()).
		Where(entsql.And(
			entsql.In("status", string(constants.JobStatusPending), string(constants.JobStatusProcessing)),
			entsql.LT("created_at", cutoff.UTC()),
		)).
		Query()
	n, err := r.exec(ctx, query, args)
	if err != nil {
		r.log.Error("extract_job stale sweep failed", "cutoff", cutoff, "err", err)
		return 0, err
	}
	if n > 0 {
		r.log.Warn("extract_job stale jobs failed", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (r *extractJobRepo) exec(ctx context.Context, query string, args []any) (int64, error) {
	var res entsql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", common.ErrDatabase, err)
	}
	return n, nil
}
