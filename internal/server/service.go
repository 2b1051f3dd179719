package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/entity"
	"github.com/joseph-ayodele/doc-extractor/internal/extract"
)

// Orchestrator is the part of pipeline.Orchestrator the service needs.
type Orchestrator interface {
	CreateJob(ctx context.Context, subjectID, requestedMethod string) (*entity.ExtractionJob, error)
	ExtractText(ctx context.Context, file extract.File, mimeType, subjectID string, jobID uuid.UUID) (*entity.ExtractionResult, error)
	Submit(ctx context.Context, file extract.File, mimeType, subjectID, requestedMethod string) (*entity.ExtractionJob, error)
	GetJobStatus(ctx context.Context, jobID uuid.UUID) (*entity.ExtractionJob, error)
	GetExtraction(ctx context.Context, jobID uuid.UUID) (*entity.ExtractionResult, error)
	GetExtractionBySubjectID(ctx context.Context, subjectID string) (*entity.ExtractionResult, error)
}

// ExtractionService serves extraction.v1.ExtractionService.
type ExtractionService struct {
	orch   Orchestrator
	logger *slog.Logger
}

func NewExtractionService(orch Orchestrator, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{orch: orch, logger: logger}
}

// ExtractFile accepts {subject_id, file_name, mime_type, content (base64), requested_method, wait}.
// With wait=true the extraction runs inside the call and the reply carries the result;
// otherwise the job is queued and the reply carries the PENDING job.
func (s *ExtractionService) ExtractFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	subjectID := strings.TrimSpace(str(req, "subject_id"))
	if subjectID == "" {
		s.logger.Error("extract file request missing subject_id")
		return nil, common.InvalidArgumentError("subject_id is required")
	}
	fileName := strings.TrimSpace(str(req, "file_name"))
	if fileName == "" {
		return nil, common.InvalidArgumentError("file_name is required")
	}
	content, err := base64.StdEncoding.DecodeString(str(req, "content"))
	if err != nil {
		s.logger.Error("invalid content encoding", "subject_id", subjectID, "error", err)
		return nil, common.InvalidArgumentErrorf("content must be base64: %v", err)
	}
	mimeType := str(req, "mime_type")
	method := str(req, "requested_method")
	file := extract.NewBytesFile(fileName, content)

	if !boolean(req, "wait") {
		job, err := s.orch.Submit(ctx, file, mimeType, subjectID, method)
		if err != nil {
			s.logger.Error("submit extraction failed", "subject_id", subjectID, "error", err)
			return nil, common.ToGRPCStatus(err)
		}
		s.logger.Info("extraction submitted", "subject_id", subjectID, "job_id", job.ID, "bytes", len(content))
		return toStruct(map[string]any{"job": jobView(job)})
	}

	job, err := s.orch.CreateJob(ctx, subjectID, method)
	if err != nil {
		s.logger.Error("create job failed", "subject_id", subjectID, "error", err)
		return nil, common.ToGRPCStatus(err)
	}
	res, err := s.orch.ExtractText(ctx, file, mimeType, subjectID, job.ID)
	if err != nil {
		return nil, common.ToGRPCStatus(err)
	}
	if job, err = s.orch.GetJobStatus(ctx, job.ID); err != nil {
		return nil, common.ToGRPCStatus(err)
	}
	return toStruct(map[string]any{"job": jobView(job), "result": resultView(res)})
}

// GetJobStatus accepts {job_id}.
func (s *ExtractionService) GetJobStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := jobID(req)
	if err != nil {
		return nil, err
	}
	job, err := s.orch.GetJobStatus(ctx, id)
	if err != nil {
		s.logger.Warn("get job status failed", "job_id", id, "error", err)
		return nil, common.ToGRPCStatus(err)
	}
	return toStruct(map[string]any{"job": jobView(job)})
}

// GetExtraction accepts {job_id} or {subject_id}; the latter returns the newest result.
func (s *ExtractionService) GetExtraction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var (
		res *entity.ExtractionResult
		err error
	)
	if subjectID := strings.TrimSpace(str(req, "subject_id")); subjectID != "" && str(req, "job_id") == "" {
		res, err = s.orch.GetExtractionBySubjectID(ctx, subjectID)
		if err == nil && res == nil {
			return nil, common.NotFoundError(fmt.Sprintf("no extraction for subject %q", subjectID))
		}
	} else {
		id, perr := jobID(req)
		if perr != nil {
			return nil, perr
		}
		res, err = s.orch.GetExtraction(ctx, id)
	}
	if err != nil {
		return nil, common.ToGRPCStatus(err)
	}
	return toStruct(map[string]any{"result": resultView(res)})
}

func jobID(req *structpb.Struct) (uuid.UUID, error) {
	raw := strings.TrimSpace(str(req, "job_id"))
	v := common.NewValidator().Field("job_id", raw, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

func str(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func boolean(req *structpb.Struct, key string) bool {
	return req.GetFields()[key].GetBoolValue()
}

func timeString(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func jobView(j *entity.ExtractionJob) map[string]any {
	v := map[string]any{
		"id":                j.ID.String(),
		"subject_id":        j.SubjectID,
		"status":            string(j.Status),
		"progress_percent":  j.ProgressPercent,
		"progress_message":  j.ProgressMessage,
		"requested_method":  j.RequestedMethod,
		"extraction_method": j.ExtractionMethod,
		"created_at":        timeString(&j.CreatedAt),
		"started_at":        timeString(j.StartedAt),
		"completed_at":      timeString(j.CompletedAt),
	}
	if j.ErrorMessage != nil {
		v["error_message"] = *j.ErrorMessage
	}
	return v
}

func resultView(r *entity.ExtractionResult) map[string]any {
	return map[string]any{
		"job_id":                 r.JobID.String(),
		"subject_id":             r.SubjectID,
		"text":                   r.Text,
		"method":                 r.Method,
		"confidence":             r.Confidence,
		"language":               string(r.Language),
		"processing_duration_ms": r.ProcessingDurationMs,
		"metadata":               r.Metadata,
		"created_at":             timeString(&r.CreatedAt),
	}
}

// toStruct goes through JSON so any JSON-encodable value (slices of strings, nested
// maps) ends up as a valid Struct.
func toStruct(v map[string]any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalError(fmt.Sprintf("encode reply: %v", err))
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, common.InternalError(fmt.Sprintf("encode reply: %v", err))
	}
	return out, nil
}
