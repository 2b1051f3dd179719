// Package pipeline runs extraction jobs: it owns the job state machine, feeds progress
// to the store, consults the result cache and hands files to the format extractors.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/cache"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/entity"
	"github.com/joseph-ayodele/doc-extractor/internal/extract"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
	"github.com/joseph-ayodele/doc-extractor/internal/repository"
	"github.com/joseph-ayodele/doc-extractor/internal/textproc"
)

// EmptyTextPlaceholder is stored as the result text when nothing readable was found.
const EmptyTextPlaceholder = "No readable text was found in this file. " +
	"If it is a scan or photo, try a sharper image; otherwise convert it to PDF and upload it again."

const failTimeout = 10 * time.Second

// Dispatcher picks the extractor for a format.
type Dispatcher interface {
	For(format constants.Format) (extract.Extractor, error)
}

// Config tunes the orchestrator.
type Config struct {
	Languages      []string
	ProgressBuffer int
	JobTimeout     time.Duration // 0 = no overall limit
	Coalesce       bool          // share one extraction between identical concurrent requests
	TempDir        string
}

// Deps are the collaborators of an Orchestrator. Cache and Launcher are optional.
type Deps struct {
	Jobs       repository.ExtractJobRepository
	Results    repository.ExtractionResultRepository
	Dispatcher Dispatcher
	Cache      cache.Cache
	Launcher   Launcher
}

// Orchestrator drives jobs from PENDING to COMPLETED or FAILED.
type Orchestrator struct {
	cfg        Config
	jobs       repository.ExtractJobRepository
	results    repository.ExtractionResultRepository
	dispatcher Dispatcher
	cache      cache.Cache
	launcher   Launcher
	validator  *metadataValidator
	log        *slog.Logger
	now        func() time.Time

	createMu sync.Mutex
	group    singleflight.Group
}

// NewOrchestrator wires an Orchestrator. It fails only if the metadata schema does not compile.
func NewOrchestrator(cfg Config, deps Deps, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Jobs == nil || deps.Results == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("%w: orchestrator needs job and result stores and a dispatcher", common.ErrInvalidInput)
	}
	if cfg.ProgressBuffer <= 0 {
		cfg.ProgressBuffer = 32
	}
	v, err := newMetadataValidator(BuildMetadataSchema())
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:        cfg,
		jobs:       deps.Jobs,
		results:    deps.Results,
		dispatcher: deps.Dispatcher,
		cache:      deps.Cache,
		launcher:   deps.Launcher,
		validator:  v,
		log:        logger,
		now:        time.Now,
	}, nil
}

// SetLauncher installs the background launcher. Launchers usually need the orchestrator
// themselves, so they are wired after construction.
func (o *Orchestrator) SetLauncher(l Launcher) { o.launcher = l }

// CreateJob creates a PENDING job for subjectID. An empty requestedMethod means "auto".
func (o *Orchestrator) CreateJob(ctx context.Context, subjectID, requestedMethod string) (*entity.ExtractionJob, error) {
	if requestedMethod == "" {
		requestedMethod = constants.RequestAuto
	}
	v := common.NewValidator().
		Field("subject_id", subjectID, common.Required, common.MaxLen(255)).
		Field("requested_method", requestedMethod, common.OneOf(constants.RequestAuto, constants.RequestOCR, constants.RequestText))
	if err := v.Error(); err != nil {
		return nil, err
	}

	o.createMu.Lock()
	defer o.createMu.Unlock()
	job, err := o.jobs.Create(ctx, subjectID, requestedMethod)
	if err != nil {
		return nil, err
	}
	common.LoggerFrom(ctx, o.log).Info("extraction job created",
		"job_id", job.ID, "subject_id", subjectID, "requested_method", requestedMethod)
	return job, nil
}

// GetJobStatus returns the current state of a job.
func (o *Orchestrator) GetJobStatus(ctx context.Context, jobID uuid.UUID) (*entity.ExtractionJob, error) {
	return o.jobs.Get(ctx, jobID)
}

// GetExtraction returns the result stored for a completed job.
func (o *Orchestrator) GetExtraction(ctx context.Context, jobID uuid.UUID) (*entity.ExtractionResult, error) {
	return o.results.GetByJobID(ctx, jobID)
}

// GetExtractionBySubjectID returns the newest result for the subject, or nil when none exists.
func (o *Orchestrator) GetExtractionBySubjectID(ctx context.Context, subjectID string) (*entity.ExtractionResult, error) {
	if err := common.NewValidator().Field("subject_id", subjectID, common.Required).Error(); err != nil {
		return nil, err
	}
	return o.results.GetLatestBySubjectID(ctx, subjectID)
}

// ExtractText runs a PENDING job to completion on the calling goroutine. The work is
// detached from ctx cancellation; only the configured job timeout bounds it. On any
// failure the job is marked FAILED with a user-facing message and the error is returned.
func (o *Orchestrator) ExtractText(ctx context.Context, file extract.File, mimeType, subjectID string, jobID uuid.UUID) (*entity.ExtractionResult, error) {
	start := o.now()
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.SubjectID != subjectID {
		return nil, fmt.Errorf("%w: job %s does not belong to subject %q", common.ErrInvalidInput, jobID, subjectID)
	}
	if _, err := o.jobs.MarkProcessing(ctx, jobID); err != nil {
		return nil, err
	}

	ctx = common.WithJob(ctx, jobID.String(), subjectID)
	log := common.LoggerFrom(ctx, o.log)
	runCtx := context.WithoutCancel(ctx)
	if o.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, o.cfg.JobTimeout)
		defer cancel()
	}

	ch := progress.NewChannel(o.cfg.ProgressBuffer)
	persisted := make(chan struct{})
	go o.persistProgress(runCtx, jobID, ch, log, persisted)

	result, cacheKey, err := o.run(runCtx, job, file, mimeType, ch, log)
	ch.Close()
	<-persisted
	if dropped := ch.Dropped(); dropped > 0 {
		log.Debug("progress events dropped", "count", dropped)
	}
	if err != nil {
		o.fail(runCtx, jobID, err, log)
		return nil, err
	}

	result.ProcessingDurationMs = o.now().Sub(start).Milliseconds()
	if err := o.jobs.Complete(runCtx, jobID, result); err != nil {
		if !errors.Is(err, common.ErrJobNotActive) {
			o.fail(runCtx, jobID, err, log)
		}
		return nil, err
	}
	if o.cache != nil && cacheKey != "" {
		o.cache.Put(runCtx, cacheKey, result)
	}
	log.Info("extraction completed",
		"method", result.Method,
		"confidence", result.Confidence,
		"language", result.Language,
		"duration_ms", result.ProcessingDurationMs,
		"text_length", len(result.Text))
	return result, nil
}

func (o *Orchestrator) fail(ctx context.Context, jobID uuid.UUID, cause error, log *slog.Logger) {
	msg := common.UserMessage(cause)
	log.Error("extraction failed", "error", cause, "classification", common.Classify(cause).Code)
	// ctx may be the expired job context.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failTimeout)
	defer cancel()
	if err := o.jobs.Fail(ctx, jobID, msg); err != nil {
		log.Error("failed to mark job failed", "error", err)
	}
}

func (o *Orchestrator) persistProgress(ctx context.Context, jobID uuid.UUID, ch *progress.Channel, log *slog.Logger, done chan<- struct{}) {
	defer close(done)
	for ev := range ch.Events() {
		if err := o.jobs.UpdateProgress(ctx, jobID, ev.Percent, ev.Message); err != nil {
			log.Warn("progress update failed", "percent", ev.Percent, "error", err)
		}
	}
}

// processed is an extraction after post-processing, shared between coalesced callers.
type processed struct {
	text       string
	method     string
	confidence float64
	language   constants.Language
	metadata   map[string]any
}

// run produces the result for job. The returned cache key is empty when the result
// came from the cache.
func (o *Orchestrator) run(ctx context.Context, job *entity.ExtractionJob, file extract.File, mimeType string, rep progress.Reporter, log *slog.Logger) (*entity.ExtractionResult, string, error) {
	rep.Report(1, "Detecting file type")
	format := DetectFormat(mimeType, file.Name())
	x, err := o.dispatcher.For(format)
	if err != nil {
		return nil, "", err
	}
	log = log.With("format", format.String())

	hash, err := extract.ContentHash(file)
	if err != nil {
		return nil, "", fmt.Errorf("hash %s: %w", file.Name(), err)
	}
	key := cache.Key(hash, format, job.RequestedMethod)
	if o.cache != nil {
		if hit, ok := o.cache.Get(ctx, key); ok {
			log.Info("extraction cache hit", "content_hash", hash)
			rep.Report(95, "Reusing previous extraction")
			return o.fromCache(job, hit, file, mimeType), "", nil
		}
	}

	in := extract.Input{
		File:     file,
		MIMEType: mimeType,
		Format:   format,
		Options:  extract.OptionsFor(job.RequestedMethod, o.cfg.Languages),
	}
	base := map[string]any{
		"format":          format.String(),
		"mimeType":        constants.NormalizeMIME(mimeType),
		"fileName":        file.Name(),
		"fileSize":        file.Size(),
		"contentHash":     hash,
		"requestedMethod": job.RequestedMethod,
	}
	produce := func() (*processed, error) {
		return o.produce(ctx, x, in, base, rep, log)
	}

	var p *processed
	if o.cfg.Coalesce {
		v, err, shared := o.group.Do(key, func() (any, error) { return produce() })
		if err != nil {
			return nil, "", err
		}
		if shared {
			log.Debug("extraction shared with a concurrent request", "content_hash", hash)
		}
		p = v.(*processed)
	} else if p, err = produce(); err != nil {
		return nil, "", err
	}

	result := &entity.ExtractionResult{
		JobID:      job.ID,
		SubjectID:  job.SubjectID,
		Text:       p.text,
		Method:     p.method,
		Confidence: p.confidence,
		Language:   p.language,
		Metadata:   copyMetadata(p.metadata),
		CreatedAt:  o.now().UTC(),
	}
	return result, key, nil
}

func (o *Orchestrator) produce(ctx context.Context, x extract.Extractor, in extract.Input, base map[string]any, rep progress.Reporter, log *slog.Logger) (*processed, error) {
	rep.Report(2, "Extracting text")
	out, err := safeExtract(ctx, x, in, progress.Scale(rep, 2, 95), log)
	if err != nil {
		return nil, err
	}

	rep.Report(96, "Cleaning up text")
	text := textproc.PostProcess(out.Text)
	confidence := out.Confidence
	if confidence != confidence || confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	meta := copyMetadata(out.Metadata)
	for k, v := range base {
		meta[k] = v
	}
	lang := constants.LanguageUnknown
	if text == "" {
		log.Info("no text extracted", "method", out.Method)
		text = EmptyTextPlaceholder
		confidence = 0
		meta["empty"] = true
	} else {
		lang = textproc.DetectLanguage(text)
	}

	rep.Report(98, "Validating result")
	meta, err = o.validator.normalize(meta)
	if err != nil {
		return nil, err
	}
	return &processed{
		text:       text,
		method:     out.Method,
		confidence: confidence,
		language:   lang,
		metadata:   meta,
	}, nil
}

func (o *Orchestrator) fromCache(job *entity.ExtractionJob, hit *entity.ExtractionResult, file extract.File, mimeType string) *entity.ExtractionResult {
	r := hit.Clone()
	r.JobID = job.ID
	r.SubjectID = job.SubjectID
	r.CreatedAt = o.now().UTC()
	r.Metadata["cacheHit"] = true
	r.Metadata["fileName"] = file.Name()
	r.Metadata["mimeType"] = constants.NormalizeMIME(mimeType)
	return r
}

// safeExtract turns an extractor panic into ErrInternal so the job still terminates.
func safeExtract(ctx context.Context, x extract.Extractor, in extract.Input, rep progress.Reporter, log *slog.Logger) (out *extract.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("extractor panic", "panic", r, "stack", string(debug.Stack()))
			out, err = nil, fmt.Errorf("%w: extractor panic: %v", common.ErrInternal, r)
		}
	}()
	out, err = x.Extract(ctx, in, rep)
	if err == nil && out == nil {
		err = fmt.Errorf("%w: extractor returned no output", common.ErrInternal)
	}
	return out, err
}

// DetectFormat resolves the declared media type, falling back to the file extension
// when the type is missing or generic.
func DetectFormat(mimeType, fileName string) constants.Format {
	switch mt := constants.NormalizeMIME(mimeType); mt {
	case "", "application/octet-stream", "binary/octet-stream":
	default:
		if f := constants.FormatFromMIME(mt); f != constants.FormatUnsupported {
			return f
		}
	}
	return constants.FormatFromExt(filepath.Ext(fileName))
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+8)
	for k, v := range m {
		out[k] = v
	}
	return out
}
