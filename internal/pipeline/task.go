package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/entity"
	"github.com/joseph-ayodele/doc-extractor/internal/extract"
)

// Task is a submitted job waiting to run. It is serializable so it can cross a queue.
type Task struct {
	JobID     uuid.UUID `json:"job_id"`
	SubjectID string    `json:"subject_id"`
	MIMEType  string    `json:"mime_type"`
	Path      string    `json:"path"`
	FileName  string    `json:"file_name"`
	// Owned marks Path as a private copy to delete once the task has run.
	Owned bool `json:"owned"`
}

// Launcher starts a task in the background. Launch must not wait for the task to finish.
type Launcher interface {
	Launch(ctx context.Context, task Task) error
}

// Submit creates a job and hands the file to the background launcher. The file is
// copied first, so the caller may close it as soon as Submit returns.
func (o *Orchestrator) Submit(ctx context.Context, file extract.File, mimeType, subjectID, requestedMethod string) (*entity.ExtractionJob, error) {
	if o.launcher == nil {
		return nil, fmt.Errorf("%w: no job launcher configured", common.ErrInternal)
	}
	job, err := o.CreateJob(ctx, subjectID, requestedMethod)
	if err != nil {
		return nil, err
	}
	log := common.LoggerFrom(common.WithJob(ctx, job.ID.String(), subjectID), o.log)

	pattern := "dx-job-*"
	if ext := constants.NormalizeExt(filepath.Ext(file.Name())); ext != "" {
		pattern += "." + ext
	}
	path, err := extract.CopyToTemp(file, o.cfg.TempDir, pattern)
	if err != nil {
		err = fmt.Errorf("stage upload: %w", err)
		o.fail(ctx, job.ID, err, log)
		return nil, err
	}

	task := Task{
		JobID:     job.ID,
		SubjectID: subjectID,
		MIMEType:  mimeType,
		Path:      path,
		FileName:  file.Name(),
		Owned:     true,
	}
	if err := o.launcher.Launch(ctx, task); err != nil {
		_ = os.Remove(path)
		err = fmt.Errorf("launch job: %w", err)
		o.fail(ctx, job.ID, err, log)
		return nil, err
	}
	log.Debug("extraction job launched", "path", path)
	return job, nil
}

// RunTask runs a launched task to completion. It is what launchers and queue workers call.
func (o *Orchestrator) RunTask(ctx context.Context, task Task) error {
	if task.Owned {
		defer func() { _ = os.Remove(task.Path) }()
	}
	log := common.LoggerFrom(common.WithJob(ctx, task.JobID.String(), task.SubjectID), o.log)

	f, err := extract.OpenFile(task.Path)
	if err != nil {
		err = fmt.Errorf("open staged file: %w", err)
		o.fail(ctx, task.JobID, err, log)
		return err
	}
	defer func() { _ = f.Close() }()

	var file extract.File = f
	if task.FileName != "" && task.FileName != f.Name() {
		file = namedFile{OSFile: f, name: task.FileName}
	}
	_, err = o.ExtractText(ctx, file, task.MIMEType, task.SubjectID, task.JobID)
	if errors.Is(err, common.ErrJobNotPending) {
		log.Warn("task skipped, job already started")
	}
	return err
}

// namedFile reports the uploaded file name instead of the staged copy's name.
type namedFile struct {
	*extract.OSFile
	name string
}

func (n namedFile) Name() string { return n.name }
