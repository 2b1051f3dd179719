package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/cache"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/extract"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
	"github.com/joseph-ayodele/doc-extractor/internal/repository"
)

type fakeExtractor struct {
	calls atomic.Int32
	fn    func(ctx context.Context, in extract.Input, rep progress.Reporter) (*extract.Output, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, in extract.Input, rep progress.Reporter) (*extract.Output, error) {
	f.calls.Add(1)
	return f.fn(ctx, in, rep)
}

type fakeDispatcher map[constants.Format]extract.Extractor

func (d fakeDispatcher) For(format constants.Format) (extract.Extractor, error) {
	if x, ok := d[format]; ok {
		return x, nil
	}
	return nil, common.ErrUnsupportedFormat
}

// recordingJobs remembers every progress update that reached the store.
type recordingJobs struct {
	repository.ExtractJobRepository
	mu       sync.Mutex
	percents []int
}

func (r *recordingJobs) UpdateProgress(ctx context.Context, id uuid.UUID, percent int, message string) error {
	r.mu.Lock()
	r.percents = append(r.percents, percent)
	r.mu.Unlock()
	return r.ExtractJobRepository.UpdateProgress(ctx, id, percent, message)
}

func (r *recordingJobs) Percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.percents...)
}

type failingRunner struct{}

func (failingRunner) Run(context.Context, string, *slog.Logger, ...string) ([]byte, []byte, error) {
	return nil, nil, exec.ErrNotFound
}

type harness struct {
	o       *Orchestrator
	jobs    *recordingJobs
	results repository.ExtractionResultRepository
}

func newHarness(t *testing.T, cfg Config, d Dispatcher, c cache.Cache) *harness {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "jobs.db") + "?_pragma=foreign_keys(1)&_time_format=sqlite"
	db, err := repository.Open(ctx, repository.Config{DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("repository.Open: %v", err)
	}
	t.Cleanup(func() { db.Close(nil) })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	h := &harness{
		jobs:    &recordingJobs{ExtractJobRepository: repository.NewExtractJobRepository(db, nil)},
		results: repository.NewExtractionResultRepository(db, nil),
	}
	if cfg.TempDir == "" {
		cfg.TempDir = t.TempDir()
	}
	h.o, err = NewOrchestrator(cfg, Deps{Jobs: h.jobs, Results: h.results, Dispatcher: d, Cache: c}, nil)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return h
}

func (h *harness) extract(t *testing.T, subject string, file extract.File, mimeType string) (uuid.UUID, error) {
	t.Helper()
	job, err := h.o.CreateJob(context.Background(), subject, constants.RequestAuto)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	_, err = h.o.ExtractText(context.Background(), file, mimeType, subject, job.ID)
	return job.ID, err
}

func realDispatcher() *extract.Dispatcher {
	return extract.NewDispatcher(extract.Config{}, extract.Deps{Runner: failingRunner{}}, nil)
}

func TestExtractTextPlainHello(t *testing.T) {
	h := newHarness(t, Config{}, realDispatcher(), nil)
	ctx := context.Background()

	id, err := h.extract(t, "s1", extract.NewBytesFile("hello.txt", []byte("Hello")), "text/plain")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	job, err := h.o.GetJobStatus(ctx, id)
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if job.Status != constants.JobStatusCompleted || job.ProgressPercent != 100 {
		t.Fatalf("job = %s/%d, want COMPLETED/100", job.Status, job.ProgressPercent)
	}
	if job.ExtractionMethod != constants.MethodPlainText {
		t.Fatalf("ExtractionMethod = %q", job.ExtractionMethod)
	}

	res, err := h.o.GetExtractionBySubjectID(ctx, "s1")
	if err != nil || res == nil {
		t.Fatalf("GetExtractionBySubjectID = %v, %v", res, err)
	}
	if res.Text != "Hello" || res.Confidence != 1.0 || res.Method != constants.MethodPlainText {
		t.Fatalf("result = %q %v %q", res.Text, res.Confidence, res.Method)
	}
	// Too short to classify.
	if res.Language != constants.LanguageUnknown {
		t.Fatalf("Language = %q, want unknown", res.Language)
	}
	if res.Metadata["format"] != constants.FormatPlainText.String() {
		t.Fatalf("metadata format = %v", res.Metadata["format"])
	}
	if hash, _ := res.Metadata["contentHash"].(string); len(hash) != 64 {
		t.Fatalf("contentHash = %v", res.Metadata["contentHash"])
	}
}

func TestExtractTextSpreadsheetKeepsCells(t *testing.T) {
	wb := excelize.NewFile()
	for cell, v := range map[string]string{"A1": "New York", "B1": "Boston", "A2": "Tel  Aviv", "C2": "Haifa"} {
		if err := wb.SetCellValue("Sheet1", cell, v); err != nil {
			t.Fatalf("SetCellValue: %v", err)
		}
	}
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	h := newHarness(t, Config{}, realDispatcher(), nil)
	mimeType := constants.MIMEFromExt("xlsx")
	if _, err := h.extract(t, "sheet", extract.NewBytesFile("cities.xlsx", buf.Bytes()), mimeType); err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	res, err := h.o.GetExtractionBySubjectID(context.Background(), "sheet")
	if err != nil || res == nil {
		t.Fatalf("GetExtractionBySubjectID = %v, %v", res, err)
	}
	// The empty B2 cell collapses into a single separator.
	want := "=== Sheet: Sheet1 ===\nNew York\tBoston\nTel Aviv\tHaifa"
	if res.Text != want {
		t.Fatalf("Text = %q, want %q", res.Text, want)
	}
	if res.Method != constants.MethodSpreadsheet {
		t.Fatalf("Method = %q", res.Method)
	}
}

func TestExtractTextProgressIsMonotonic(t *testing.T) {
	x := &fakeExtractor{fn: func(_ context.Context, _ extract.Input, rep progress.Reporter) (*extract.Output, error) {
		for _, p := range []int{10, 50, 30, 80, 100, 20} {
			rep.Report(p, "working")
		}
		return &extract.Output{Text: "done", Method: "fake", Confidence: 0.7}, nil
	}}
	h := newHarness(t, Config{ProgressBuffer: 64}, fakeDispatcher{constants.FormatPlainText: x}, nil)

	id, err := h.extract(t, "s1", extract.NewBytesFile("a.txt", []byte("x")), "text/plain")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	got := h.jobs.Percents()
	if len(got) == 0 {
		t.Fatal("no progress was persisted")
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("progress went backwards: %v", got)
		}
	}
	job, _ := h.o.GetJobStatus(context.Background(), id)
	if job.ProgressPercent != 100 {
		t.Fatalf("final progress = %d", job.ProgressPercent)
	}
}

func TestExtractTextEmptyResultUsesPlaceholder(t *testing.T) {
	x := &fakeExtractor{fn: func(context.Context, extract.Input, progress.Reporter) (*extract.Output, error) {
		return &extract.Output{Text: "  \n\t ", Method: constants.MethodImageOCR, Confidence: 0.9}, nil
	}}
	h := newHarness(t, Config{}, fakeDispatcher{constants.FormatImage: x}, nil)

	id, err := h.extract(t, "s1", extract.NewBytesFile("blank.png", []byte{0x89}), "image/png")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	res, err := h.o.GetExtraction(context.Background(), id)
	if err != nil {
		t.Fatalf("GetExtraction: %v", err)
	}
	if res.Text != EmptyTextPlaceholder || res.Confidence != 0 {
		t.Fatalf("result = %q / %v, want placeholder / 0", res.Text, res.Confidence)
	}
	if res.Metadata["empty"] != true {
		t.Fatalf("metadata empty = %v", res.Metadata["empty"])
	}
}

func TestExtractTextClampsConfidence(t *testing.T) {
	x := &fakeExtractor{fn: func(context.Context, extract.Input, progress.Reporter) (*extract.Output, error) {
		return &extract.Output{Text: "text", Method: "fake", Confidence: 7}, nil
	}}
	h := newHarness(t, Config{}, fakeDispatcher{constants.FormatPlainText: x}, nil)
	id, err := h.extract(t, "s1", extract.NewBytesFile("a.txt", []byte("x")), "text/plain")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	res, _ := h.o.GetExtraction(context.Background(), id)
	if res.Confidence != 1 {
		t.Fatalf("Confidence = %v, want 1", res.Confidence)
	}
}

func TestExtractTextFailures(t *testing.T) {
	cases := []struct {
		name    string
		x       *fakeExtractor
		mime    string
		wantErr error
		wantMsg string
	}{
		{
			name:    "panic",
			x:       &fakeExtractor{fn: func(context.Context, extract.Input, progress.Reporter) (*extract.Output, error) { panic("boom") }},
			mime:    "text/plain",
			wantErr: common.ErrInternal,
			wantMsg: "unexpectedly",
		},
		{
			name: "corrupt",
			x: &fakeExtractor{fn: func(context.Context, extract.Input, progress.Reporter) (*extract.Output, error) {
				return nil, common.ErrCorruptContainer
			}},
			mime:    "text/plain",
			wantErr: common.ErrCorruptContainer,
			wantMsg: "damaged",
		},
		{
			name:    "unsupported",
			x:       &fakeExtractor{},
			mime:    "application/x-unknown",
			wantErr: common.ErrUnsupportedFormat,
			wantMsg: "not supported",
		},
		{
			name:    "nil output",
			x:       &fakeExtractor{fn: func(context.Context, extract.Input, progress.Reporter) (*extract.Output, error) { return nil, nil }},
			mime:    "text/plain",
			wantErr: common.ErrInternal,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, Config{}, fakeDispatcher{constants.FormatPlainText: tc.x}, nil)
			id, err := h.extract(t, "s1", extract.NewBytesFile("file.bin", []byte("data")), tc.mime)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			job, _ := h.o.GetJobStatus(context.Background(), id)
			if job.Status != constants.JobStatusFailed || job.ErrorMessage == nil {
				t.Fatalf("job = %s / %v, want FAILED with message", job.Status, job.ErrorMessage)
			}
			if !strings.Contains(*job.ErrorMessage, tc.wantMsg) {
				t.Fatalf("ErrorMessage = %q, want it to contain %q", *job.ErrorMessage, tc.wantMsg)
			}
			if res, _ := h.o.GetExtractionBySubjectID(context.Background(), "s1"); res != nil {
				t.Fatalf("failed job stored a result: %+v", res)
			}
		})
	}
}

func TestExtractTextTotality(t *testing.T) {
	cases := []struct {
		name, file, mime string
		data             []byte
	}{
		{"empty text", "a.txt", "text/plain", nil},
		{"one byte text", "a.txt", "text/plain", []byte("x")},
		{"one byte docx", "a.docx", "", []byte("P")},
		{"one byte xlsx", "a.xlsx", "application/octet-stream", []byte("P")},
		{"one byte pptx", "a.pptx", "", []byte("P")},
		{"empty pdf", "a.pdf", "application/pdf", nil},
		{"one byte pdf", "a.pdf", "application/pdf", []byte("%")},
		{"empty image", "a.png", "image/png", nil},
		{"legacy doc", "a.doc", "application/msword", []byte("\xd0\xcf\x11\xe0")},
		{"legacy slides", "a.ppt", "", []byte("x")},
		{"unknown", "a.zzz", "", []byte("x")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, Config{}, realDispatcher(), nil)
			id, err := h.extract(t, "s1", extract.NewBytesFile(tc.file, tc.data), tc.mime)
			job, gerr := h.o.GetJobStatus(context.Background(), id)
			if gerr != nil {
				t.Fatalf("GetJobStatus: %v", gerr)
			}
			if !job.Status.Terminal() {
				t.Fatalf("job left in %s", job.Status)
			}
			if (err == nil) != (job.Status == constants.JobStatusCompleted) {
				t.Fatalf("err = %v but status = %s", err, job.Status)
			}
		})
	}
}

func TestExtractTextUsesCache(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	x := &fakeExtractor{fn: func(context.Context, extract.Input, progress.Reporter) (*extract.Output, error) {
		return &extract.Output{Text: "cached text", Method: "fake", Confidence: 0.8}, nil
	}}
	c := cache.NewMemoryCache(time.Minute, clock)
	h := newHarness(t, Config{}, fakeDispatcher{constants.FormatPlainText: x}, c)
	ctx := context.Background()
	content := []byte("same bytes")

	if _, err := h.extract(t, "s1", extract.NewBytesFile("a.txt", content), "text/plain"); err != nil {
		t.Fatalf("first ExtractText: %v", err)
	}
	id, err := h.extract(t, "s2", extract.NewBytesFile("b.txt", content), "text/plain")
	if err != nil {
		t.Fatalf("second ExtractText: %v", err)
	}
	if n := x.calls.Load(); n != 1 {
		t.Fatalf("extractor calls = %d, want 1", n)
	}
	res, err := h.o.GetExtraction(ctx, id)
	if err != nil {
		t.Fatalf("GetExtraction: %v", err)
	}
	if res.SubjectID != "s2" || res.Text != "cached text" || res.Metadata["cacheHit"] != true {
		t.Fatalf("cached result = %+v", res)
	}
	if res.Metadata["fileName"] != "b.txt" {
		t.Fatalf("fileName = %v, want b.txt", res.Metadata["fileName"])
	}

	now = now.Add(2 * time.Minute)
	if _, err := h.extract(t, "s3", extract.NewBytesFile("c.txt", content), "text/plain"); err != nil {
		t.Fatalf("third ExtractText: %v", err)
	}
	if n := x.calls.Load(); n != 2 {
		t.Fatalf("extractor calls after expiry = %d, want 2", n)
	}
}

func TestExtractTextCoalescesConcurrentRequests(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	x := &fakeExtractor{fn: func(context.Context, extract.Input, progress.Reporter) (*extract.Output, error) {
		started <- struct{}{}
		<-release
		return &extract.Output{Text: "shared", Method: "fake", Confidence: 0.5}, nil
	}}
	h := newHarness(t, Config{Coalesce: true}, fakeDispatcher{constants.FormatPlainText: x}, nil)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, s := range []string{"s1", "s2"} {
		job, err := h.o.CreateJob(ctx, s, "")
		if err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
		ids = append(ids, job.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, s := range []string{"s1", "s2"} {
		wg.Add(1)
		go func(i int, s string) {
			defer wg.Done()
			_, errs[i] = h.o.ExtractText(ctx, extract.NewBytesFile("a.txt", []byte("same")), "text/plain", s, ids[i])
		}(i, s)
	}
	<-started
	// Let the second request reach the shared call before the first one returns.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("ExtractText %d: %v", i, err)
		}
	}
	for _, id := range ids {
		res, err := h.o.GetExtraction(ctx, id)
		if err != nil || res.Text != "shared" {
			t.Fatalf("GetExtraction(%s) = %+v, %v", id, res, err)
		}
	}
	if n := x.calls.Load(); n < 1 || n > 2 {
		t.Fatalf("extractor calls = %d", n)
	}
}

func TestCreateJobRejectsConcurrentDuplicates(t *testing.T) {
	h := newHarness(t, Config{}, fakeDispatcher{}, nil)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.o.CreateJob(ctx, "subject", constants.RequestAuto)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, common.ErrDuplicateJobInProgress):
				dup.Add(1)
			default:
				t.Errorf("CreateJob: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok.Load() != 1 || dup.Load() != n-1 {
		t.Fatalf("created = %d, duplicates = %d", ok.Load(), dup.Load())
	}
}

func TestCreateJobValidation(t *testing.T) {
	h := newHarness(t, Config{}, fakeDispatcher{}, nil)
	ctx := context.Background()
	cases := []struct {
		name, subject, method string
	}{
		{"missing subject", " ", constants.RequestAuto},
		{"long subject", strings.Repeat("s", 256), constants.RequestAuto},
		{"bad method", "s1", "magic"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.o.CreateJob(ctx, tc.subject, tc.method); !errors.Is(err, common.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
	job, err := h.o.CreateJob(ctx, "s1", "")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.RequestedMethod != constants.RequestAuto {
		t.Fatalf("RequestedMethod = %q, want auto", job.RequestedMethod)
	}
}

func TestExtractTextRejectsWrongSubjectAndRerun(t *testing.T) {
	x := &fakeExtractor{fn: func(context.Context, extract.Input, progress.Reporter) (*extract.Output, error) {
		return &extract.Output{Text: "ok", Method: "fake", Confidence: 1}, nil
	}}
	h := newHarness(t, Config{}, fakeDispatcher{constants.FormatPlainText: x}, nil)
	ctx := context.Background()
	job, err := h.o.CreateJob(ctx, "s1", "")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	file := extract.NewBytesFile("a.txt", []byte("x"))
	if _, err := h.o.ExtractText(ctx, file, "text/plain", "other", job.ID); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("wrong subject err = %v", err)
	}
	if _, err := h.o.ExtractText(ctx, file, "text/plain", "s1", job.ID); err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if _, err := h.o.ExtractText(ctx, file, "text/plain", "s1", job.ID); !errors.Is(err, common.ErrJobNotPending) {
		t.Fatalf("rerun err = %v, want ErrJobNotPending", err)
	}
	if _, err := h.o.GetJobStatus(ctx, uuid.New()); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing job err = %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		mime, name string
		want       constants.Format
	}{
		{"application/pdf", "x.bin", constants.FormatPDF},
		{"", "scan.PDF", constants.FormatPDF},
		{"application/octet-stream", "book.xlsx", constants.FormatSpreadsheet},
		{"application/zip", "report.docx", constants.FormatDocument},
		{"text/plain; charset=utf-8", "x", constants.FormatPlainText},
		{"", "noext", constants.FormatUnsupported},
	}
	for _, tc := range cases {
		if got := DetectFormat(tc.mime, tc.name); got != tc.want {
			t.Errorf("DetectFormat(%q, %q) = %s, want %s", tc.mime, tc.name, got, tc.want)
		}
	}
}

type recordingLauncher struct {
	tasks []Task
	err   error
}

func (l *recordingLauncher) Launch(_ context.Context, task Task) error {
	l.tasks = append(l.tasks, task)
	return l.err
}

func TestSubmitAndRunTask(t *testing.T) {
	h := newHarness(t, Config{}, realDispatcher(), nil)
	l := &recordingLauncher{}
	h.o.SetLauncher(l)
	ctx := context.Background()

	job, err := h.o.Submit(ctx, extract.NewBytesFile("notes.txt", []byte("Hello")), "", "s1", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != constants.JobStatusPending || len(l.tasks) != 1 {
		t.Fatalf("job = %s, tasks = %d", job.Status, len(l.tasks))
	}
	task := l.tasks[0]
	if task.FileName != "notes.txt" || !task.Owned {
		t.Fatalf("task = %+v", task)
	}

	if err := h.o.RunTask(ctx, task); err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if _, err := os.Stat(task.Path); !os.IsNotExist(err) {
		t.Fatalf("staged file still present: %v", err)
	}
	res, err := h.o.GetExtraction(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetExtraction: %v", err)
	}
	if res.Text != "Hello" || res.Metadata["fileName"] != "notes.txt" {
		t.Fatalf("result = %q, fileName = %v", res.Text, res.Metadata["fileName"])
	}
}

func TestSubmitLaunchFailureFailsJob(t *testing.T) {
	h := newHarness(t, Config{}, realDispatcher(), nil)
	h.o.SetLauncher(&recordingLauncher{err: errors.New("queue down")})
	ctx := context.Background()

	if _, err := h.o.Submit(ctx, extract.NewBytesFile("a.txt", []byte("x")), "text/plain", "s1", ""); err == nil {
		t.Fatal("Submit succeeded with a failing launcher")
	}
	// The failed job no longer blocks the subject.
	if _, err := h.o.CreateJob(ctx, "s1", ""); err != nil {
		t.Fatalf("CreateJob after failed launch: %v", err)
	}
}

func TestSubmitWithoutLauncher(t *testing.T) {
	h := newHarness(t, Config{}, realDispatcher(), nil)
	_, err := h.o.Submit(context.Background(), extract.NewBytesFile("a.txt", []byte("x")), "", "s1", "")
	if !errors.Is(err, common.ErrInternal) {
		t.Fatalf("err = %v, want ErrInternal", err)
	}
}
