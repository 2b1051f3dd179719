package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/png"
	"sort"
	"sync"
	"testing"

	"github.com/joseph-ayodele/doc-extractor/internal/ocr"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

type fakeEngine struct {
	mu        sync.Mutex
	calls     int
	images    [][]byte
	recognize func(img []byte) (*ocr.Result, error)
}

func (f *fakeEngine) Recognize(_ context.Context, img []byte, _ ocr.Options, rep progress.Reporter) (*ocr.Result, error) {
	f.mu.Lock()
	f.calls++
	f.images = append(f.images, img)
	f.mu.Unlock()
	progress.OrNop(rep).Report(100, "done")
	if f.recognize == nil {
		return &ocr.Result{Text: "ocr text", Confidence: 0.8}, nil
	}
	return f.recognize(img)
}

func (f *fakeEngine) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func tinyPNG(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.String()
}

func assertMonotonic(t *testing.T, rec *progress.Recorder) {
	t.Helper()
	ev := rec.Events()
	for i := 1; i < len(ev); i++ {
		if ev[i].Percent < ev[i-1].Percent {
			t.Fatalf("progress went backwards: %+v", ev)
		}
	}
}
