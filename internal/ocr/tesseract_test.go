package ocr

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

func TestTesseractRecognize(t *testing.T) {
	fr := &fakeRunner{run: func(name string, args []string) ([]byte, []byte, error) {
		if _, err := os.Stat(args[0]); err != nil {
			t.Errorf("image not written before run: %v", err)
		}
		return []byte(sampleTSV), nil, nil
	}}
	eng := NewTesseractEngine(Config{Tesseract: "tess", PSM: 6, TempDir: t.TempDir()}, fr, nil)

	var rec progress.Recorder
	res, err := eng.Recognize(context.Background(), pngBytes(t, 40, 20), Options{}, &rec)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if !strings.Contains(res.Text, "world") {
		t.Fatalf("Text = %q", res.Text)
	}
	if len(fr.calls) != 1 {
		t.Fatalf("runner calls = %d, want 1", len(fr.calls))
	}
	args := strings.Join(fr.calls[0], " ")
	for _, want := range []string{"tess ", " stdout -l heb+eng", "--psm 6", " tsv"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}

	ev := rec.Events()
	if len(ev) < 4 || ev[0].Percent != 0 || ev[len(ev)-1].Percent != 100 {
		t.Fatalf("progress events = %+v", ev)
	}
	for i := 1; i < len(ev); i++ {
		if ev[i].Percent < ev[i-1].Percent {
			t.Fatalf("progress went backwards: %+v", ev)
		}
	}
}

func TestTesseractLanguageOverride(t *testing.T) {
	fr := &fakeRunner{run: func(string, []string) ([]byte, []byte, error) { return []byte(sampleTSV), nil, nil }}
	eng := NewTesseractEngine(Config{TempDir: t.TempDir()}, fr, nil)
	if _, err := eng.Recognize(context.Background(), pngBytes(t, 4, 4), Options{Languages: []string{"ara", " eng "}}, nil); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if got := strings.Join(fr.calls[0], " "); !strings.Contains(got, "-l ara+eng") {
		t.Fatalf("args = %q", got)
	}
}

func TestTesseractRejectsBadInput(t *testing.T) {
	fr := &fakeRunner{}
	eng := NewTesseractEngine(Config{MaxPixels: 100, TempDir: t.TempDir()}, fr, nil)

	_, err := eng.Recognize(context.Background(), []byte("not an image"), Options{}, nil)
	if !errors.Is(err, common.ErrInvalidImage) {
		t.Fatalf("garbage: err = %v, want ErrInvalidImage", err)
	}
	_, err = eng.Recognize(context.Background(), nil, Options{}, nil)
	if !errors.Is(err, common.ErrInvalidImage) {
		t.Fatalf("empty: err = %v, want ErrInvalidImage", err)
	}
	_, err = eng.Recognize(context.Background(), pngBytes(t, 20, 20), Options{}, nil)
	if !errors.Is(err, common.ErrResourceExhausted) {
		t.Fatalf("large: err = %v, want ErrResourceExhausted", err)
	}
	if len(fr.calls) != 0 {
		t.Fatalf("engine should not run for rejected input, calls = %d", len(fr.calls))
	}
}

func TestClassifyTesseract(t *testing.T) {
	cases := []struct {
		err    error
		stderr string
		want   error
	}{
		{exec.ErrNotFound, "", common.ErrEngineInit},
		{errors.New("exit status 1"), "Error opening data file /usr/share/tessdata/heb.traineddata\nFailed loading language 'heb'", common.ErrEngineInit},
		{errors.New("exit status 1"), "std::bad_alloc", common.ErrResourceExhausted},
		{errors.New("exit status 1"), "Error in pixReadStream: Unknown format: no pix returned\nImage file /tmp/x cannot be read!", common.ErrInvalidImage},
	}
	for _, tc := range cases {
		got := classifyTesseract(tc.err, []byte(tc.stderr))
		if !errors.Is(got, tc.want) {
			t.Fatalf("classify(%v, %q) = %v, want %v", tc.err, tc.stderr, got, tc.want)
		}
		if !errors.Is(got, common.ErrOCREngineFailure) {
			t.Fatalf("classify result %v should wrap ErrOCREngineFailure", got)
		}
	}
	generic := classifyTesseract(errors.New("exit status 2"), []byte("weird"))
	if errors.Is(generic, common.ErrInvalidImage) || !errors.Is(generic, common.ErrOCREngineFailure) {
		t.Fatalf("generic = %v", generic)
	}
}

func TestLanguageArg(t *testing.T) {
	if got := LanguageArg([]string{"heb", "", " eng"}); got != "heb+eng" {
		t.Fatalf("LanguageArg = %q", got)
	}
}
