package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
)

func TestContentHash(t *testing.T) {
	got, err := ContentHash(NewBytesFile("abc.txt", []byte("abc")))
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	if want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"; got != want {
		t.Fatalf("ContentHash = %s, want %s", got, want)
	}
}

func TestOpenFileAndSpool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	if f.Size() != 4 || f.Name() != "in.pdf" {
		t.Fatalf("Size = %d, Name = %q", f.Size(), f.Name())
	}

	got, cleanup, err := spool(f, dir, "x-*")
	if err != nil || got != path {
		t.Fatalf("spool(OSFile) = %q, %v; want the original path", got, err)
	}
	cleanup()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cleanup removed the caller's file: %v", err)
	}

	got, cleanup, err = spool(NewBytesFile("mem.pdf", []byte("%PDF-mem")), dir, "x-*")
	if err != nil {
		t.Fatalf("spool(BytesFile): %v", err)
	}
	if data, _ := os.ReadFile(got); string(data) != "%PDF-mem" {
		t.Fatalf("spooled content = %q", data)
	}
	cleanup()
	if _, err := os.Stat(got); !os.IsNotExist(err) {
		t.Fatalf("spooled file still exists: %v", err)
	}

	if _, err := OpenFile(dir); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("OpenFile(dir) err = %v", err)
	}
}
