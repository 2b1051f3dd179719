package extract

import (
	"context"
	"testing"

	"github.com/joseph-ayodele/doc-extractor/constants"
)

func TestPlainTextExtractor(t *testing.T) {
	cases := []struct {
		name     string
		data     []byte
		want     string
		encoding string
	}{
		{"ascii", []byte("Hello"), "Hello", "utf-8"},
		{"utf-8 bom", append([]byte{0xef, 0xbb, 0xbf}, "שלום"...), "שלום", "utf-8"},
		{"utf-16le bom", []byte{0xff, 0xfe, 'H', 0, 'i', 0}, "Hi", "utf-16le"},
		{"utf-16be bom", []byte{0xfe, 0xff, 0, 'H', 0, 'i'}, "Hi", "utf-16be"},
		{"windows-1255", []byte{0xf9, 0xec, 0xe5, 0xed}, "שלום", "windows-1255"},
		{"empty", nil, "", "utf-8"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := NewPlainTextExtractor(Config{}).Extract(context.Background(),
				Input{File: NewBytesFile("a.txt", tc.data), Format: constants.FormatPlainText}, nil)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if out.Text != tc.want || out.Metadata["encoding"] != tc.encoding {
				t.Fatalf("Text = %q (%v), want %q (%s)", out.Text, out.Metadata["encoding"], tc.want, tc.encoding)
			}
			if out.Method != constants.MethodPlainText || out.Confidence != 1.0 {
				t.Fatalf("Method = %q, Confidence = %v", out.Method, out.Confidence)
			}
		})
	}
}

func TestPlainTextExtractorSizeLimit(t *testing.T) {
	_, err := NewPlainTextExtractor(Config{MaxFileBytes: 4}).Extract(context.Background(),
		Input{File: NewBytesFile("a.txt", []byte("too long"))}, nil)
	if err == nil {
		t.Fatal("expected an error for a file above the size limit")
	}
}
