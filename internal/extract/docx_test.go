package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/ocr"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
	"github.com/joseph-ayodele/doc-extractor/internal/textproc"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
 xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"
 xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>
<w:p><w:r><w:t>12345</w:t></w:r></w:p>
<w:p><w:r><w:t>x</w:t></w:r></w:p>
<w:p><w:r><w:t>http://schemas.openxmlformats.org/drawingml/2006/main</w:t></w:r></w:p>
<w:p><w:r><w:instrText>PAGE \* MERGEFORMAT</w:instrText></w:r></w:p>
<w:p><w:r><w:t>Second</w:t></w:r><w:r><w:tab/><w:t>paragraph</w:t></w:r><w:r><w:drawing><a:blip r:embed="rId5"/></w:drawing></w:r></w:p>
</w:body>
</w:document>`

const docxRels = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
<Relationship Id="rId9" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com" TargetMode="External"/>
</Relationships>`

func docxFile(t *testing.T) File {
	return NewBytesFile("sample.docx", zipBytes(t, map[string]string{
		"[Content_Types].xml":          `<Types/>`,
		"word/document.xml":            docxBody,
		"word/_rels/document.xml.rels": docxRels,
		"word/media/image1.png":        tinyPNG(t),
	}))
}

func TestDocumentExtractor(t *testing.T) {
	eng := &fakeEngine{recognize: func([]byte) (*ocr.Result, error) {
		return &ocr.Result{Text: "Receipt total", Confidence: 0.7}, nil
	}}
	x := NewDocumentExtractor(Config{}, eng, nil)

	var rec progress.Recorder
	out, err := x.Extract(context.Background(), Input{File: docxFile(t), Format: constants.FormatDocument}, &rec)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "Hello world\nSecond\tparagraph\n\n[Images in this document contain:]\nReceipt total"
	if out.Text != want {
		t.Fatalf("Text = %q, want %q", out.Text, want)
	}
	if out.Method != constants.MethodDocumentXMLOCR {
		t.Fatalf("Method = %q", out.Method)
	}
	if out.Confidence <= 0.7 || out.Confidence >= ConfidenceStructured {
		t.Fatalf("Confidence = %v, want a blend of 0.7 and %v", out.Confidence, ConfidenceStructured)
	}
	if eng.Calls() != 1 {
		t.Fatalf("engine calls = %d, want 1", eng.Calls())
	}
	if out.Metadata["imagesProcessed"] != 1 || out.Metadata["paragraphCount"] != 2 {
		t.Fatalf("Metadata = %v", out.Metadata)
	}
	assertMonotonic(t, &rec)
}

func TestDocumentExtractorFiltersLeaves(t *testing.T) {
	x := NewDocumentExtractor(Config{}, nil, nil)
	out, err := x.Extract(context.Background(), Input{File: docxFile(t), Options: Options{DisableOCR: true}}, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, bad := range []string{"schemas.openxmlformats.org", "12345", "MERGEFORMAT"} {
		if strings.Contains(out.Text, bad) {
			t.Fatalf("Text %q contains %q", out.Text, bad)
		}
	}
	for _, line := range strings.Split(out.Text, "\n") {
		if len([]rune(strings.TrimSpace(line))) == 1 {
			t.Fatalf("single-rune paragraph kept: %q", out.Text)
		}
	}
	if out.Method != constants.MethodDocumentXML || out.Confidence != ConfidenceStructured {
		t.Fatalf("Method = %q, Confidence = %v", out.Method, out.Confidence)
	}
	if out.Metadata["imagesSkipped"] != 1 {
		t.Fatalf("Metadata = %v", out.Metadata)
	}
}

func TestDocumentExtractorImageErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"invalid image is skipped", common.ErrInvalidImage, nil},
		{"engine failure propagates", common.ErrEngineInit, common.ErrOCREngineFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng := &fakeEngine{recognize: func([]byte) (*ocr.Result, error) { return nil, tc.err }}
			out, err := NewDocumentExtractor(Config{}, eng, nil).Extract(context.Background(), Input{File: docxFile(t)}, nil)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if out.Method != constants.MethodDocumentXML || out.Metadata["imagesSkipped"] != 1 {
				t.Fatalf("Method = %q, Metadata = %v", out.Method, out.Metadata)
			}
		})
	}
}

func TestDocumentExtractorFallbacks(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{
			name: "not a zip",
			data: []byte("PK\x03\x04\x00\x01 garbage Hello readable text here\x00\x02"),
			want: "Hello readable text here",
		},
		{
			name: "malformed xml",
			data: zipBytes(t, map[string]string{
				"word/document.xml": `<w:document><w:body><w:p><w:t> Broken paragraph text </w:p></w:body></w:document>`,
			}),
			want: "Broken paragraph text",
		},
		{
			name: "missing document part",
			data: zipBytes(t, map[string]string{"word/styles.xml": `<w:styles/> Leftover style names here`}),
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := NewDocumentExtractor(Config{}, nil, nil).Extract(context.Background(),
				Input{File: NewBytesFile("broken.docx", tc.data), Format: constants.FormatDocument}, nil)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if out.Method != constants.MethodContainerScan || out.Confidence != ConfidenceByteScan {
				t.Fatalf("Method = %q, Confidence = %v", out.Method, out.Confidence)
			}
			if out.Metadata["fallback"] != "byte-scan" {
				t.Fatalf("Metadata = %v", out.Metadata)
			}
			if !strings.Contains(out.Text, tc.want) {
				t.Fatalf("Text = %q, want it to contain %q", out.Text, tc.want)
			}
		})
	}
}

func TestDocumentExtractorFiltersDisguisedNamespaces(t *testing.T) {
	body := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>see ｈｔｔｐ：／／schemas.openxmlformats.org／x here</w:t></w:r></w:p>
<w:p><w:r><w:t>split http:&#x200B;//schemas.microsoft.com/office too</w:t></w:r></w:p>
<w:p><w:r><w:t>ocr http://schemas.micr0soft.com/office end</w:t></w:r></w:p>
<w:p><w:r><w:t>ｈｔｔｐ：／／www.w3.org／1999</w:t></w:r></w:p>
</w:body></w:document>`
	f := NewBytesFile("disguised.docx", zipBytes(t, map[string]string{"word/document.xml": body}))
	out, err := NewDocumentExtractor(Config{}, nil, nil).Extract(context.Background(), Input{File: f, Format: constants.FormatDocument}, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	final := textproc.PostProcess(out.Text)
	for _, p := range namespacePrefixes {
		if strings.Contains(strings.ToLower(final), p) {
			t.Fatalf("post-processed text %q contains %q", final, p)
		}
	}
	want := "see here\nsplit too\nocr end"
	if final != want {
		t.Fatalf("text = %q, want %q", final, want)
	}
}

func TestScrubNamespacesKeepsCells(t *testing.T) {
	in := "Name\tｈｔｔｐ：／／purl.org／dc\tCity\nNew York\tBoston"
	if got, want := scrubNamespaces(in), "Name\t\tCity\nNew York\tBoston"; got != want {
		t.Fatalf("scrubNamespaces = %q, want %q", got, want)
	}
	if got := scrubNamespaces("a\tb"); got != "a\tb" {
		t.Fatalf("clean text changed: %q", got)
	}
}
