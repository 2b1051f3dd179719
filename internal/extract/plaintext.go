package extract

import (
	"bytes"
	"context"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

var (
	bomUTF8    = []byte{0xef, 0xbb, 0xbf}
	bomUTF16LE = []byte{0xff, 0xfe}
	bomUTF16BE = []byte{0xfe, 0xff}
)

// PlainTextExtractor decodes text files. Input that is neither valid UTF-8 nor marked
// with a BOM is read as windows-1255, the usual legacy encoding for Hebrew text.
type PlainTextExtractor struct {
	cfg Config
}

func NewPlainTextExtractor(cfg Config) *PlainTextExtractor {
	return &PlainTextExtractor{cfg: cfg.withDefaults()}
}

func (x *PlainTextExtractor) Extract(_ context.Context, in Input, rep progress.Reporter) (*Output, error) {
	rep = progress.OrNop(rep)
	rep.Report(10, "reading text")
	data, err := readAll(in.File, x.cfg.MaxFileBytes)
	if err != nil {
		return nil, err
	}
	text, enc, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s as %s: %v", common.ErrCorruptContainer, in.File.Name(), enc, err)
	}
	rep.Report(90, "text decoded")
	return &Output{
		Text:       text,
		Method:     constants.MethodPlainText,
		Confidence: ConfidenceLossless,
		Metadata: map[string]any{
			"encoding": enc,
			"bytes":    len(data),
		},
	}, nil
}

func decodeText(data []byte) (string, string, error) {
	var (
		dec  encoding.Encoding
		name string
	)
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):]), "utf-8", nil
	case bytes.HasPrefix(data, bomUTF16LE):
		dec, name = xunicode.UTF16(xunicode.LittleEndian, xunicode.ExpectBOM), "utf-16le"
	case bytes.HasPrefix(data, bomUTF16BE):
		dec, name = xunicode.UTF16(xunicode.BigEndian, xunicode.ExpectBOM), "utf-16be"
	case utf8.Valid(data):
		return string(data), "utf-8", nil
	default:
		dec, name = charmap.Windows1255, "windows-1255"
	}
	out, err := dec.NewDecoder().Bytes(data)
	if err != nil {
		return "", name, err
	}
	return string(out), name, nil
}
