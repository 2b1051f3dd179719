package extract

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	xunicode "golang.org/x/text/encoding/unicode"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

const minScanRun = 4

// scanText recovers readable runs (printable ASCII and Hebrew) from arbitrary bytes,
// dropping markup-looking and numeric-only tokens.
func scanText(data []byte) string {
	var (
		lines []string
		run   []rune
	)
	flush := func() {
		if len(run) >= minScanRun {
			if s := cleanRun(string(run)); s != "" {
				lines = append(lines, s)
			}
		}
		run = run[:0]
	}
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r == utf8.RuneError && size <= 1 {
			flush()
			continue
		}
		if isScanRune(r) {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()
	return strings.Join(lines, "\n")
}

func isScanRune(r rune) bool {
	return (r >= 0x20 && r <= 0x7e) || r == '\t' || (r >= 0x0590 && r <= 0x05ff)
}

// cleanRun keeps a run only if, without markup and numbers, it still reads as text.
func cleanRun(s string) string {
	var (
		kept           []string
		letters, total int
	)
	for _, tok := range strings.Fields(s) {
		if looksLikeMarkup(tok) || isNumericOnly(tok) {
			continue
		}
		kept = append(kept, tok)
		for _, r := range tok {
			total++
			if unicode.IsLetter(r) {
				letters++
			}
		}
	}
	if letters < 3 || float64(letters) < 0.6*float64(total) {
		return ""
	}
	return strings.Join(kept, " ")
}

func looksLikeMarkup(tok string) bool {
	switch {
	case strings.ContainsAny(tok, "<>{}\\"):
		return true
	case strings.Contains(tok, `="`), strings.Contains(tok, "='"):
		return true
	case strings.HasPrefix(tok, "xmlns"), containsNamespace(tok):
		return true
	}
	// prefixed element names such as w:rPr or a:t
	if i := strings.IndexByte(tok, ':'); i > 0 && i <= 3 && i < len(tok)-1 && !strings.Contains(tok, "/") {
		for _, r := range tok[:i] {
			if r > unicode.MaxASCII || !unicode.IsLetter(r) {
				return false
			}
		}
		return true
	}
	return false
}

// scanUTF16 scans data decoded as UTF-16LE, the storage of most legacy Word text.
func scanUTF16(data []byte) string {
	if len(data)%2 == 1 {
		data = data[:len(data)-1]
	}
	decoded, err := xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM).NewDecoder().Bytes(data)
	if err != nil {
		return ""
	}
	return scanText(decoded)
}

// bestScan runs the 8-bit and UTF-16 scans and keeps whichever recovered more letters.
func bestScan(data []byte) (text, encoding string) {
	narrow := scanText(data)
	wide := scanUTF16(data)
	if letterCount(wide) > letterCount(narrow) {
		return wide, "utf-16le"
	}
	return narrow, "8-bit"
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func fallbackOutput(text, encoding string, cause error) *Output {
	return &Output{
		Text:       scrubNamespaces(text),
		Method:     constants.MethodContainerScan,
		Confidence: ConfidenceByteScan,
		Metadata: map[string]any{
			"fallback":       "byte-scan",
			"fallbackReason": cause.Error(),
			"encoding":       encoding,
			"recommendation": "The file structure is damaged. Re-save it from its original application or export it to PDF for reliable extraction.",
		},
	}
}

// scanFallback replaces a failed structured read with a byte scan of the whole file.
func scanFallback(in Input, cause error, cfg Config, logger *slog.Logger, rep progress.Reporter) (*Output, error) {
	logger.Warn("structured extraction failed, falling back to byte scan",
		"file", in.File.Name(), "format", in.Format.String(), "error", cause)
	rep.Report(50, "container unreadable, scanning raw bytes")
	data, err := readAll(in.File, cfg.MaxFileBytes)
	if err != nil {
		return nil, err
	}
	text, enc := bestScan(data)
	return fallbackOutput(text, enc, cause), nil
}

// scanPartFallback scans one decompressed part whose XML did not parse.
func scanPartFallback(part []byte, cause error, logger *slog.Logger, rep progress.Reporter) (*Output, error) {
	logger.Warn("container part is malformed, falling back to byte scan", "error", cause)
	rep.Report(50, "document markup unreadable, scanning raw text")
	return fallbackOutput(scanText(part), "utf-8", cause), nil
}
