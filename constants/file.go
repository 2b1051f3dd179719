package constants

import (
	"mime"
	"strings"
)

// Format is the closed set of file families the extractor understands.
// The zero value is FormatUnsupported.
type Format int

const (
	FormatUnsupported Format = iota
	FormatPlainText
	FormatSpreadsheet
	FormatDocument
	FormatLegacyDocument
	FormatSlideDeck
	FormatLegacySlideDeck
	FormatLegacySpreadsheet
	FormatPDF
	FormatImage
)

var formatNames = map[Format]string{
	FormatUnsupported:       "UNSUPPORTED",
	FormatPlainText:         "TEXT",
	FormatSpreadsheet:       "SPREADSHEET",
	FormatDocument:          "DOCUMENT",
	FormatLegacyDocument:    "LEGACY_DOCUMENT",
	FormatSlideDeck:         "SLIDE_DECK",
	FormatLegacySlideDeck:   "LEGACY_SLIDE_DECK",
	FormatLegacySpreadsheet: "LEGACY_SPREADSHEET",
	FormatPDF:               "PDF",
	FormatImage:             "IMAGE",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return formatNames[FormatUnsupported]
}

// Supported reports whether f has an extractor.
func (f Format) Supported() bool {
	_, known := formatNames[f]
	return known && f != FormatUnsupported
}

// mimeFormats maps normalized media types to formats.
var mimeFormats = map[string]Format{
	"text/plain":                FormatPlainText,
	"text/csv":                  FormatPlainText,
	"text/markdown":             FormatPlainText,
	"text/tab-separated-values": FormatPlainText,

	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": FormatSpreadsheet,
	"application/vnd.ms-excel.sheet.macroenabled.12":                   FormatSpreadsheet,
	"application/vnd.ms-excel":                                          FormatLegacySpreadsheet,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDocument,
	"application/vnd.ms-word.document.macroenabled.12":                        FormatDocument,
	"application/msword":                                                      FormatLegacyDocument,

	"application/vnd.openxmlformats-officedocument.presentationml.presentation": FormatSlideDeck,
	"application/vnd.ms-powerpoint.presentation.macroenabled.12":                FormatSlideDeck,
	"application/vnd.ms-powerpoint":                                             FormatLegacySlideDeck,

	"application/pdf": FormatPDF,

	"image/png":  FormatImage,
	"image/jpeg": FormatImage,
	"image/jpg":  FormatImage,
	"image/gif":  FormatImage,
	"image/bmp":  FormatImage,
	"image/tiff": FormatImage,
	"image/webp": FormatImage,
	"image/heic": FormatImage,
	"image/heif": FormatImage,
}

// NormalizeMIME lowercases a media type and drops its parameters.
func NormalizeMIME(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// FormatFromMIME maps a declared media type to a Format.
func FormatFromMIME(mimeType string) Format {
	if f, ok := mimeFormats[NormalizeMIME(mimeType)]; ok {
		return f
	}
	return FormatUnsupported
}

// FormatFromExt maps a file extension (with or without the dot) to a Format.
func FormatFromExt(ext string) Format {
	return FormatFromMIME(MIMEFromExt(ext))
}

// MIMEFromExt returns the canonical media type for an extension, or "".
func MIMEFromExt(ext string) string {
	return extMIME[NormalizeExt(ext)]
}

var extMIME = map[string]string{
	"txt":  "text/plain",
	"csv":  "text/csv",
	"md":   "text/markdown",
	"tsv":  "text/tab-separated-values",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xlsm": "application/vnd.ms-excel.sheet.macroenabled.12",
	"xls":  "application/vnd.ms-excel",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"docm": "application/vnd.ms-word.document.macroenabled.12",
	"doc":  "application/msword",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"pptm": "application/vnd.ms-powerpoint.presentation.macroenabled.12",
	"ppt":  "application/vnd.ms-powerpoint",
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
	"heic": "image/heic",
	"heif": "image/heif",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
