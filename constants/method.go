package constants

// Requested extraction methods accepted by CreateJob.
const (
	RequestAuto = "auto"
	RequestOCR  = "ocr"  // force OCR where the format allows it
	RequestText = "text" // never OCR page-oriented documents
)

// Method identifies the extractor strategy that produced a result.
const (
	MethodPlainText         = "plain-text"
	MethodSpreadsheet       = "spreadsheet-xml"
	MethodDocumentXML       = "docx-xml"
	MethodDocumentXMLOCR    = "docx-xml+ocr"
	MethodSlideDeckXML      = "pptx-xml"
	MethodSlideDeckXMLOCR   = "pptx-xml+ocr"
	MethodLegacyDocScan     = "legacy-doc-scan"
	MethodLegacyUnsupported = "legacy-unsupported"
	MethodContainerScan     = "container-byte-scan"
	MethodPDFText           = "pdf-text"
	MethodPDFOCR            = "pdf-ocr"
	MethodPDFTextOCR        = "pdf-text+ocr"
	MethodImageOCR          = "image-ocr"
)

// ValidRequestedMethod reports whether m is an accepted requested method.
func ValidRequestedMethod(m string) bool {
	switch m {
	case RequestAuto, RequestOCR, RequestText:
		return true
	}
	return false
}
