package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Extraction error taxonomy.
var (
	ErrUnsupportedFormat      = errors.New("unsupported format")
	ErrCorruptContainer       = errors.New("corrupt container")
	ErrOCREngineFailure       = errors.New("ocr engine failure")
	ErrDuplicateJobInProgress = errors.New("extraction job already in progress for subject")
	ErrJobNotPending          = errors.New("extraction job is not pending")
	ErrJobNotActive           = errors.New("extraction job is already finished")

	ErrInvalidImage      = fmt.Errorf("%w: invalid image", ErrOCREngineFailure)
	ErrResourceExhausted = fmt.Errorf("%w: resource exhausted", ErrOCREngineFailure)
	ErrEngineInit        = fmt.Errorf("%w: engine initialization failed", ErrOCREngineFailure)
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Classification is the user-facing explanation of a failed extraction.
type Classification struct {
	Code           string
	Message        string
	Recommendation string
}

// String renders the classification as a single job error message.
func (c Classification) String() string {
	if c.Recommendation == "" {
		return c.Message
	}
	return c.Message + " " + c.Recommendation
}

// Classify maps an extraction error onto a stable code and a message safe to show users.
func Classify(err error) Classification {
	switch {
	case err == nil:
		return Classification{}
	case errors.Is(err, ErrUnsupportedFormat):
		return Classification{
			Code:           "UNSUPPORTED_FORMAT",
			Message:        "This file type is not supported for text extraction.",
			Recommendation: "Upload a PDF, DOCX, PPTX, XLSX, plain text or image file.",
		}
	case errors.Is(err, ErrCorruptContainer):
		return Classification{
			Code:           "CORRUPT_CONTAINER",
			Message:        "The file appears to be damaged and could not be read.",
			Recommendation: "Re-export the file from its original application or convert it to PDF.",
		}
	case errors.Is(err, ErrInvalidImage):
		return Classification{
			Code:           "OCR_INVALID_IMAGE",
			Message:        "The image could not be decoded for text recognition.",
			Recommendation: "Save the image as PNG or JPEG and try again.",
		}
	case errors.Is(err, ErrResourceExhausted):
		return Classification{
			Code:           "OCR_RESOURCE_EXHAUSTED",
			Message:        "The image is too large to process for text recognition.",
			Recommendation: "Reduce the image resolution or split the document into smaller parts.",
		}
	case errors.Is(err, ErrEngineInit):
		return Classification{
			Code:    "OCR_ENGINE_UNAVAILABLE",
			Message: "The text recognition engine could not be started. Please try again later.",
		}
	case errors.Is(err, ErrOCREngineFailure):
		return Classification{
			Code:    "OCR_FAILED",
			Message: "Text recognition failed for this file.",
		}
	case errors.Is(err, ErrDuplicateJobInProgress):
		return Classification{
			Code:    "DUPLICATE_JOB",
			Message: "An extraction for this item is already in progress.",
		}
	}
	return Classification{
		Code:    "EXTRACTION_FAILED",
		Message: "Text extraction failed unexpectedly.",
	}
}

// UserMessage is the message stored on a FAILED job.
func UserMessage(err error) string {
	return Classify(err).String()
}

// ToGRPCStatus converts a service error into a gRPC status error.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation), errors.Is(err, ErrUnsupportedFormat):
		code = codes.InvalidArgument
	case errors.Is(err, ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, ErrDuplicateJobInProgress):
		code = codes.AlreadyExists
	case errors.Is(err, ErrJobNotPending), errors.Is(err, ErrJobNotActive), errors.Is(err, ErrCorruptContainer), errors.Is(err, ErrInvalidImage):
		code = codes.FailedPrecondition
	case errors.Is(err, ErrResourceExhausted):
		code = codes.ResourceExhausted
	case errors.Is(err, ErrEngineInit):
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	msg := err.Error()
	if c := Classify(err); code == codes.Internal || code == codes.FailedPrecondition {
		msg = c.String()
	}
	return status.Error(code, msg)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}
