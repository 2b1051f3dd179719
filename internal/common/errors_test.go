package common

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestOCRErrorsWrapEngineFailure(t *testing.T) {
	for _, err := range []error{ErrInvalidImage, ErrResourceExhausted, ErrEngineInit} {
		wrapped := fmt.Errorf("page 2: %w", err)
		if !errors.Is(wrapped, ErrOCREngineFailure) {
			t.Fatalf("errors.Is(%v, ErrOCREngineFailure) = false, want true", wrapped)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("x: %w", ErrUnsupportedFormat), "UNSUPPORTED_FORMAT"},
		{fmt.Errorf("x: %w", ErrCorruptContainer), "CORRUPT_CONTAINER"},
		{fmt.Errorf("x: %w", ErrInvalidImage), "OCR_INVALID_IMAGE"},
		{fmt.Errorf("x: %w", ErrResourceExhausted), "OCR_RESOURCE_EXHAUSTED"},
		{fmt.Errorf("x: %w", ErrEngineInit), "OCR_ENGINE_UNAVAILABLE"},
		{fmt.Errorf("x: %w", ErrOCREngineFailure), "OCR_FAILED"},
		{errors.New("boom"), "EXTRACTION_FAILED"},
	}
	for _, tc := range cases {
		got := Classify(tc.err)
		if got.Code != tc.code {
			t.Fatalf("Classify(%v).Code = %q, want %q", tc.err, got.Code, tc.code)
		}
		if got.Message == "" {
			t.Fatalf("Classify(%v).Message is empty", tc.err)
		}
	}
	if c := Classify(nil); c.Code != "" {
		t.Fatalf("Classify(nil).Code = %q, want empty", c.Code)
	}
}

func TestToGRPCStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{ErrDuplicateJobInProgress, codes.AlreadyExists},
		{fmt.Errorf("job: %w", ErrNotFound), codes.NotFound},
		{ErrUnsupportedFormat, codes.InvalidArgument},
		{ErrResourceExhausted, codes.ResourceExhausted},
		{ErrEngineInit, codes.Unavailable},
		{ErrJobNotPending, codes.FailedPrecondition},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		st, _ := status.FromError(ToGRPCStatus(tc.err))
		if st.Code() != tc.code {
			t.Fatalf("ToGRPCStatus(%v) code = %v, want %v", tc.err, st.Code(), tc.code)
		}
	}
	if ToGRPCStatus(nil) != nil {
		t.Fatalf("ToGRPCStatus(nil) != nil")
	}
	already := status.Error(codes.Aborted, "x")
	if got := ToGRPCStatus(already); got != already {
		t.Fatalf("ToGRPCStatus should pass status errors through")
	}
}
