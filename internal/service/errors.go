package service

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a check-in attempt was rejected. Every
// rejection surfaced to callers carries exactly one kind.
type FailureKind string

const (
	FailEmployeeNotFound       FailureKind = "employee_not_found"
	FailEmployeeInactive       FailureKind = "employee_inactive"
	FailAlreadyMarked          FailureKind = "already_marked"
	FailPhotoRequired          FailureKind = "photo_required"
	FailProfileImageMissing    FailureKind = "profile_image_missing"
	FailFaceMismatch           FailureKind = "face_mismatch"
	FailFaceRecognition        FailureKind = "face_recognition_failed"
	FailLocationRequired       FailureKind = "location_required"
	FailLocationTooFar         FailureKind = "location_too_far"
	FailLocationRequiredOffice FailureKind = "location_required_office"
	FailSecurityValidation     FailureKind = "security_validation_failed"
	FailRecordCreation         FailureKind = "record_creation_failed"
	FailSystem                 FailureKind = "system_error"
)

// PipelineError is the typed failure a check-in attempt terminates with.
// Kind identifies the rejection class, Message is safe to return to the
// caller, and Err (optional) preserves the underlying cause for logs.
type PipelineError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func failure(kind FailureKind, message string) *PipelineError {
	return &PipelineError{Kind: kind, Message: message}
}

func failureWrap(kind FailureKind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the failure kind from an error, defaulting to
// system_error for anything untyped.
func KindOf(err error) FailureKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return FailSystem
}
