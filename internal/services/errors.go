package services

import (
	"fmt"
)

// NotFoundError is returned when the requested resource does not exist.
type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// UnauthorizedError is returned for missing or invalid credentials.
type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

// ForbiddenError means the caller is authenticated but does not own the
// resource and holds no elevated role.
type ForbiddenError struct {
	Resource string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("access to %s denied", e.Resource)
}

// SubscriptionRequiredError means a processing trigger was refused because
// the account has no active subscription.
type SubscriptionRequiredError struct{}

func (e *SubscriptionRequiredError) Error() string {
	return "an active subscription is required for processing operations"
}

// ValidationError carries per-field messages for a rejected request body.
// The whole request is refused; nothing is partially applied.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// InvalidStateError means a trigger was fired from a lifecycle status it is
// not allowed from.
type InvalidStateError struct {
	Operation string
	Status    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s while video is %s", e.Operation, e.Status)
}

// ConflictError means the operation lost a race with a concurrent job on the
// same video. The client should refetch and retry if still relevant.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// InvalidLanguageError means the requested translation target is not in the
// supported set.
type InvalidLanguageError struct {
	Code string
}

func (e *InvalidLanguageError) Error() string {
	return fmt.Sprintf("unsupported target language %q", e.Code)
}

// TranslationAlignmentError means the model returned a different number of
// lines than it was given. The batch is discarded rather than misaligned.
type TranslationAlignmentError struct {
	Want int
	Got  int
}

func (e *TranslationAlignmentError) Error() string {
	return fmt.Sprintf("translation returned %d lines for %d segments", e.Got, e.Want)
}

// ExternalServiceError wraps a failure from a dependency outside our control
// (speech-to-text, translation model, ffmpeg, object storage).
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
