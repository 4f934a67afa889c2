package core

import (
	"errors"
	"fmt"
	"net/http"
)

// FailureKind classifies a Failure for logging, metrics and retry decisions.
type FailureKind string

const (
	// KindMapping covers missing converters, registry misses and conversion errors.
	KindMapping FailureKind = "mapping"

	// KindDomain covers business-rule rejections raised by handlers.
	KindDomain FailureKind = "domain"

	// KindBackend covers non-success answers from an external service.
	KindBackend FailureKind = "backend"

	// KindTransport covers I/O failures before a backend response was obtained.
	KindTransport FailureKind = "transport"

	// KindValidation covers rejected client input.
	KindValidation FailureKind = "validation"
)

// Failure is the closed set of expected pipeline failures. Only the variants
// declared in this package implement it.
type Failure interface {
	error

	// Kind returns the failure classification.
	Kind() FailureKind

	failure()
}

// MappingFailure reports that no converter (or operation, or backend caller)
// was registered for a request, or that a conversion raised an internal error.
type MappingFailure struct {
	Message string
	// Source is the value that could not be mapped, if any.
	Source any
}

// DomainFailure reports a business-rule rejection.
type DomainFailure struct {
	Code    string
	Message string
}

// BackendFailure reports a non-success response from an external service.
type BackendFailure struct {
	StatusCode int
	Message    string
	Body       string
}

// TransportFailure reports an I/O failure before a backend response was obtained.
type TransportFailure struct {
	Message string
	Cause   error
}

// ValidationFailure reports a rejected client input field.
type ValidationFailure struct {
	Field   string
	Message string
}

func (MappingFailure) failure()    {}
func (DomainFailure) failure()     {}
func (BackendFailure) failure()    {}
func (TransportFailure) failure()  {}
func (ValidationFailure) failure() {}

// Kind implements Failure.
func (MappingFailure) Kind() FailureKind { return KindMapping }

// Kind implements Failure.
func (DomainFailure) Kind() FailureKind { return KindDomain }

// Kind implements Failure.
func (BackendFailure) Kind() FailureKind { return KindBackend }

// Kind implements Failure.
func (TransportFailure) Kind() FailureKind { return KindTransport }

// Kind implements Failure.
func (ValidationFailure) Kind() FailureKind { return KindValidation }

// Error implements the error interface.
func (f MappingFailure) Error() string {
	return fmt.Sprintf("[%s] %s", KindMapping, f.Message)
}

// Error implements the error interface.
func (f DomainFailure) Error() string {
	if f.Code == "" {
		return fmt.Sprintf("[%s] %s", KindDomain, f.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", KindDomain, f.Code, f.Message)
}

// Error implements the error interface.
func (f BackendFailure) Error() string {
	if f.Body == "" {
		return fmt.Sprintf("[%s] status %d: %s", KindBackend, f.StatusCode, f.Message)
	}
	return fmt.Sprintf("[%s] status %d: %s (body=%s)", KindBackend, f.StatusCode, f.Message, f.Body)
}

// Error implements the error interface.
func (f TransportFailure) Error() string {
	if f.Cause == nil {
		return fmt.Sprintf("[%s] %s", KindTransport, f.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", KindTransport, f.Message, f.Cause)
}

// Unwrap returns the underlying I/O error for error chain inspection.
func (f TransportFailure) Unwrap() error {
	return f.Cause
}

// Error implements the error interface.
func (f ValidationFailure) Error() string {
	return fmt.Sprintf("[%s] %s: %s", KindValidation, f.Field, f.Message)
}

// KindOf returns the classification of the first Failure in err's chain.
func KindOf(err error) (FailureKind, bool) {
	var f Failure
	if errors.As(err, &f) {
		return f.Kind(), true
	}
	return "", false
}

// IsMapping returns true if err is a MappingFailure.
func IsMapping(err error) bool {
	return isKind(err, KindMapping)
}

// IsDomain returns true if err is a DomainFailure.
func IsDomain(err error) bool {
	return isKind(err, KindDomain)
}

// IsBackend returns true if err is a BackendFailure.
func IsBackend(err error) bool {
	return isKind(err, KindBackend)
}

// IsTransport returns true if err is a TransportFailure.
func IsTransport(err error) bool {
	return isKind(err, KindTransport)
}

// IsValidation returns true if err is a ValidationFailure.
func IsValidation(err error) bool {
	return isKind(err, KindValidation)
}

// IsRetryable returns true if a collaborator could reasonably retry the call:
// transport failures, throttling and server-side backend errors.
// The pipeline itself never retries.
func IsRetryable(err error) bool {
	var bf BackendFailure
	if errors.As(err, &bf) {
		return bf.StatusCode == http.StatusTooManyRequests || bf.StatusCode >= http.StatusInternalServerError
	}
	return IsTransport(err)
}

func isKind(err error, kind FailureKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Common domain failure codes.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeConflict         = "CONFLICT"
	CodePolicyDenied     = "POLICY_DENIED"
	CodeInternal         = "INTERNAL_ERROR"
)
