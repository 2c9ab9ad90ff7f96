// Package errors defines the platform's error taxonomy. Per-document and
// per-source failures (ErrParse, ErrProvider) are absorbed by the pipeline;
// per-run failures (ErrGeneration, ErrTimeout, ErrIncompleteResult) abort a
// single research run and are reported to the caller with their Kind.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConfig           = errors.New("invalid configuration")
	ErrParse            = errors.New("document could not be parsed")
	ErrProvider         = errors.New("provider request failed")
	ErrGeneration       = errors.New("generation call failed")
	ErrTimeout          = errors.New("research timed out")
	ErrIncompleteResult = errors.New("incomplete research result")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotInitialized   = errors.New("research service not initialized")
	ErrInternal         = errors.New("internal error")
)

// Kind names used in API responses and metrics labels.
const (
	KindConfig           = "ConfigError"
	KindParse            = "ParseError"
	KindProvider         = "ProviderError"
	KindGeneration       = "GenerationError"
	KindTimeout          = "TimeoutError"
	KindIncompleteResult = "IncompleteResultError"
	KindInvalidInput     = "InvalidInput"
	KindNotInitialized   = "NotInitialized"
	KindInternal         = "InternalError"
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// StageError records which pipeline stage produced a per-run failure.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AtStage wraps err with the stage it happened in. A nil err stays nil.
func AtStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// Stage returns the failing stage recorded on err, or "".
func Stage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Kind maps err onto its taxonomy name.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrGeneration):
		return KindGeneration
	case errors.Is(err, ErrIncompleteResult):
		return KindIncompleteResult
	case errors.Is(err, ErrConfig):
		return KindConfig
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrProvider):
		return KindProvider
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotInitialized):
		return KindNotInitialized
	default:
		return KindInternal
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrGeneration), errors.Is(err, ErrProvider):
		return http.StatusBadGateway
	case errors.Is(err, ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrIncompleteResult):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
