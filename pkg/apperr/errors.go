package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeInternal            ErrorCode = "INTERNAL"
	CodeInvalidArgument     ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeUploadTooLarge      ErrorCode = "UPLOAD_TOO_LARGE"
	CodeUnsupportedFormat   ErrorCode = "UNSUPPORTED_FORMAT"
	CodeEmptyAudio          ErrorCode = "EMPTY_AUDIO"
	CodeSegmentationFailed  ErrorCode = "SEGMENTATION_FAILED"
	CodeTranscriptionFailed ErrorCode = "TRANSCRIPTION_FAILED"
	CodeSummaryFailed       ErrorCode = "SUMMARY_FAILED"
	CodeQueueUnavailable    ErrorCode = "QUEUE_UNAVAILABLE"
)

// AppError carries an HTTP status and a stable code alongside the cause.
type AppError struct {
	Raw      error
	HTTPCode int
	Code     ErrorCode
	Message  string
	Details  map[string]string
}

func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e AppError) Unwrap() error { return e.Raw }

// WithDetail returns a copy of e with key set in Details.
func (e AppError) WithDetail(key, value string) AppError {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// Info is the text shown to the user: the cause when there is one, otherwise the message.
func (e AppError) Info() string {
	if e.Raw != nil {
		return e.Raw.Error()
	}
	return e.Message
}

// From returns err as an AppError, wrapping unknown errors as internal.
func From(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal(err)
}

func ErrInternal(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     CodeInternal,
		Message:  "Internal server error",
	}
}

func ErrInvalidArgument(message string) AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     CodeInvalidArgument,
		Message:  message,
	}
}

func ErrNotFound(resource, id string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("%s not found", resource),
	}.WithDetail("id", id)
}

func ErrUploadTooLarge(limitMB int64) AppError {
	return AppError{
		HTTPCode: http.StatusRequestEntityTooLarge,
		Code:     CodeUploadTooLarge,
		Message:  fmt.Sprintf("upload exceeds %dMB", limitMB),
	}
}

func ErrUnsupportedFormat(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusBadRequest,
		Code:     CodeUnsupportedFormat,
		Message:  "Unsupported audio format",
	}
}

func ErrEmptyAudio(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusBadRequest,
		Code:     CodeEmptyAudio,
		Message:  "Audio file is empty",
	}
}

func ErrSegmentationFailed(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     CodeSegmentationFailed,
		Message:  "Failed to split audio",
	}
}

func ErrTranscriptionFailed(chunk int, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusBadGateway,
		Code:     CodeTranscriptionFailed,
		Message:  "Audio transcription failed",
	}.WithDetail("chunk", fmt.Sprintf("%d", chunk))
}

func ErrSummaryFailed(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusBadGateway,
		Code:     CodeSummaryFailed,
		Message:  "Failed to generate summary",
	}
}

func ErrQueueUnavailable(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusServiceUnavailable,
		Code:     CodeQueueUnavailable,
		Message:  "Processing queue unavailable",
	}
}
