package model

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrPathViolation     ErrorCode = "PATH_VIOLATION"
	ErrInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrDirectoryNotEmpty ErrorCode = "DIRECTORY_NOT_EMPTY"
	ErrImmutable         ErrorCode = "IMMUTABLE"
	ErrAuthFailed        ErrorCode = "AUTH_FAILED"
	ErrAPI               ErrorCode = "API_ERROR"
	ErrExtraction        ErrorCode = "EXTRACTION_FAILED"
	ErrUnimplemented     ErrorCode = "UNIMPLEMENTED"
	ErrInternal          ErrorCode = "INTERNAL"
)

// CodedError is a stable error with a machine-readable code and a human
// message. HTTP and gRPC surfaces map the code to a transport status.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

func Errorf(code ErrorCode, format string, args ...any) *CodedError {
	return &CodedError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of err, or ErrInternal for errors without one.
func CodeOf(err error) ErrorCode {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ErrInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var coded *CodedError
	return errors.As(err, &coded) && coded.Code == code
}

func IsNotFound(err error) bool { return IsCode(err, ErrNotFound) }
