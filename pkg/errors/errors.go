package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrInvariant      = errors.New("invariant violation")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrIO             = errors.New("i/o failure")
	ErrSink           = errors.New("sink failure")
)

// Process exit codes returned by ExitCode.
const (
	ExitOK        = 0
	ExitUsage     = 1
	ExitInvariant = 2
	ExitIO        = 3
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// Malformed reports a corpus token that could not be split into word and tag.
func Malformed(path string, line int, token string) *AppError {
	return Newf(ErrMalformedToken, ExitUsage, "%s:%d: no separator in token %q", path, line, token)
}

func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrMalformedToken), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidConfig):
		return ExitUsage
	case errors.Is(err, ErrInvariant):
		return ExitInvariant
	default:
		return ExitIO
	}
}
