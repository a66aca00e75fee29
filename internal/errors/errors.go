package errors

import (
	"errors"
	"fmt"
)

// Exit codes for volsync
const (
	ExitSuccess            = 0
	ExitGeneralError       = 1
	ExitConfigParse        = 2
	ExitMissingUID         = 3
	ExitUnsupportedBackend = 4
	ExitProvision          = 5
	ExitTemplate           = 6
	ExitConfigError        = 7
)

// VolsyncError is the base error type for volsync
type VolsyncError struct {
	Code    int
	Message string
	Cause   error
}

func (e *VolsyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *VolsyncError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *VolsyncError) ExitCode() int {
	return e.Code
}

// Wrap wraps an existing error with a VolsyncError
func Wrap(code int, message string, cause error) *VolsyncError {
	return &VolsyncError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ConfigParseError returns an error for an unreadable or malformed input file
func ConfigParseError(path string, cause error) *VolsyncError {
	return Wrap(ExitConfigParse, fmt.Sprintf("failed to parse %s", path), cause)
}

// MissingUID returns the fatal error raised when a volume has no uid
func MissingUID(volume string, cause error) *VolsyncError {
	return Wrap(ExitMissingUID, fmt.Sprintf("unable to determine uid for volume %s from config file or SYNC_UID", volume), cause)
}

// UnsupportedBackend returns an error for an unknown sync backend
func UnsupportedBackend(cause error) *VolsyncError {
	return Wrap(ExitUnsupportedBackend, "cannot generate ignore string", cause)
}

// ProvisionFailed returns an error for a failed user or ownership operation
func ProvisionFailed(user string, cause error) *VolsyncError {
	return Wrap(ExitProvision, fmt.Sprintf("provisioning user %s failed", user), cause)
}

// TemplateError returns an error for supervisor template failures
func TemplateError(message string, cause error) *VolsyncError {
	return Wrap(ExitTemplate, message, cause)
}

// ConfigError returns an error for settings or environment issues
func ConfigError(message string, cause error) *VolsyncError {
	return Wrap(ExitConfigError, message, cause)
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var volsyncErr *VolsyncError
	if errors.As(err, &volsyncErr) {
		return volsyncErr.ExitCode()
	}
	return ExitGeneralError
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
