package grading

import (
	"errors"
	"fmt"
)

// ConfigurationError reports administrative misconfiguration of an exam.
// It is fatal for the exam: no results are produced until it is fixed.
type ConfigurationError struct {
	ExamID string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.ExamID == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("exam %s: invalid %s: %s", e.ExamID, e.Field, e.Reason)
}

func configError(examID, field, format string, args ...interface{}) error {
	return &ConfigurationError{ExamID: examID, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

var (
	// ErrUnknownSubject is returned for a mark whose subject is not configured on the exam.
	ErrUnknownSubject = errors.New("mark for unknown subject")
	// ErrDuplicateMark is returned when a student has two marks for one subject.
	ErrDuplicateMark = errors.New("duplicate subject mark")
)
