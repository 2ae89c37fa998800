package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExternal marks failures of an external collaborator (identifier
	// service, metadata extractor, ntfy).
	ErrExternal = errors.New("external service error")
	// ErrValidation marks malformed or rejected input.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a lookup miss that the caller should have prevented.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks failures worth retrying as-is, persistence included.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the failure is safe to retry verbatim. The CLI
// uses this to tell the user to rerun the failed step rather than start over.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrExternal)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
