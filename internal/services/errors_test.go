package services_test

import (
	"errors"
	"strings"
	"testing"

	"fieldbook/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternal, "identify", "request", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"identify", "request", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "store", "append", "write failed", errors.New("io"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestRetryableClassification(t *testing.T) {
	if !services.Retryable(services.Wrap(services.ErrTransient, "store", "upsert", "locked", nil)) {
		t.Fatal("transient errors should be retryable")
	}
	if !services.Retryable(services.Wrap(services.ErrExternal, "identify", "request", "timeout", nil)) {
		t.Fatal("external errors should be retryable")
	}
	if services.Retryable(services.Wrap(services.ErrValidation, "importer", "parse", "bad row", nil)) {
		t.Fatal("validation errors should not be retryable")
	}
	if services.Retryable(nil) {
		t.Fatal("nil error should not be retryable")
	}
}
