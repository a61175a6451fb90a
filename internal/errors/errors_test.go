package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestIsInput(t *testing.T) {
	inputs := []error{
		ErrMissingPrimaryKeyColumn,
		ErrInvalidWriteMode,
		ErrInvalidDateRange,
		ErrNoSymbols,
		NewMissingField("symbol"),
		NewInvalidValue("limit", "abc", "expected an integer"),
		fmt.Errorf("outer: %w", ErrInvalidRecord),
	}
	for _, err := range inputs {
		if !IsInput(err) {
			t.Errorf("IsInput(%v) = false", err)
		}
	}

	if IsInput(ErrStorageIO) || IsInput(ErrSourceUnavailable) || IsInput(nil) {
		t.Error("non-input errors classified as input")
	}
}

func TestCategoryHelpers(t *testing.T) {
	storage := NewStorage(fmt.Errorf("disk full"), "/lake/silver/data.parquet")
	if !IsStorage(storage) {
		t.Errorf("IsStorage(%v) = false", storage)
	}
	if !IsRetriable(storage) {
		t.Errorf("IsRetriable(%v) = false", storage)
	}

	unavailable := fmt.Errorf("%w: yfinance: timeout", ErrSourceUnavailable)
	if !IsSourceUnavailable(unavailable) || !IsRetriable(unavailable) {
		t.Errorf("source unavailable misclassified: %v", unavailable)
	}

	if IsRetriable(ErrNoSymbols) {
		t.Error("input error classified as retriable")
	}
}

func TestNewStorage(t *testing.T) {
	if NewStorage(nil, "/some/path") != nil {
		t.Error("NewStorage(nil) should be nil")
	}

	err := NewStorage(fmt.Errorf("permission denied"), "/lake/bronze")
	for _, want := range []string{"/lake/bronze", "permission denied"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	if v.HasErrors() {
		t.Error("fresh collector has errors")
	}
	if v.Err() != nil {
		t.Error("fresh collector yields non-nil error")
	}

	v.AddField("open", "must be positive")
	v.Add(fmt.Errorf("record 2: %w", ErrInvalidRecord))

	if !v.HasErrors() {
		t.Fatal("errors not recorded")
	}
	err := v.Err()
	if err == nil {
		t.Fatal("Err() = nil with recorded errors")
	}
	if !Is(err, ErrInvalidRecord) {
		t.Errorf("collection does not unwrap to the recorded sentinel: %v", err)
	}
	if !strings.Contains(err.Error(), "open") {
		t.Errorf("message %q missing field name", err)
	}
}
