package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "parse with path",
			err:  &ParseError{Format: "JSON", Path: "manifest.json", Message: "unexpected EOF"},
			want: "failed to parse JSON at manifest.json: unexpected EOF",
		},
		{
			name: "parse without path",
			err:  &ParseError{Format: "EAF", Message: "malformed tag"},
			want: "failed to parse EAF: malformed tag",
		},
		{
			name: "validation with field",
			err:  &ValidationError{Field: "tier", Message: "must not be empty"},
			want: "validation failed for tier: must not be empty",
		},
		{
			name: "validation without field",
			err:  &ValidationError{Message: "span end before start"},
			want: "validation failed: span end before start",
		},
		{
			name: "not found with id",
			err:  &NotFoundError{Resource: "annotation", ID: "a17"},
			want: "annotation not found: a17",
		},
		{
			name: "not found without id",
			err:  &NotFoundError{Resource: "revision"},
			want: "revision not found",
		},
		{
			name: "unsupported with reason",
			err:  &UnsupportedError{Feature: "csv import", Reason: "export only"},
			want: "unsupported csv import: export only",
		},
		{
			name: "unsupported without reason",
			err:  &UnsupportedError{Feature: "format"},
			want: "unsupported format",
		},
		{
			name: "io with path",
			err:  &IOError{Operation: "read", Path: "/data/doc.json", Err: fmt.Errorf("permission denied")},
			want: "failed to read /data/doc.json: permission denied",
		},
		{
			name: "io without path",
			err:  &IOError{Operation: "write", Err: fmt.Errorf("disk full")},
			want: "failed to write: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSentinelFallbacks(t *testing.T) {
	// Typed errors without an explicit cause unwrap to their sentinel so
	// callers can match with errors.Is alone.
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"parse", &ParseError{Format: "JSON", Message: "bad token"}, ErrInvalidInput},
		{"validation", &ValidationError{Field: "start", Message: "negative"}, ErrInvalidInput},
		{"not found", &NotFoundError{Resource: "document", ID: "elicit-04"}, ErrNotFound},
		{"unsupported", &UnsupportedError{Feature: "codec"}, ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.sentinel)
			}
		})
	}
}

func TestCausePreserved(t *testing.T) {
	// When a cause is attached it takes over the chain. The sentinel no
	// longer matches; the cause does.
	cause := fmt.Errorf("json: unexpected token")

	tests := []struct {
		name string
		err  error
	}{
		{"parse", &ParseError{Format: "JSON", Path: "tiers.json", Message: "invalid syntax", Err: cause}},
		{"validation", &ValidationError{Field: "pattern", Message: "invalid regex", Err: cause}},
		{"not found", &NotFoundError{Resource: "blob", ID: "take1.wav", Err: cause}},
		{"unsupported", &UnsupportedError{Feature: "archive", Reason: "unknown magic", Err: cause}},
		{"io", &IOError{Operation: "open", Path: "session.tierbundle", Err: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, cause) {
				t.Errorf("errors.Is(%v, cause) = false, want true", tt.err)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	t.Run("NewParse", func(t *testing.T) {
		err := NewParse("CSV", "words.csv", "invalid syntax")
		if err.Format != "CSV" || err.Path != "words.csv" || err.Message != "invalid syntax" {
			t.Errorf("NewParse() = %+v, unexpected values", err)
		}
	})

	t.Run("NewValidation", func(t *testing.T) {
		err := NewValidation("label", "unknown label")
		if err.Field != "label" || err.Message != "unknown label" {
			t.Errorf("NewValidation() = %+v, unexpected values", err)
		}
	})

	t.Run("NewNotFound", func(t *testing.T) {
		err := NewNotFound("bundle", "session-42")
		if err.Resource != "bundle" || err.ID != "session-42" {
			t.Errorf("NewNotFound() = %+v, unexpected values", err)
		}
	})

	t.Run("NewUnsupported", func(t *testing.T) {
		err := NewUnsupported("compression format", "lz4 not available")
		if err.Feature != "compression format" || err.Reason != "lz4 not available" {
			t.Errorf("NewUnsupported() = %+v, unexpected values", err)
		}
	})

	t.Run("NewIO", func(t *testing.T) {
		cause := fmt.Errorf("disk full")
		err := NewIO("write", "/tmp/out.eaf", cause)
		if err.Operation != "write" || err.Path != "/tmp/out.eaf" || err.Err != cause {
			t.Errorf("NewIO() = %+v, unexpected values", err)
		}
	})
}

func TestWrap(t *testing.T) {
	t.Run("prefixes and preserves chain", func(t *testing.T) {
		inner := NewNotFound("document", "field-notes")
		wrapped := Wrap(inner, "failed to load revision")
		if wrapped == nil {
			t.Fatal("Wrap() returned nil")
		}
		want := "failed to load revision: document not found: field-notes"
		if wrapped.Error() != want {
			t.Errorf("Wrap() = %q, want %q", wrapped.Error(), want)
		}
		if !errors.Is(wrapped, ErrNotFound) {
			t.Error("Wrap() broke the chain to ErrNotFound")
		}
		var nf *NotFoundError
		if !errors.As(wrapped, &nf) || nf.ID != "field-notes" {
			t.Errorf("Wrap() lost the NotFoundError, got %v", nf)
		}
	})

	t.Run("nil stays nil", func(t *testing.T) {
		if got := Wrap(nil, "context"); got != nil {
			t.Errorf("Wrap(nil) = %v, want nil", got)
		}
	})
}

func TestIs(t *testing.T) {
	err := &ValidationError{Field: "end", Message: "before start"}
	if !Is(err, ErrInvalidInput) {
		t.Error("Is() failed to match ValidationError to ErrInvalidInput")
	}
	if Is(err, ErrNotFound) {
		t.Error("Is() matched ValidationError to ErrNotFound")
	}
}

func TestAs(t *testing.T) {
	var err error = &ParseError{Format: "EAF", Path: "take.eaf", Message: "bad time slot ref"}
	var pe *ParseError
	if !As(err, &pe) {
		t.Fatal("As() failed to match ParseError")
	}
	if pe.Path != "take.eaf" {
		t.Errorf("As() pe.Path = %q, want %q", pe.Path, "take.eaf")
	}
}
