package apperrors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestUserMessageIsStable(t *testing.T) {
	// The user-facing message depends only on the kind, never on the
	// wrapped cause or internal message.
	a := NewParseError("tag dictionary truncated at offset 132", nil)
	b := NewParseError("element length 1048576 exceeds buffer", errors.New("short read"))
	if a.UserMessage() != b.UserMessage() {
		t.Errorf("same kind produced different user messages: %q vs %q", a.UserMessage(), b.UserMessage())
	}
	if strings.Contains(a.UserMessage(), "offset") {
		t.Error("user message leaks internal detail")
	}
}

func TestUserMessagePerKind(t *testing.T) {
	cases := []struct {
		err  *Error
		kind Kind
	}{
		{NewParseError("m", nil), KindParse},
		{NewPixelDataError("m", nil), KindPixelData},
		{NewConversionError("m", nil), KindConversion},
		{NewStorageError("m", nil), KindStorage},
		{NewNetworkError("m", nil), KindNetwork},
		{NewValidationError("m", nil), KindValidation},
		{NewUnsupportedFormatError("m", nil), KindUnsupportedFormat},
	}
	seen := make(map[string]Kind)
	for _, tc := range cases {
		if tc.err.Kind != tc.kind {
			t.Errorf("constructor produced kind %s, want %s", tc.err.Kind, tc.kind)
		}
		msg := tc.err.UserMessage()
		if msg == "" {
			t.Errorf("kind %s has no user message", tc.kind)
		}
		if prev, dup := seen[msg]; dup {
			t.Errorf("kinds %s and %s share user message %q", prev, tc.kind, msg)
		}
		seen[msg] = tc.kind
		if len(tc.err.Suggestions) == 0 {
			t.Errorf("kind %s carries no suggestions", tc.kind)
		}
	}
}

func TestUnknownKindFallbackMessage(t *testing.T) {
	e := &Error{Kind: Kind("mystery")}
	if e.UserMessage() == "" {
		t.Error("unknown kind should still produce a message")
	}
}

func TestRecoverableFlags(t *testing.T) {
	if !NewStorageError("m", nil).Recoverable {
		t.Error("storage errors should be recoverable")
	}
	if !NewNetworkError("m", nil).Recoverable {
		t.Error("network errors should be recoverable")
	}
	if NewValidationError("m", nil).Recoverable {
		t.Error("validation errors should not be recoverable")
	}
}

func TestUnwrapAndErrorsAs(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := fmt.Errorf("upload original: %w", NewNetworkError("archive unreachable", cause))

	var pipeErr *Error
	if !errors.As(wrapped, &pipeErr) {
		t.Fatal("errors.As should find the pipeline error through wrapping")
	}
	if pipeErr.Kind != KindNetwork {
		t.Errorf("kind = %s, want %s", pipeErr.Kind, KindNetwork)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should reach the root cause")
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	e := NewParseError("truncated element", errors.New("unexpected EOF"))
	s := e.Error()
	if !strings.Contains(s, "truncated element") || !strings.Contains(s, "unexpected EOF") {
		t.Errorf("error string %q missing message or cause", s)
	}
}

func TestWithMetadata(t *testing.T) {
	e := NewStorageError("upload failed", nil).
		WithMetadata("archive_id", "abc").
		WithMetadata("tier", "thumbnail")
	if e.Metadata["archive_id"] != "abc" || e.Metadata["tier"] != "thumbnail" {
		t.Errorf("metadata = %v", e.Metadata)
	}
}
