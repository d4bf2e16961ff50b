package apperrors

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Kind classifies a pipeline failure by the stage that produced it.
type Kind string

const (
	KindParse             Kind = "parse_error"
	KindPixelData         Kind = "pixel_data_error"
	KindConversion        Kind = "conversion_error"
	KindStorage           Kind = "storage_error"
	KindNetwork           Kind = "network_error"
	KindValidation        Kind = "validation_error"
	KindUnsupportedFormat Kind = "unsupported_format_error"
)

// userMessages maps each kind to a single stable, non-technical message.
// UI layers key off this map only; diagnostic detail stays in logs.
var userMessages = map[Kind]string{
	KindParse:             "The image file could not be read. It may be corrupted.",
	KindPixelData:         "The image file does not contain usable image data.",
	KindConversion:        "The image could not be converted for display.",
	KindStorage:           "The image could not be stored. Please try again.",
	KindNetwork:           "The imaging archive could not be reached. Please try again.",
	KindValidation:        "The uploaded file is not a valid image file.",
	KindUnsupportedFormat: "This image format is not supported.",
}

// Error is the pipeline error taxonomy. Every stage failure is wrapped into
// one of these before it crosses a component boundary.
type Error struct {
	Kind        Kind
	Message     string
	Recoverable bool
	Suggestions []string
	Metadata    map[string]interface{}
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage returns the stable user-facing message for the error's kind.
func (e *Error) UserMessage() string {
	if msg, ok := userMessages[e.Kind]; ok {
		return msg
	}
	return "An unexpected error occurred while processing the image."
}

// Log emits the error as a structured log event. This is the single place a
// telemetry integration would hook in.
func (e *Error) Log() {
	evt := log.Error().
		Str("kind", string(e.Kind)).
		Str("message", e.Message).
		Bool("recoverable", e.Recoverable)
	if len(e.Metadata) > 0 {
		evt = evt.Dict("metadata", metadataDict(e.Metadata))
	}
	if e.Cause != nil {
		evt = evt.Err(e.Cause)
	}
	evt.Msg("imaging pipeline error")
}

func metadataDict(md map[string]interface{}) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range md {
		d = d.Interface(k, v)
	}
	return d
}

// WithMetadata attaches diagnostic context and returns the error.
func (e *Error) WithMetadata(key string, value interface{}) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// NewParseError reports a failure to read the tag dictionary.
func NewParseError(message string, cause error) *Error {
	return &Error{
		Kind:        KindParse,
		Message:     message,
		Recoverable: false,
		Suggestions: []string{
			"Verify the file was exported from the imaging device without truncation",
			"Re-export the study and upload again",
		},
		Cause: cause,
	}
}

// NewPixelDataError reports missing or inconsistent pixel data.
func NewPixelDataError(message string, cause error) *Error {
	return &Error{
		Kind:        KindPixelData,
		Message:     message,
		Recoverable: false,
		Suggestions: []string{
			"Confirm the acquisition completed before export",
			"Check that the file contains image data, not only metadata",
		},
		Cause: cause,
	}
}

// NewConversionError reports an encode or resize failure.
func NewConversionError(message string, cause error) *Error {
	return &Error{
		Kind:        KindConversion,
		Message:     message,
		Recoverable: false,
		Suggestions: []string{
			"Try uploading the original file again",
			"Contact support if the problem persists with this device's exports",
		},
		Cause: cause,
	}
}

// NewStorageError reports an archive persistence failure. Recoverable:
// callers may retry.
func NewStorageError(message string, cause error) *Error {
	return &Error{
		Kind:        KindStorage,
		Message:     message,
		Recoverable: true,
		Suggestions: []string{
			"Retry the upload",
			"Verify the archive configuration and connectivity",
		},
		Cause: cause,
	}
}

// NewNetworkError reports a transport failure to an archive backend.
// Recoverable: callers may retry.
func NewNetworkError(message string, cause error) *Error {
	return &Error{
		Kind:        KindNetwork,
		Message:     message,
		Recoverable: true,
		Suggestions: []string{
			"Check network connectivity to the archive endpoint",
			"Retry once the archive is reachable",
		},
		Cause: cause,
	}
}

// NewValidationError reports a structural pre-flight failure.
func NewValidationError(message string, cause error) *Error {
	return &Error{
		Kind:        KindValidation,
		Message:     message,
		Recoverable: false,
		Suggestions: []string{
			"Upload an uncorrupted image exported from the imaging device",
		},
		Cause: cause,
	}
}

// NewUnsupportedFormatError reports a file the pipeline cannot handle.
func NewUnsupportedFormatError(message string, cause error) *Error {
	return &Error{
		Kind:        KindUnsupportedFormat,
		Message:     message,
		Recoverable: false,
		Suggestions: []string{
			"Export the image in DICOM, JPEG or PNG format",
		},
		Cause: cause,
	}
}
