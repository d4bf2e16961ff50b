package dicom

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// minFileSize is the smallest buffer that can hold a preamble-less
	// dictionary with one element.
	minFileSize = 8

	undersizedThreshold = 1 << 10  // advisory: below 1KB is suspicious
	oversizedThreshold  = 50 << 20 // advisory: above 50MB is suspicious
)

// ValidationMetadata is the structural summary attached to every result.
type ValidationMetadata struct {
	FileSize         int  `json:"file_size"`
	HasMagicPreamble bool `json:"has_magic_preamble"`
}

// ValidationResult is the outcome of pre-flight validation. Valid is false
// iff structural errors are present; warnings are advisory only.
type ValidationResult struct {
	Valid    bool               `json:"valid"`
	Errors   []string           `json:"errors"`
	Warnings []string           `json:"warnings"`
	Metadata ValidationMetadata `json:"metadata"`
}

// Validate performs structural-only sanity checks on a raw byte buffer.
// It never reads the full dictionary; parsing failures past these checks
// are the parser's to report.
func Validate(data []byte) ValidationResult {
	result := ValidationResult{
		Metadata: ValidationMetadata{
			FileSize:         len(data),
			HasMagicPreamble: HasMagicPreamble(data),
		},
	}

	if len(data) < minFileSize {
		result.Errors = append(result.Errors,
			fmt.Sprintf("file is %d bytes, below the %d byte minimum", len(data), minFileSize))
	} else if !result.Metadata.HasMagicPreamble && !startsWithTagGroup(data) {
		result.Errors = append(result.Errors, "no DICM marker and no leading tag group")
	}

	if len(data) > 0 && len(data) < undersizedThreshold {
		result.Warnings = append(result.Warnings, "file is unusually small for a radiographic image")
	}
	if len(data) > oversizedThreshold {
		result.Warnings = append(result.Warnings, "file is unusually large for a radiographic image")
	}

	result.Valid = len(result.Errors) == 0
	return result
}

var knownExtensions = map[string]bool{
	".dcm":   true,
	".dicom": true,
	".jpg":   true,
	".jpeg":  true,
	".png":   true,
}

var knownContentTypes = map[string]bool{
	"application/dicom":        true,
	"application/octet-stream": true,
	"image/jpeg":               true,
	"image/png":                true,
}

// ValidateFile composes byte-level validation with filename and
// content-type advisories. Real-world producers mislabel files, so both
// checks contribute warnings rather than hard failures.
func ValidateFile(data []byte, filename, contentType string) ValidationResult {
	result := Validate(data)

	if filename != "" {
		ext := strings.ToLower(filepath.Ext(filename))
		if !knownExtensions[ext] {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("unrecognized file extension %q", ext))
		}
	}
	if contentType != "" {
		base := contentType
		if idx := strings.IndexByte(base, ';'); idx >= 0 {
			base = base[:idx]
		}
		if !knownContentTypes[strings.TrimSpace(strings.ToLower(base))] {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("unexpected content type %q", contentType))
		}
	}

	return result
}
