package dicom

import (
	"strings"
	"testing"
)

func TestValidateRejectsTinyBuffer(t *testing.T) {
	result := Validate([]byte{0x01, 0x02})
	if result.Valid {
		t.Error("tiny buffer should not validate")
	}
	if len(result.Errors) == 0 {
		t.Error("expected a structural error")
	}
	if result.Metadata.FileSize != 2 {
		t.Errorf("file size = %d, want 2", result.Metadata.FileSize)
	}
}

func TestValidateAcceptsPreambleFile(t *testing.T) {
	data := grayscale8(2, 2).bytesWithPreamble()
	result := Validate(data)
	if !result.Valid {
		t.Fatalf("valid file rejected: %v", result.Errors)
	}
	if !result.Metadata.HasMagicPreamble {
		t.Error("preamble not detected")
	}
}

func TestValidateAcceptsPreambleLessFile(t *testing.T) {
	result := Validate(grayscale8(2, 2).bytes())
	if !result.Valid {
		t.Fatalf("preamble-less file rejected: %v", result.Errors)
	}
	if result.Metadata.HasMagicPreamble {
		t.Error("preamble falsely detected")
	}
}

func TestValidateRejectsForeignBytes(t *testing.T) {
	result := Validate([]byte(strings.Repeat("z", 64)))
	if result.Valid {
		t.Error("foreign bytes should not validate")
	}
}

func TestValidateWarnsOnSmallFile(t *testing.T) {
	result := Validate(grayscale8(2, 2).bytes())
	if !result.Valid {
		t.Fatal("file should be structurally valid")
	}
	if len(result.Warnings) == 0 {
		t.Error("expected an undersized warning")
	}
}

func TestValidateFileAdvisories(t *testing.T) {
	data := grayscale8(2, 2).bytes()

	tests := []struct {
		name        string
		filename    string
		contentType string
		wantWarning bool
	}{
		{"known extension", "scan.dcm", "application/dicom", false},
		{"unknown extension", "scan.xyz", "application/dicom", true},
		{"unknown content type", "scan.dcm", "text/plain", true},
		{"parameterized content type", "scan.dcm", "image/jpeg; charset=binary", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateFile(data, tt.filename, tt.contentType)
			if !result.Valid {
				t.Fatalf("file rejected: %v", result.Errors)
			}
			// Small test buffers always carry the undersized warning.
			extra := len(result.Warnings) > 1
			if extra != tt.wantWarning {
				t.Errorf("advisory warnings = %v, wantWarning=%v", result.Warnings, tt.wantWarning)
			}
		})
	}
}
