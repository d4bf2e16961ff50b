package dicom

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/otcheredev/ris-imaging-pipeline/internal/apperrors"
)

// fileBuilder assembles little-endian element streams for tests.
type fileBuilder struct {
	buf bytes.Buffer
}

func (b *fileBuilder) element(tag uint32, value []byte) *fileBuilder {
	binary.Write(&b.buf, binary.LittleEndian, uint16(tag>>16))
	binary.Write(&b.buf, binary.LittleEndian, uint16(tag&0xFFFF))
	binary.Write(&b.buf, binary.LittleEndian, uint32(len(value)))
	b.buf.Write(value)
	return b
}

func (b *fileBuilder) str(tag uint32, s string) *fileBuilder {
	return b.element(tag, []byte(s))
}

func (b *fileBuilder) ushort(tag uint32, v uint16) *fileBuilder {
	var value [2]byte
	binary.LittleEndian.PutUint16(value[:], v)
	return b.element(tag, value[:])
}

func (b *fileBuilder) bytes() []byte {
	return b.buf.Bytes()
}

func (b *fileBuilder) bytesWithPreamble() []byte {
	out := make([]byte, 128, 128+4+b.buf.Len())
	out = append(out, []byte("DICM")...)
	return append(out, b.buf.Bytes()...)
}

func grayscale8(width, height int) *fileBuilder {
	b := &fileBuilder{}
	b.str(TagModality, "panoramic").
		str(TagPatientID, "P001").
		ushort(TagRows, uint16(height)).
		ushort(TagColumns, uint16(width)).
		ushort(TagBitsAllocated, 8).
		ushort(TagSamplesPerPixel, 1)
	pixels := make([]byte, width*height)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	return b.element(TagPixelData, pixels)
}

func TestParseWithPreamble(t *testing.T) {
	result, err := Parse(grayscale8(4, 2).bytesWithPreamble())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	meta := result.Metadata
	if meta.Modality != "panoramic" {
		t.Errorf("modality = %q, want panoramic", meta.Modality)
	}
	if meta.PatientID != "P001" {
		t.Errorf("patient ID = %q, want P001", meta.PatientID)
	}
	if meta.Rows != 2 || meta.Columns != 4 {
		t.Errorf("geometry = %dx%d, want 4x2", meta.Columns, meta.Rows)
	}

	pixels := result.Pixels
	if len(pixels.Samples) != 8 {
		t.Fatalf("sample count = %d, want 8", len(pixels.Samples))
	}
	for i, s := range pixels.Samples {
		if s != uint16(i) {
			t.Errorf("sample[%d] = %d, want %d", i, s, i)
		}
	}
}

func TestParseWithoutPreamble(t *testing.T) {
	result, err := Parse(grayscale8(2, 2).bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if result.Metadata.Modality != "panoramic" {
		t.Errorf("modality = %q, want panoramic", result.Metadata.Modality)
	}
}

func TestParseRejectsUnrecognizedBuffer(t *testing.T) {
	_, err := Parse([]byte("definitely not a radiograph, not even close"))
	assertKind(t, err, apperrors.KindParse)
}

func TestParseOverlongElement(t *testing.T) {
	b := &fileBuilder{}
	b.str(TagModality, "cbct")
	data := b.bytes()
	// Corrupt the declared length to exceed the buffer.
	binary.LittleEndian.PutUint32(data[4:8], 1<<20)

	_, err := Parse(data)
	assertKind(t, err, apperrors.KindParse)
}

func TestParseMissingPixelData(t *testing.T) {
	b := &fileBuilder{}
	b.ushort(TagRows, 2).ushort(TagColumns, 2).ushort(TagBitsAllocated, 8)

	_, err := Parse(b.bytes())
	assertKind(t, err, apperrors.KindPixelData)
}

func TestParseShortPixelData(t *testing.T) {
	b := &fileBuilder{}
	b.ushort(TagRows, 16).
		ushort(TagColumns, 16).
		ushort(TagBitsAllocated, 8).
		element(TagPixelData, make([]byte, 10))

	_, err := Parse(b.bytes())
	assertKind(t, err, apperrors.KindPixelData)

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		if got, ok := appErr.Metadata["pixel_data_size"]; !ok || got != 10 {
			t.Errorf("pixel_data_size metadata = %v, want 10", got)
		}
	}
}

func TestParseSkipsUnknownElements(t *testing.T) {
	b := &fileBuilder{}
	b.str(TagModality, "bitewing").
		element(0x00091001, []byte("private vendor block")).
		ushort(TagRows, 2).
		ushort(TagColumns, 2).
		ushort(TagBitsAllocated, 8).
		element(TagPixelData, make([]byte, 4))

	result, err := Parse(b.bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if result.Metadata.Modality != "bitewing" {
		t.Errorf("modality = %q, want bitewing", result.Metadata.Modality)
	}
	if len(result.Pixels.Samples) != 4 {
		t.Errorf("sample count = %d, want 4", len(result.Pixels.Samples))
	}
}

func TestParseHugeDeclaredGeometry(t *testing.T) {
	// A ~50-byte file declaring maximal geometry must fail the payload
	// check, not allocate rows*cols*spp samples.
	b := &fileBuilder{}
	b.ushort(TagRows, 65535).
		ushort(TagColumns, 65535).
		ushort(TagSamplesPerPixel, 3).
		ushort(TagBitsAllocated, 16).
		element(TagPixelData, make([]byte, 2))

	_, err := Parse(b.bytes())
	assertKind(t, err, apperrors.KindPixelData)
}

func TestParseRejectsAbsurdSamplesPerPixel(t *testing.T) {
	b := &fileBuilder{}
	b.ushort(TagRows, 2).
		ushort(TagColumns, 2).
		ushort(TagSamplesPerPixel, 65535).
		ushort(TagBitsAllocated, 8).
		element(TagPixelData, make([]byte, 4))

	_, err := Parse(b.bytes())
	assertKind(t, err, apperrors.KindPixelData)
}

func TestParse16BitSamples(t *testing.T) {
	b := &fileBuilder{}
	b.ushort(TagRows, 1).
		ushort(TagColumns, 3).
		ushort(TagBitsAllocated, 16)
	pixels := make([]byte, 6)
	for i, v := range []uint16{0, 4095, 300} {
		binary.LittleEndian.PutUint16(pixels[i*2:], v)
	}
	b.element(TagPixelData, pixels)

	result, err := Parse(b.bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []uint16{0, 4095, 300}
	for i, s := range result.Pixels.Samples {
		if s != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, s, want[i])
		}
	}
}

func TestMultiValuedDecimalString(t *testing.T) {
	b := grayscale8(2, 2)
	b.str(TagWindowCenter, "2048\\1024")
	b.str(TagWindowWidth, "4096\\512 ")

	result, err := Parse(b.bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if result.Metadata.WindowCenter != 2048 {
		t.Errorf("window center = %g, want first value 2048", result.Metadata.WindowCenter)
	}
	if result.Metadata.WindowWidth != 4096 {
		t.Errorf("window width = %g, want first value 4096", result.Metadata.WindowWidth)
	}
}

func TestMetadataDefaults(t *testing.T) {
	b := &fileBuilder{}
	b.ushort(TagRows, 2).
		ushort(TagColumns, 2).
		ushort(TagBitsAllocated, 16).
		element(TagPixelData, make([]byte, 8))

	result, err := Parse(b.bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	meta := result.Metadata
	if meta.SamplesPerPixel != 1 {
		t.Errorf("samples per pixel = %d, want default 1", meta.SamplesPerPixel)
	}
	if meta.PhotometricInterpretation != "MONOCHROME2" {
		t.Errorf("photometric = %q, want default MONOCHROME2", meta.PhotometricInterpretation)
	}
	if meta.RescaleSlope != 1 || meta.RescaleIntercept != 0 {
		t.Errorf("rescale = %g/%g, want neutral 1/0", meta.RescaleSlope, meta.RescaleIntercept)
	}
	if meta.WindowCenter != 2048 || meta.WindowWidth != 4096 {
		t.Errorf("window = %g/%g, want 16-bit defaults 2048/4096", meta.WindowCenter, meta.WindowWidth)
	}
}

func assertKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("error %v is not a pipeline error", err)
	}
	if appErr.Kind != kind {
		t.Fatalf("error kind = %s, want %s", appErr.Kind, kind)
	}
}
