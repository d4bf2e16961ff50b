package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/otcheredev/ris-imaging-pipeline/internal/apperrors"
)

// ParseResult is the output of a successful Parse. It owns both the
// metadata and the pixel buffer.
type ParseResult struct {
	Metadata ImageMetadata
	Pixels   *PixelBuffer
}

// Parse decodes the tag dictionary and pixel payload of a DICOM-style byte
// buffer. It is a pure transform: no I/O, no shared state.
//
// The dictionary is read as little-endian (group, element, length, value)
// records, either after the 128-byte preamble and "DICM" marker or from
// offset zero when the producer omitted the preamble. Absent tags fall back
// to documented neutral values rather than failing.
func Parse(data []byte) (*ParseResult, error) {
	body, err := stripPreamble(data)
	if err != nil {
		return nil, err
	}

	elements, pixelData, err := readDictionary(body)
	if err != nil {
		return nil, err
	}

	meta := buildMetadata(elements)
	pixels, err := materializePixels(meta, pixelData)
	if err != nil {
		return nil, err
	}

	return &ParseResult{Metadata: meta, Pixels: pixels}, nil
}

// stripPreamble locates the start of the element stream.
func stripPreamble(data []byte) ([]byte, error) {
	if HasMagicPreamble(data) {
		return data[preambleLength+len(magic):], nil
	}
	// Preamble-less files start directly with the first tag group.
	if startsWithTagGroup(data) {
		return data, nil
	}
	return nil, apperrors.NewParseError("missing DICM marker and no leading tag group", nil)
}

// HasMagicPreamble reports whether data carries the fixed-offset magic
// marker.
func HasMagicPreamble(data []byte) bool {
	if len(data) < preambleLength+len(magic) {
		return false
	}
	return string(data[preambleLength:preambleLength+len(magic)]) == magic
}

// startsWithTagGroup reports whether the buffer begins with a plausible
// little-endian element group (patient or acquisition group).
func startsWithTagGroup(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	group := binary.LittleEndian.Uint16(data[0:2])
	switch group {
	case 0x0002, 0x0008, 0x0010, 0x0028:
		return true
	}
	return false
}

// element is one decoded dictionary entry.
type element struct {
	tag   uint32
	value []byte
}

// readDictionary walks the element stream, collecting metadata elements and
// the raw pixel-data payload. Elements with tags the pipeline never reads
// are skipped, not buffered.
func readDictionary(body []byte) (map[uint32]element, []byte, error) {
	er := newElementReader(bytes.NewReader(body))
	elements := make(map[uint32]element)
	var pixelData []byte
	remaining := len(body)
	seen := 0

	for remaining >= 8 {
		tag, err := er.Tag()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, apperrors.NewParseError("truncated element tag", err)
		}
		length, err := er.UInt32()
		if err != nil {
			return nil, nil, apperrors.NewParseError("truncated element length", err)
		}
		remaining -= 8

		if int(length) > remaining {
			return nil, nil, apperrors.NewParseError(
				fmt.Sprintf("element %08X declares %d value bytes with %d remaining", tag, length, remaining), nil)
		}

		if tag != TagPixelData && !knownTag(tag) {
			if err := er.Skip(int(length)); err != nil {
				return nil, nil, apperrors.NewParseError("truncated element value", err)
			}
			remaining -= int(length)
			seen++
			continue
		}

		value, err := er.Bytes(int(length))
		if err != nil {
			return nil, nil, apperrors.NewParseError("truncated element value", err)
		}
		remaining -= int(length)
		seen++

		if tag == TagPixelData {
			pixelData = value
			continue
		}
		elements[tag] = element{tag: tag, value: value}
	}

	if seen == 0 {
		return nil, nil, apperrors.NewParseError("tag dictionary is empty", nil)
	}
	return elements, pixelData, nil
}

// knownTag reports whether the pipeline reads this metadata element.
func knownTag(tag uint32) bool {
	switch tag {
	case TagStudyDate, TagStudyTime, TagModality, TagManufacturer,
		TagPatientName, TagPatientID,
		TagSamplesPerPixel, TagPhotometricInterpretation,
		TagRows, TagColumns, TagPixelSpacing,
		TagBitsAllocated, TagBitsStored, TagHighBit,
		TagRescaleIntercept, TagRescaleSlope,
		TagWindowCenter, TagWindowWidth:
		return true
	}
	return false
}

// buildMetadata resolves the dictionary into typed metadata, applying
// neutral defaults for absent fields.
func buildMetadata(elements map[uint32]element) ImageMetadata {
	meta := ImageMetadata{
		PatientID:                 stringValue(elements, TagPatientID),
		PatientName:               stringValue(elements, TagPatientName),
		StudyDate:                 stringValue(elements, TagStudyDate),
		StudyTime:                 stringValue(elements, TagStudyTime),
		Modality:                  stringValue(elements, TagModality),
		Manufacturer:              stringValue(elements, TagManufacturer),
		Rows:                      int(uint16Value(elements, TagRows, 0)),
		Columns:                   int(uint16Value(elements, TagColumns, 0)),
		BitsAllocated:             int(uint16Value(elements, TagBitsAllocated, 16)),
		BitsStored:                int(uint16Value(elements, TagBitsStored, 0)),
		HighBit:                   int(uint16Value(elements, TagHighBit, 0)),
		SamplesPerPixel:           int(uint16Value(elements, TagSamplesPerPixel, 1)),
		PhotometricInterpretation: stringValue(elements, TagPhotometricInterpretation),
		PixelSpacing:              numericValue(elements, TagPixelSpacing, 0),
		RescaleSlope:              numericValue(elements, TagRescaleSlope, 1),
		RescaleIntercept:          numericValue(elements, TagRescaleIntercept, 0),
	}

	if meta.PhotometricInterpretation == "" {
		meta.PhotometricInterpretation = "MONOCHROME2"
	}
	if meta.BitsStored == 0 {
		meta.BitsStored = meta.BitsAllocated
	}
	if meta.HighBit == 0 && meta.BitsStored > 0 {
		meta.HighBit = meta.BitsStored - 1
	}

	// Window defaults are depth-keyed heuristics when the producer omitted
	// them.
	meta.WindowCenter = numericValue(elements, TagWindowCenter, defaultWindowCenter(meta.BitsAllocated))
	meta.WindowWidth = numericValue(elements, TagWindowWidth, defaultWindowWidth(meta.BitsAllocated))

	return meta
}

func defaultWindowCenter(bitsAllocated int) float64 {
	if bitsAllocated > 8 {
		return 2048
	}
	return 128
}

func defaultWindowWidth(bitsAllocated int) float64 {
	if bitsAllocated > 8 {
		return 4096
	}
	return 256
}

// materializePixels validates the declared geometry against the payload and
// widens samples into a uniform buffer.
func materializePixels(meta ImageMetadata, pixelData []byte) (*PixelBuffer, error) {
	if pixelData == nil {
		return nil, apperrors.NewPixelDataError("pixel data tag is missing", nil)
	}
	if meta.Rows <= 0 || meta.Columns <= 0 {
		return nil, apperrors.NewPixelDataError(
			fmt.Sprintf("invalid geometry %dx%d", meta.Columns, meta.Rows), nil)
	}

	if meta.SamplesPerPixel != 1 && meta.SamplesPerPixel != 3 {
		return nil, apperrors.NewPixelDataError(
			fmt.Sprintf("unsupported samples per pixel %d", meta.SamplesPerPixel), nil)
	}

	// All payload checks run before the sample buffer is allocated, so a
	// crafted geometry never drives the allocation; it is bounded by the
	// payload actually present.
	expected := meta.Rows * meta.Columns * meta.SamplesPerPixel
	switch {
	case meta.BitsAllocated <= 8:
		if len(pixelData) < expected {
			return nil, apperrors.NewPixelDataError(
				fmt.Sprintf("need %d bytes of 8-bit pixel data, have %d", expected, len(pixelData)), nil).
				WithMetadata("pixel_data_size", len(pixelData))
		}
	case meta.BitsAllocated <= 16:
		if len(pixelData) < expected*2 {
			return nil, apperrors.NewPixelDataError(
				fmt.Sprintf("need %d bytes of 16-bit pixel data, have %d", expected*2, len(pixelData)), nil).
				WithMetadata("pixel_data_size", len(pixelData))
		}
	default:
		return nil, apperrors.NewPixelDataError(
			fmt.Sprintf("unsupported bit depth %d", meta.BitsAllocated), nil)
	}

	samples := make([]uint16, expected)
	if meta.BitsAllocated <= 8 {
		for i := 0; i < expected; i++ {
			samples[i] = uint16(pixelData[i])
		}
	} else {
		for i := 0; i < expected; i++ {
			samples[i] = binary.LittleEndian.Uint16(pixelData[i*2:])
		}
	}

	return &PixelBuffer{
		Samples:                   samples,
		Width:                     meta.Columns,
		Height:                    meta.Rows,
		SamplesPerPixel:           meta.SamplesPerPixel,
		BitsAllocated:             meta.BitsAllocated,
		PhotometricInterpretation: meta.PhotometricInterpretation,
		WindowCenter:              meta.WindowCenter,
		WindowWidth:               meta.WindowWidth,
		RescaleSlope:              meta.RescaleSlope,
		RescaleIntercept:          meta.RescaleIntercept,
	}, nil
}

func stringValue(elements map[uint32]element, tag uint32) string {
	el, ok := elements[tag]
	if !ok {
		return ""
	}
	// Text values are space/NUL padded to even length.
	return strings.TrimRight(string(el.value), " \x00")
}

// uint16Value reads a binary unsigned-short element, falling back to def
// when the tag is absent or malformed.
func uint16Value(elements map[uint32]element, tag uint32, def uint16) uint16 {
	el, ok := elements[tag]
	if !ok || len(el.value) < 2 {
		return def
	}
	return binary.LittleEndian.Uint16(el.value)
}

// numericValue reads a decimal-string element. Multi-valued fields are
// backslash separated; the first element wins.
func numericValue(elements map[uint32]element, tag uint32, def float64) float64 {
	el, ok := elements[tag]
	if !ok {
		return def
	}
	raw := strings.TrimRight(string(el.value), " \x00")
	if raw == "" {
		return def
	}
	first := raw
	if idx := strings.IndexByte(raw, '\\'); idx >= 0 {
		first = raw[:idx]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return def
	}
	return v
}
