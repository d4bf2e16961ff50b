// Package dicom decodes the tag/value dictionary of DICOM-style radiographic
// files and turns raw pixel samples into displayable intensities.
package dicom

// Well-known data element tags, encoded as group<<16 | element.
const (
	TagStudyDate                 = 0x00080020
	TagStudyTime                 = 0x00080030
	TagModality                  = 0x00080060
	TagManufacturer              = 0x00080070
	TagPatientName               = 0x00100010
	TagPatientID                 = 0x00100020
	TagSamplesPerPixel           = 0x00280002
	TagPhotometricInterpretation = 0x00280004
	TagRows                      = 0x00280010
	TagColumns                   = 0x00280011
	TagPixelSpacing              = 0x00280030
	TagBitsAllocated             = 0x00280100
	TagBitsStored                = 0x00280101
	TagHighBit                   = 0x00280102
	TagRescaleIntercept          = 0x00281052
	TagRescaleSlope              = 0x00281053
	TagWindowCenter              = 0x00281050
	TagWindowWidth               = 0x00281051
	TagPixelData                 = 0x7FE00010
)

// preambleLength is the fixed offset of the magic marker.
const preambleLength = 128

// magic is the format marker that follows the preamble.
const magic = "DICM"

// ImageMetadata holds the clinical metadata extracted from the tag
// dictionary. Immutable once parsed.
type ImageMetadata struct {
	PatientID                 string  `json:"patient_id"`
	PatientName               string  `json:"patient_name"`
	StudyDate                 string  `json:"study_date"`
	StudyTime                 string  `json:"study_time"`
	Modality                  string  `json:"modality"`
	Manufacturer              string  `json:"manufacturer"`
	Rows                      int     `json:"rows"`
	Columns                   int     `json:"columns"`
	BitsAllocated             int     `json:"bits_allocated"`
	BitsStored                int     `json:"bits_stored"`
	HighBit                   int     `json:"high_bit"`
	SamplesPerPixel           int     `json:"samples_per_pixel"`
	PhotometricInterpretation string  `json:"photometric_interpretation"`
	PixelSpacing              float64 `json:"pixel_spacing"`
	WindowCenter              float64 `json:"window_center"`
	WindowWidth               float64 `json:"window_width"`
	RescaleSlope              float64 `json:"rescale_slope"`
	RescaleIntercept          float64 `json:"rescale_intercept"`
}

// PixelBuffer holds the raw samples of a parsed image together with the
// values needed to interpret them. Transforms never mutate a buffer in
// place; they produce new buffers.
type PixelBuffer struct {
	// Samples holds one unsigned sample per channel per pixel. 8-bit input
	// is widened on decode; BitsAllocated records the source element width.
	Samples                   []uint16
	Width                     int
	Height                    int
	SamplesPerPixel           int
	BitsAllocated             int
	PhotometricInterpretation string
	WindowCenter              float64
	WindowWidth               float64
	RescaleSlope              float64
	RescaleIntercept          float64
}

// WindowSettings is a request-scoped window/level override.
type WindowSettings struct {
	Center float64 `json:"center"`
	Width  float64 `json:"width"`
}
