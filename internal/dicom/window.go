package dicom

import "math"

// modalityWindows maps acquisition types to their default window settings.
// Consulted when the caller supplies no override and the file carries none.
var modalityWindows = map[string]WindowSettings{
	"panoramic":     {Center: 2048, Width: 4096},
	"bitewing":      {Center: 2000, Width: 3500},
	"periapical":    {Center: 2000, Width: 3500},
	"cephalometric": {Center: 2200, Width: 4200},
	"cbct":          {Center: 1000, Width: 4000},
}

// DefaultWindowForModality returns the preset window for an acquisition
// type, or a depth-keyed fallback for unknown modalities.
func DefaultWindowForModality(modality string, bitsAllocated int) WindowSettings {
	if ws, ok := modalityWindows[modality]; ok {
		return ws
	}
	return WindowSettings{
		Center: defaultWindowCenter(bitsAllocated),
		Width:  defaultWindowWidth(bitsAllocated),
	}
}

// ApplyWindowing maps raw samples to 8-bit display intensities. Each sample
// is rescaled (sample*slope + intercept), clamped to the
// [center-width/2, center+width/2] interval and linearly remapped to
// [0, 255]. A zero-width window degenerates to a step function at center.
//
// The input buffer is never mutated; the result is a new byte buffer of the
// same length, ready for the codec stage.
func ApplyWindowing(samples []uint16, center, width, slope, intercept float64) []uint8 {
	out := make([]uint8, len(samples))
	if width <= 0 {
		for i, s := range samples {
			if float64(s)*slope+intercept >= center {
				out[i] = 255
			}
		}
		return out
	}

	low := center - width/2
	scale := 255 / width
	for i, s := range samples {
		v := (float64(s)*slope + intercept - low) * scale
		out[i] = clampByte(v)
	}
	return out
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// ApplyWindowingToBuffer windows a pixel buffer using either the supplied
// override or the buffer's embedded defaults.
func ApplyWindowingToBuffer(pb *PixelBuffer, override *WindowSettings) []uint8 {
	center, width := pb.WindowCenter, pb.WindowWidth
	if override != nil {
		center, width = override.Center, override.Width
	}
	return ApplyWindowing(pb.Samples, center, width, pb.RescaleSlope, pb.RescaleIntercept)
}
