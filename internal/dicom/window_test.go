package dicom

import "testing"

func TestApplyWindowingMapsInterval(t *testing.T) {
	samples := []uint16{0, 1024, 2048, 3072, 4095}
	out := ApplyWindowing(samples, 2048, 4096, 1, 0)

	if out[0] != 0 {
		t.Errorf("low edge = %d, want 0", out[0])
	}
	if out[4] != 255 {
		t.Errorf("high edge = %d, want 255", out[4])
	}
	if out[2] != 128 {
		t.Errorf("center = %d, want 128", out[2])
	}
	// Monotone over the window.
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Errorf("output not monotone at %d: %d < %d", i, out[i], out[i-1])
		}
	}
}

func TestApplyWindowingClamps(t *testing.T) {
	samples := []uint16{0, 100, 65535}
	out := ApplyWindowing(samples, 200, 100, 1, 0)

	if out[0] != 0 {
		t.Errorf("below window = %d, want 0", out[0])
	}
	if out[2] != 255 {
		t.Errorf("above window = %d, want 255", out[2])
	}
}

func TestApplyWindowingZeroWidthIsStep(t *testing.T) {
	samples := []uint16{99, 100, 101}
	out := ApplyWindowing(samples, 100, 0, 1, 0)

	want := []uint8{0, 255, 255}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("step output[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestApplyWindowingRescales(t *testing.T) {
	// slope 2, intercept -100: sample 1074 rescales to the window center.
	out := ApplyWindowing([]uint16{1074}, 2048, 4096, 2, -100)
	if out[0] != 128 {
		t.Errorf("rescaled center = %d, want 128", out[0])
	}
}

func TestApplyWindowingDoesNotMutateInput(t *testing.T) {
	samples := []uint16{10, 20, 30}
	ApplyWindowing(samples, 20, 10, 1, 0)
	if samples[0] != 10 || samples[1] != 20 || samples[2] != 30 {
		t.Error("input samples were mutated")
	}
}

func TestApplyWindowingToBufferOverride(t *testing.T) {
	pb := &PixelBuffer{
		Samples:      []uint16{50},
		WindowCenter: 2048,
		WindowWidth:  4096,
		RescaleSlope: 1,
	}

	base := ApplyWindowingToBuffer(pb, nil)
	overridden := ApplyWindowingToBuffer(pb, &WindowSettings{Center: 50, Width: 10})

	if base[0] == overridden[0] {
		t.Error("override had no effect")
	}
	if overridden[0] != 128 {
		t.Errorf("overridden center = %d, want 128", overridden[0])
	}
}

func TestDefaultWindowForModality(t *testing.T) {
	tests := []struct {
		modality      string
		bitsAllocated int
		want          WindowSettings
	}{
		{"panoramic", 16, WindowSettings{Center: 2048, Width: 4096}},
		{"bitewing", 16, WindowSettings{Center: 2000, Width: 3500}},
		{"periapical", 16, WindowSettings{Center: 2000, Width: 3500}},
		{"cephalometric", 16, WindowSettings{Center: 2200, Width: 4200}},
		{"cbct", 16, WindowSettings{Center: 1000, Width: 4000}},
		{"unknown", 16, WindowSettings{Center: 2048, Width: 4096}},
		{"unknown", 8, WindowSettings{Center: 128, Width: 256}},
	}

	for _, tt := range tests {
		got := DefaultWindowForModality(tt.modality, tt.bitsAllocated)
		if got != tt.want {
			t.Errorf("DefaultWindowForModality(%q, %d) = %+v, want %+v",
				tt.modality, tt.bitsAllocated, got, tt.want)
		}
	}
}
