package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/otcheredev/ris-imaging-pipeline/internal/apperrors"
)

func gradient(width, height int) []uint8 {
	out := make([]uint8, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = uint8((x + y) % 256)
		}
	}
	return out
}

func TestCompressProducesThreeTiers(t *testing.T) {
	const w, h = 600, 400
	result, err := Compress(gradient(w, h), w, h, 1, DefaultOptions())
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	if result.Thumbnail.Width != 200 {
		t.Errorf("thumbnail width = %d, want 200", result.Thumbnail.Width)
	}
	if result.Thumbnail.Height != 133 {
		t.Errorf("thumbnail height = %d, want 133", result.Thumbnail.Height)
	}
	// Source fits inside preview and full bounds, so both keep the source
	// dimensions.
	if result.Preview.Width != w || result.Preview.Height != h {
		t.Errorf("preview = %dx%d, want %dx%d", result.Preview.Width, result.Preview.Height, w, h)
	}
	if result.Full.Width != w || result.Full.Height != h {
		t.Errorf("full = %dx%d, want %dx%d", result.Full.Width, result.Full.Height, w, h)
	}

	for _, v := range []RenderedVariant{result.Thumbnail, result.Preview, result.Full} {
		if v.ByteSize == 0 || len(v.Data) != v.ByteSize {
			t.Errorf("%s variant has inconsistent size accounting", v.Tier)
		}
		if _, err := jpeg.Decode(bytes.NewReader(v.Data)); err != nil {
			t.Errorf("%s variant is not decodable JPEG: %v", v.Tier, err)
		}
	}

	if result.CompressionRatio < 0 || result.CompressionRatio >= 1 {
		t.Errorf("compression ratio = %g, want [0, 1)", result.CompressionRatio)
	}
}

func TestCompressNeverUpscales(t *testing.T) {
	const w, h = 64, 48
	result, err := Compress(gradient(w, h), w, h, 1, DefaultOptions())
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	for _, v := range []RenderedVariant{result.Thumbnail, result.Preview, result.Full} {
		if v.Width != w || v.Height != h {
			t.Errorf("%s = %dx%d, small source must keep %dx%d", v.Tier, v.Width, v.Height, w, h)
		}
	}
}

func TestCompressDownscalesLargeSource(t *testing.T) {
	const w, h = 3000, 1500
	result, err := Compress(gradient(w, h), w, h, 1, DefaultOptions())
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if result.Full.Width != 2048 || result.Full.Height != 1024 {
		t.Errorf("full = %dx%d, want 2048x1024", result.Full.Width, result.Full.Height)
	}
	if result.Preview.Width != 1024 || result.Preview.Height != 512 {
		t.Errorf("preview = %dx%d, want 1024x512", result.Preview.Width, result.Preview.Height)
	}
}

func TestCompressRGB(t *testing.T) {
	const w, h = 10, 10
	pix := make([]uint8, w*h*3)
	for i := range pix {
		pix[i] = uint8(i)
	}
	result, err := Compress(pix, w, h, 3, DefaultOptions())
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if result.Full.Width != w || result.Full.Height != h {
		t.Errorf("full = %dx%d, want %dx%d", result.Full.Width, result.Full.Height, w, h)
	}
}

func TestCompressRejectsShortBuffer(t *testing.T) {
	_, err := Compress(make([]uint8, 10), 100, 100, 1, DefaultOptions())
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindConversion {
		t.Fatalf("short buffer error = %v, want conversion error", err)
	}
}

func TestCompressEncodedPNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 50, 50))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 256)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	result, err := CompressEncoded(buf.Bytes(), DefaultOptions())
	if err != nil {
		t.Fatalf("CompressEncoded failed: %v", err)
	}
	if result.Full.Width != 50 || result.Full.Height != 50 {
		t.Errorf("full = %dx%d, want 50x50", result.Full.Width, result.Full.Height)
	}
	if result.OriginalSize != buf.Len() {
		t.Errorf("original size = %d, want %d", result.OriginalSize, buf.Len())
	}
}

func TestCompressEncodedRejectsGarbage(t *testing.T) {
	_, err := CompressEncoded([]byte("not an image at all"), DefaultOptions())
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindConversion {
		t.Fatalf("garbage input error = %v, want conversion error", err)
	}
}

func TestPresetForModality(t *testing.T) {
	cbct := PresetForModality("cbct")
	def := PresetForModality("unknown")

	if cbct == def {
		t.Error("cbct preset should differ from the default")
	}
	if def != DefaultOptions() {
		t.Errorf("unknown modality preset = %+v, want defaults", def)
	}
}
