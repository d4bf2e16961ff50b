// Package imaging produces the multi-resolution compressed variants served
// to viewers: a thumbnail, a preview and a full-resolution encode.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // secondary entry point accepts PNG photographs

	"golang.org/x/image/draw"

	"github.com/otcheredev/ris-imaging-pipeline/internal/apperrors"
)

// ResolutionTier names a point on the size/quality tradeoff curve.
type ResolutionTier string

const (
	TierThumbnail ResolutionTier = "thumbnail"
	TierPreview   ResolutionTier = "preview"
	TierFull      ResolutionTier = "full"
)

// RenderedVariant is one encoded output of the pipeline.
type RenderedVariant struct {
	Tier     ResolutionTier `json:"resolution_tier"`
	Data     []byte         `json:"-"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	ByteSize int            `json:"byte_size"`
}

// CompressionResult bundles the three variants with size accounting.
type CompressionResult struct {
	Thumbnail        RenderedVariant `json:"thumbnail"`
	Preview          RenderedVariant `json:"preview"`
	Full             RenderedVariant `json:"full"`
	OriginalSize     int             `json:"original_size"`
	CompressionRatio float64         `json:"compression_ratio"`
}

// Options controls tier dimensions and encode quality.
type Options struct {
	ThumbnailMaxDim  int
	PreviewMaxDim    int
	FullMaxDim       int
	ThumbnailQuality int
	PreviewQuality   int
	FullQuality      int
	// Progressive is carried for archive bridges that transcode; the
	// in-process encoder emits baseline JPEG.
	Progressive bool
}

// DefaultOptions returns the standard tier configuration.
func DefaultOptions() Options {
	return Options{
		ThumbnailMaxDim:  200,
		PreviewMaxDim:    1024,
		FullMaxDim:       2048,
		ThumbnailQuality: 75,
		PreviewQuality:   85,
		FullQuality:      90,
	}
}

// Compress encodes windowed 8-bit intensities into the three variants.
// samplesPerPixel selects grayscale (1) or interleaved RGB (3) input.
func Compress(windowed []uint8, width, height, samplesPerPixel int, opts Options) (*CompressionResult, error) {
	img, err := toImage(windowed, width, height, samplesPerPixel)
	if err != nil {
		return nil, err
	}
	return encodeTiers(img, len(windowed), opts)
}

// CompressEncoded runs the three-tier pipeline over an already-encoded
// image (non-native-format photographs), skipping the windowing step.
func CompressEncoded(data []byte, opts Options) (*CompressionResult, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewConversionError("decode source image", err).
			WithMetadata("has_pixel_data", len(data) > 0).
			WithMetadata("pixel_data_size", len(data))
	}
	return encodeTiers(img, len(data), opts)
}

func encodeTiers(img image.Image, rawSize int, opts Options) (*CompressionResult, error) {
	thumbnail, err := encodeTier(img, TierThumbnail, opts.ThumbnailMaxDim, opts.ThumbnailQuality, rawSize)
	if err != nil {
		return nil, err
	}
	preview, err := encodeTier(img, TierPreview, opts.PreviewMaxDim, opts.PreviewQuality, rawSize)
	if err != nil {
		return nil, err
	}
	full, err := encodeTier(img, TierFull, opts.FullMaxDim, opts.FullQuality, rawSize)
	if err != nil {
		return nil, err
	}

	ratio := 0.0
	if rawSize > 0 {
		ratio = 1 - float64(full.ByteSize)/float64(rawSize)
		if ratio < 0 {
			ratio = 0
		}
	}

	return &CompressionResult{
		Thumbnail:        thumbnail,
		Preview:          preview,
		Full:             full,
		OriginalSize:     rawSize,
		CompressionRatio: ratio,
	}, nil
}

func encodeTier(img image.Image, tier ResolutionTier, maxDim, quality, rawSize int) (RenderedVariant, error) {
	scaled := fitInside(img, maxDim)
	bounds := scaled.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
		return RenderedVariant{}, apperrors.NewConversionError(
			fmt.Sprintf("encode %s variant", tier), err).
			WithMetadata("has_pixel_data", rawSize > 0).
			WithMetadata("pixel_data_size", rawSize)
	}

	return RenderedVariant{
		Tier:     tier,
		Data:     buf.Bytes(),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		ByteSize: buf.Len(),
	}, nil
}

// fitInside scales img to fit within maxDim on its longest side, preserving
// aspect ratio and never upscaling.
func fitInside(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = h * maxDim / w
	} else {
		nh = maxDim
		nw = w * maxDim / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// toImage wraps windowed intensities in an image.Image without copying
// where the layout allows it.
func toImage(windowed []uint8, width, height, samplesPerPixel int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, apperrors.NewConversionError(
			fmt.Sprintf("invalid dimensions %dx%d", width, height), nil).
			WithMetadata("has_pixel_data", len(windowed) > 0).
			WithMetadata("pixel_data_size", len(windowed))
	}
	expected := width * height * samplesPerPixel
	if len(windowed) < expected {
		return nil, apperrors.NewConversionError(
			fmt.Sprintf("need %d intensity bytes, have %d", expected, len(windowed)), nil).
			WithMetadata("has_pixel_data", len(windowed) > 0).
			WithMetadata("pixel_data_size", len(windowed))
	}

	switch samplesPerPixel {
	case 1:
		return &image.Gray{Pix: windowed, Stride: width, Rect: image.Rect(0, 0, width, height)}, nil
	case 3:
		rgba := image.NewRGBA(image.Rect(0, 0, width, height))
		for i := 0; i < width*height; i++ {
			rgba.Pix[i*4+0] = windowed[i*3+0]
			rgba.Pix[i*4+1] = windowed[i*3+1]
			rgba.Pix[i*4+2] = windowed[i*3+2]
			rgba.Pix[i*4+3] = 0xFF
		}
		return rgba, nil
	default:
		return nil, apperrors.NewConversionError(
			fmt.Sprintf("unsupported samples per pixel %d", samplesPerPixel), nil)
	}
}
