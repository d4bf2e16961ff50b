package imaging

// modalityPresets keys quality presets by acquisition type, analogous to
// the windowing default table. Volumetric acquisitions trade quality for
// size; intraoral detail views keep the full-tier quality high.
var modalityPresets = map[string]Options{
	"panoramic": {
		ThumbnailMaxDim: 200, PreviewMaxDim: 1024, FullMaxDim: 2048,
		ThumbnailQuality: 75, PreviewQuality: 85, FullQuality: 90,
	},
	"bitewing": {
		ThumbnailMaxDim: 200, PreviewMaxDim: 800, FullMaxDim: 1600,
		ThumbnailQuality: 75, PreviewQuality: 88, FullQuality: 92,
	},
	"periapical": {
		ThumbnailMaxDim: 200, PreviewMaxDim: 800, FullMaxDim: 1600,
		ThumbnailQuality: 75, PreviewQuality: 88, FullQuality: 92,
	},
	"cephalometric": {
		ThumbnailMaxDim: 200, PreviewMaxDim: 1024, FullMaxDim: 2048,
		ThumbnailQuality: 75, PreviewQuality: 85, FullQuality: 90,
	},
	"cbct": {
		ThumbnailMaxDim: 200, PreviewMaxDim: 1024, FullMaxDim: 2048,
		ThumbnailQuality: 70, PreviewQuality: 80, FullQuality: 85,
	},
}

// PresetForModality returns the quality preset for an acquisition type,
// falling back to the default tier configuration.
func PresetForModality(modality string) Options {
	if opts, ok := modalityPresets[modality]; ok {
		return opts
	}
	return DefaultOptions()
}
