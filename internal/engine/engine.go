// Package engine abstracts the image codec/transform primitives the
// pipeline runs on. The production implementation binds libvips through
// govips behind the govips build tag; the fallback is a pure-Go
// implementation with reduced codec coverage.
package engine

import "strings"

type Metadata struct {
	Width  int
	Height int
	// Pages counts frames beyond the first; a value above zero means
	// the source is animated.
	Pages    int
	HasAlpha bool
	Format   string
}

type DecodeOptions struct {
	// AllFrames opens every animated frame instead of just the first.
	AllFrames bool
}

type EncodeParams struct {
	Quality int
	Effort  int
}

type Color struct {
	R, G, B uint8
}

var (
	White       = Color{R: 255, G: 255, B: 255}
	Transparent = Color{}
)

// Layer is one overlay to composite onto an image. Top/Left are explicit
// pixel offsets; when nil the overlay is anchored by Gravity.
type Layer struct {
	Overlay Image
	Tile    bool
	Gravity string
	Top     *int
	Left    *int
}

type Engine interface {
	Decode(data []byte, opts DecodeOptions) (Image, error)
	// NewCanvas returns a fully transparent image of the given size.
	NewCanvas(width, height int) (Image, error)
}

// Image is an exclusively-owned handle. Handles are not safe for
// concurrent use; the pipeline threads one handle linearly per request.
type Image interface {
	Metadata() Metadata
	Resize(width, height int) error
	Rotate(degrees float64, background Color) error
	Composite(layers []Layer) error
	Copy() (Image, error)
	// ScaleAlpha multiplies the alpha channel by factor in [0,1],
	// adding one if the image has none.
	ScaleAlpha(factor float64) error
	SetEncoder(format string, params EncodeParams)
	// Export encodes with the configured encoder and returns the bytes
	// with their format name. A handle that was never modified and has
	// no encoder set returns the original source bytes untouched.
	Export() ([]byte, string, error)
	Close()
}

// anchorOffset resolves a gravity name to the top-left offset of an overlay
// inside a base image.
func anchorOffset(gravity string, baseW, baseH, overW, overH int) (left, top int) {
	switch {
	case strings.HasPrefix(gravity, "north"):
		top = 0
	case strings.HasPrefix(gravity, "south"):
		top = baseH - overH
	default:
		top = (baseH - overH) / 2
	}
	switch {
	case strings.HasSuffix(gravity, "west"):
		left = 0
	case strings.HasSuffix(gravity, "east"):
		left = baseW - overW
	default:
		left = (baseW - overW) / 2
	}
	if top < 0 {
		top = 0
	}
	if left < 0 {
		left = 0
	}
	return left, top
}

func layerOffset(layer Layer, baseW, baseH, overW, overH int) (left, top int) {
	left, top = anchorOffset(layer.Gravity, baseW, baseH, overW, overH)
	if layer.Left != nil {
		left = *layer.Left
	}
	if layer.Top != nil {
		top = *layer.Top
	}
	return left, top
}

func normalizeFormat(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "jpeg"
	case "png", "webp", "gif", "svg":
		return strings.ToLower(format)
	default:
		return "png"
	}
}
