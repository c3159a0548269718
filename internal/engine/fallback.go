//go:build !govips || !cgo

package engine

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// The fallback engine covers the formats the Go ecosystem decodes natively.
// SVG rasterization and webp encoding need libvips and report explicit
// errors when the binary was built without the govips tag.
var ErrNeedsGovips = errors.New("operation requires the govips build")

type fallbackEngine struct{}

func New() Engine {
	return fallbackEngine{}
}

func Startup() error { return nil }

func Shutdown() {}

func (fallbackEngine) Decode(data []byte, opts DecodeOptions) (Image, error) {
	if looksLikeSVG(data) {
		return nil, fmt.Errorf("decode svg: %w", ErrNeedsGovips)
	}

	pages := 0
	if opts.AllFrames {
		if anim, err := gif.DecodeAll(bytes.NewReader(data)); err == nil {
			pages = len(anim.Image) - 1
		}
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	return &fallbackImage{
		img:       imaging.Clone(src),
		source:    data,
		srcFormat: normalizeFormat(format),
		pages:     pages,
	}, nil
}

func (fallbackEngine) NewCanvas(width, height int) (Image, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", width, height)
	}
	return &fallbackImage{
		img:      image.NewNRGBA(image.Rect(0, 0, width, height)),
		modified: true,
	}, nil
}

type fallbackImage struct {
	img       *image.NRGBA
	source    []byte
	srcFormat string
	pages     int
	modified  bool
	encFormat string
	enc       EncodeParams
}

func (f *fallbackImage) Metadata() Metadata {
	bounds := f.img.Bounds()
	return Metadata{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Pages:    f.pages,
		HasAlpha: !f.img.Opaque(),
		Format:   f.srcFormat,
	}
}

func (f *fallbackImage) Resize(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("invalid resize target %dx%d", width, height)
	}
	f.img = imaging.Resize(f.img, width, height, imaging.Lanczos)
	f.modified = true
	return nil
}

func (f *fallbackImage) Rotate(degrees float64, background Color) error {
	bg := color.NRGBA{R: background.R, G: background.G, B: background.B, A: 255}
	if background == Transparent {
		bg = color.NRGBA{}
	}
	// imaging rotates counter-clockwise; the pipeline specifies
	// clockwise degrees.
	f.img = imaging.Rotate(f.img, -degrees, bg)
	f.modified = true
	return nil
}

func (f *fallbackImage) Composite(layers []Layer) error {
	bounds := f.img.Bounds()
	baseW, baseH := bounds.Dx(), bounds.Dy()

	for _, layer := range layers {
		overlay, ok := layer.Overlay.(*fallbackImage)
		if !ok {
			return fmt.Errorf("overlay is not a fallback handle")
		}
		ob := overlay.img.Bounds()
		overW, overH := ob.Dx(), ob.Dy()

		if layer.Tile {
			for top := 0; top < baseH; top += overH {
				for left := 0; left < baseW; left += overW {
					f.drawOverlay(overlay.img, left, top)
				}
			}
			continue
		}

		left, top := layerOffset(layer, baseW, baseH, overW, overH)
		f.drawOverlay(overlay.img, left, top)
	}
	f.modified = true
	return nil
}

func (f *fallbackImage) drawOverlay(overlay *image.NRGBA, left, top int) {
	rect := overlay.Bounds().Add(image.Pt(left, top))
	draw.Draw(f.img, rect, overlay, overlay.Bounds().Min, draw.Over)
}

func (f *fallbackImage) Copy() (Image, error) {
	return &fallbackImage{
		img:       imaging.Clone(f.img),
		source:    f.source,
		srcFormat: f.srcFormat,
		pages:     f.pages,
		modified:  f.modified,
	}, nil
}

func (f *fallbackImage) ScaleAlpha(factor float64) error {
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	bounds := f.img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := f.img.Pix[(y-bounds.Min.Y)*f.img.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			idx := x*4 + 3
			row[idx] = uint8(float64(row[idx]) * factor)
		}
	}
	f.modified = true
	return nil
}

func (f *fallbackImage) SetEncoder(format string, params EncodeParams) {
	f.encFormat = normalizeFormat(format)
	f.enc = params
}

func (f *fallbackImage) Export() ([]byte, string, error) {
	format := f.encFormat
	if format == "" {
		if !f.modified && f.source != nil {
			return f.source, f.srcFormat, nil
		}
		format = f.srcFormat
		if format == "" {
			format = "png"
		}
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		quality := f.enc.Quality
		if quality <= 0 || quality > 100 {
			quality = 80
		}
		if err := jpeg.Encode(&buf, f.img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "jpeg", nil
	case "png":
		encoder := png.Encoder{CompressionLevel: pngCompression(f.enc.Effort)}
		if err := encoder.Encode(&buf, f.img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "png", nil
	case "gif":
		if err := gif.Encode(&buf, f.img, nil); err != nil {
			return nil, "", fmt.Errorf("encode gif: %w", err)
		}
		return buf.Bytes(), "gif", nil
	case "webp":
		return nil, "", fmt.Errorf("encode webp: %w", ErrNeedsGovips)
	default:
		return nil, "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// pngCompression maps the generic encode effort onto the stdlib's
// compression levels. Low effort favors speed, high effort favors size.
func pngCompression(effort int) png.CompressionLevel {
	switch {
	case effort <= 0:
		return png.DefaultCompression
	case effort <= 3:
		return png.BestSpeed
	case effort <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

func (f *fallbackImage) Close() {}

func looksLikeSVG(data []byte) bool {
	head := bytes.TrimSpace(data)
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.HasPrefix(head, []byte("<svg")) ||
		(bytes.HasPrefix(head, []byte("<?xml")) && bytes.Contains(head, []byte("<svg")))
}
