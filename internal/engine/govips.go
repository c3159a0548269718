//go:build govips && cgo

package engine

import (
	"fmt"
	"math"

	"github.com/davidbyttow/govips/v2/vips"
)

type govipsEngine struct{}

func New() Engine {
	return govipsEngine{}
}

func (govipsEngine) Decode(data []byte, opts DecodeOptions) (Image, error) {
	var (
		ref *vips.ImageRef
		err error
	)
	if opts.AllFrames {
		params := vips.NewImportParams()
		params.NumPages.Set(-1)
		ref, err = vips.LoadImageFromBuffer(data, params)
	} else {
		ref, err = vips.NewImageFromBuffer(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &govipsImage{ref: ref, source: data}, nil
}

func (govipsEngine) NewCanvas(width, height int) (Image, error) {
	ref, err := vips.Black(width, height)
	if err != nil {
		return nil, fmt.Errorf("create canvas: %w", err)
	}
	if err := ref.BandJoinConst([]float64{0, 0, 0}); err != nil {
		ref.Close()
		return nil, fmt.Errorf("add canvas bands: %w", err)
	}
	return &govipsImage{ref: ref, modified: true}, nil
}

type govipsImage struct {
	ref       *vips.ImageRef
	source    []byte
	modified  bool
	encFormat string
	enc       EncodeParams
}

func (g *govipsImage) Metadata() Metadata {
	pages := g.ref.Pages()
	if pages > 0 {
		pages--
	}
	return Metadata{
		Width:    g.ref.Width(),
		Height:   g.ref.PageHeight(),
		Pages:    pages,
		HasAlpha: g.ref.HasAlpha(),
		Format:   formatName(g.ref.Format()),
	}
}

func (g *govipsImage) Resize(width, height int) error {
	hscale := float64(width) / float64(g.ref.Width())
	vscale := float64(height) / float64(g.ref.PageHeight())
	if err := g.ref.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
		return fmt.Errorf("resize image: %w", err)
	}
	g.modified = true
	return nil
}

func (g *govipsImage) Rotate(degrees float64, background Color) error {
	bg := &vips.ColorRGBA{R: background.R, G: background.G, B: background.B, A: 255}
	if background == Transparent {
		if !g.ref.HasAlpha() {
			if err := g.ref.AddAlpha(); err != nil {
				return fmt.Errorf("add alpha before rotate: %w", err)
			}
		}
		bg.A = 0
	}
	if err := g.ref.Similarity(1, degrees, bg, 0, 0, 0, 0); err != nil {
		return fmt.Errorf("rotate image: %w", err)
	}
	g.modified = true
	return nil
}

func (g *govipsImage) Composite(layers []Layer) error {
	baseW, baseH := g.ref.Width(), g.ref.PageHeight()
	for _, layer := range layers {
		overlay, ok := layer.Overlay.(*govipsImage)
		if !ok {
			return fmt.Errorf("overlay is not a govips handle")
		}
		ref := overlay.ref
		if layer.Tile {
			tiled, err := ref.Copy()
			if err != nil {
				return fmt.Errorf("copy overlay for tiling: %w", err)
			}
			across := int(math.Ceil(float64(baseW) / float64(tiled.Width())))
			down := int(math.Ceil(float64(baseH) / float64(tiled.Height())))
			if err := tiled.Replicate(across, down); err != nil {
				return fmt.Errorf("tile overlay: %w", err)
			}
			if err := tiled.ExtractArea(0, 0, baseW, baseH); err != nil {
				return fmt.Errorf("crop tiled overlay: %w", err)
			}
			ref = tiled
		}
		left, top := layerOffset(layer, baseW, baseH, ref.Width(), ref.PageHeight())
		if err := g.ref.Composite(ref, vips.BlendModeOver, left, top); err != nil {
			return fmt.Errorf("composite overlay: %w", err)
		}
	}
	g.modified = true
	return nil
}

func (g *govipsImage) Copy() (Image, error) {
	ref, err := g.ref.Copy()
	if err != nil {
		return nil, fmt.Errorf("copy image: %w", err)
	}
	return &govipsImage{ref: ref, source: g.source, modified: g.modified}, nil
}

func (g *govipsImage) ScaleAlpha(factor float64) error {
	if !g.ref.HasAlpha() {
		if err := g.ref.AddAlpha(); err != nil {
			return fmt.Errorf("add alpha band: %w", err)
		}
	}
	bands := g.ref.Bands()
	a := make([]float64, bands)
	b := make([]float64, bands)
	for i := range a {
		a[i] = 1
	}
	a[bands-1] = factor
	if err := g.ref.Linear(a, b); err != nil {
		return fmt.Errorf("scale alpha: %w", err)
	}
	g.modified = true
	return nil
}

func (g *govipsImage) SetEncoder(format string, params EncodeParams) {
	g.encFormat = normalizeFormat(format)
	g.enc = params
}

func (g *govipsImage) Export() ([]byte, string, error) {
	format := g.encFormat
	if format == "" {
		if !g.modified && g.source != nil {
			return g.source, formatName(g.ref.Format()), nil
		}
		format = formatName(g.ref.Format())
	}

	switch normalizeFormat(format) {
	case "jpeg":
		params := vips.NewJpegExportParams()
		if g.enc.Quality > 0 {
			params.Quality = g.enc.Quality
		}
		data, _, err := g.ref.ExportJpeg(params)
		if err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return data, "jpeg", nil
	case "webp":
		params := vips.NewWebpExportParams()
		if g.enc.Quality > 0 {
			params.Quality = g.enc.Quality
		}
		if g.enc.Effort > 0 {
			params.ReductionEffort = g.enc.Effort
		}
		data, _, err := g.ref.ExportWebp(params)
		if err != nil {
			return nil, "", fmt.Errorf("encode webp: %w", err)
		}
		return data, "webp", nil
	case "gif":
		data, _, err := g.ref.ExportGIF(vips.NewGifExportParams())
		if err != nil {
			return nil, "", fmt.Errorf("encode gif: %w", err)
		}
		return data, "gif", nil
	default:
		params := vips.NewPngExportParams()
		if g.enc.Quality > 0 {
			params.Quality = g.enc.Quality
		}
		if g.enc.Effort > 0 {
			// png has no effort knob; the zlib compression level is the
			// closest analogue.
			params.Compression = g.enc.Effort
		}
		data, _, err := g.ref.ExportPng(params)
		if err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return data, "png", nil
	}
}

func (g *govipsImage) Close() {
	g.ref.Close()
}

func formatName(t vips.ImageType) string {
	switch t {
	case vips.ImageTypeJPEG:
		return "jpeg"
	case vips.ImageTypePNG:
		return "png"
	case vips.ImageTypeWEBP:
		return "webp"
	case vips.ImageTypeGIF:
		return "gif"
	case vips.ImageTypeSVG:
		return "svg"
	default:
		return "png"
	}
}
