package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/dunamismax/pixelgate/internal/engine"
)

// textMargin pads the estimated text box and the rendering canvas.
const textMargin = 10

type textMetrics struct {
	width  int
	height int
}

// calculateTextSize estimates the rendered pixel box of a string with
// per-character-class widths. The thresholds are load-bearing for
// compatibility with existing styles; do not "improve" them.
func calculateTextSize(text string, fontSize int) textMetrics {
	width := 0.0
	for _, r := range text {
		switch {
		case r > 256:
			// Full-width/CJK code points take a whole em.
			width += float64(fontSize)
		case r > 97:
			width += float64(fontSize) / 2
		default:
			width += float64(fontSize) * 0.8
		}
	}
	return textMetrics{
		width:  int(math.Round(width)) + textMargin,
		height: int(math.Round(float64(fontSize) * 1.2)),
	}
}

var svgEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// textSVG builds the vector markup for a text overlay, center-anchored in
// its own viewbox. A negative opacity leaves the attribute out (used on
// the rotated path, where opacity cannot be baked into the markup); zero
// is a real value and renders the text invisible.
func textSVG(text string, m textMetrics, fontSize int, colorHex string, opacity float64) string {
	opacityAttr := ""
	if opacity >= 0 && opacity < 1 {
		opacityAttr = fmt.Sprintf(` opacity="%.2f"`, opacity)
	}
	return fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
			`<text x="50%%" y="50%%" text-anchor="middle" dominant-baseline="central" font-size="%d" fill="#%s"%s>%s</text></svg>`,
		m.width, m.height, m.width, m.height,
		fontSize, colorHex, opacityAttr, svgEscaper.Replace(text),
	)
}

// renderText rasterizes the text markup onto a transparent canvas sized to
// the metrics plus margin. When withOpacity is false the raster keeps an
// opaque alpha so it can be rotated and faded afterwards.
func renderText(ictx *Context, opts WatermarkOptions, m textMetrics, withOpacity bool) (engine.Image, error) {
	opacity := -1.0
	if withOpacity {
		opacity = float64(opts.Opacity) / 100
	}

	markup := textSVG(opts.Text, m, opts.Size, opts.Color, opacity)
	overlay, err := ictx.Engine.Decode([]byte(markup), engine.DecodeOptions{})
	if err != nil {
		return nil, fmt.Errorf("rasterize text markup: %w", err)
	}
	defer overlay.Close()

	canvas, err := ictx.Engine.NewCanvas(m.width+textMargin, m.height+textMargin)
	if err != nil {
		return nil, fmt.Errorf("create text canvas: %w", err)
	}
	if err := canvas.Composite([]engine.Layer{{Overlay: overlay, Gravity: "center"}}); err != nil {
		canvas.Close()
		return nil, fmt.Errorf("compose text canvas: %w", err)
	}
	return canvas, nil
}

func textWatermark(_ context.Context, ictx *Context, opts WatermarkOptions) error {
	md := ictx.Image.Metadata()

	m := calculateTextSize(opts.Text, opts.Size)
	if opts.Auto {
		// Vector variant of auto-fit: shrink the metric itself to the
		// bare target dimension; width and height are independent.
		if m.width > md.Width {
			m.width = md.Width
		}
		if m.height > md.Height {
			m.height = md.Height
		}
	}

	if opts.Rotate == 0 {
		overlay, err := renderText(ictx, opts, m, true)
		if err != nil {
			return err
		}
		defer overlay.Close()
		return ictx.Image.Composite([]engine.Layer{{
			Overlay: overlay,
			Tile:    opts.Fill,
			Gravity: opts.Gravity,
		}})
	}

	// Rotation path: render opaque, rotate with transparent corners,
	// fit, fade, then composite.
	overlay, err := renderText(ictx, opts, m, false)
	if err != nil {
		return err
	}
	defer overlay.Close()

	if err := overlay.Rotate(float64(opts.Rotate), engine.Transparent); err != nil {
		return fmt.Errorf("rotate text overlay: %w", err)
	}
	if opts.Auto {
		if err := autoFitOverlay(overlay, md.Width, md.Height); err != nil {
			return err
		}
	}
	if opts.Opacity < 100 {
		if err := overlay.ScaleAlpha(float64(opts.Opacity) / 100); err != nil {
			return err
		}
	}
	return ictx.Image.Composite([]engine.Layer{{
		Overlay: overlay,
		Tile:    opts.Fill,
		Gravity: opts.Gravity,
	}})
}

// autoFitOverlay is the raster variant of auto-fit: each dimension that
// exceeds the target shrinks to the target dimension minus a margin,
// independently of the other axis.
func autoFitOverlay(overlay engine.Image, targetW, targetH int) error {
	md := overlay.Metadata()
	width, height := md.Width, md.Height
	fit := false
	if width > targetW {
		width = targetW - textMargin
		fit = true
	}
	if height > targetH {
		height = targetH - textMargin
		fit = true
	}
	if !fit {
		return nil
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if err := overlay.Resize(width, height); err != nil {
		return fmt.Errorf("fit overlay: %w", err)
	}
	return nil
}
