package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/dunamismax/pixelgate/internal/engine"
)

// overlayPosition is an absolute placement; nil fields stay on the
// engine's native gravity anchor.
type overlayPosition struct {
	Left *int
	Top  *int
}

// calculateImgPos resolves gravity plus the optional explicit offsets to
// absolute pixel coordinates. South-anchored y and east-anchored x are
// measured from the bottom/right edge.
func calculateImgPos(opts WatermarkOptions, baseW, baseH, overW, overH int) overlayPosition {
	var pos overlayPosition

	switch opts.Gravity {
	case "east", "west", "center":
		top := (baseH-overH)/2 + opts.VOffset
		pos.Top = &top
	default:
		if opts.Y != nil {
			top := *opts.Y
			if strings.HasPrefix(opts.Gravity, "south") {
				top = baseH - overH - *opts.Y
			}
			pos.Top = &top
		}
	}

	switch {
	case opts.Gravity == "north" || opts.Gravity == "south" || opts.Gravity == "center":
		left := (baseW - overW) / 2
		pos.Left = &left
	case opts.X != nil:
		left := *opts.X
		if strings.HasSuffix(opts.Gravity, "east") {
			left = baseW - overW - *opts.X
		}
		pos.Left = &left
	}

	return pos
}

type mixedGravity struct {
	image string
	text  string
}

// calculateMixedGravity pairs opposing anchors for the side-by-side
// layout: order picks reading order, align picks the vertical anchor.
func calculateMixedGravity(order, align int) mixedGravity {
	var g mixedGravity
	switch align {
	case 0:
		g = mixedGravity{image: "northwest", text: "northeast"}
	case 2:
		g = mixedGravity{image: "southwest", text: "southeast"}
	default:
		g = mixedGravity{image: "west", text: "east"}
	}
	if order == 1 {
		g.image, g.text = g.text, g.image
	}
	return g
}

func fetchOverlay(ctx context.Context, ictx *Context, opts WatermarkOptions) (engine.Image, error) {
	obj, err := ictx.Store.Get(ctx, opts.Image)
	if err != nil {
		return nil, fmt.Errorf("fetch watermark image: %w", err)
	}
	overlay, err := ictx.Engine.Decode(obj.Bytes, engine.DecodeOptions{})
	if err != nil {
		return nil, fmt.Errorf("decode watermark image: %w", err)
	}
	return overlay, nil
}

func imageWatermark(ctx context.Context, ictx *Context, opts WatermarkOptions) error {
	overlay, err := fetchOverlay(ctx, ictx, opts)
	if err != nil {
		return err
	}
	defer overlay.Close()

	if opts.Rotate > 0 {
		if err := overlay.Rotate(float64(opts.Rotate), engine.White); err != nil {
			return fmt.Errorf("rotate watermark image: %w", err)
		}
	}

	md := ictx.Image.Metadata()
	if opts.Auto {
		if err := autoFitOverlay(overlay, md.Width, md.Height); err != nil {
			return err
		}
	}

	return compositeWatermark(ictx, overlay, opts, overlay.Metadata().HasAlpha)
}

func mixedWatermark(ctx context.Context, ictx *Context, opts WatermarkOptions) error {
	overlay, err := fetchOverlay(ctx, ictx, opts)
	if err != nil {
		return err
	}
	defer overlay.Close()

	omd := overlay.Metadata()
	m := calculateTextSize(opts.Text, opts.Size)

	// renderText pads its canvas by the text margin; size the strip to the
	// rendered raster so the text edge is not clipped.
	textW := m.width + textMargin
	textH := m.height + textMargin

	canvasW := textW + omd.Width + opts.Interval
	canvasH := textH
	if omd.Height > canvasH {
		canvasH = omd.Height
	}

	// Opacity is applied at the blend stage, so the text renders opaque.
	text, err := renderText(ictx, opts, m, false)
	if err != nil {
		return err
	}
	defer text.Close()

	canvas, err := ictx.Engine.NewCanvas(canvasW, canvasH)
	if err != nil {
		return fmt.Errorf("create mixed canvas: %w", err)
	}
	defer canvas.Close()

	grav := calculateMixedGravity(opts.Order, opts.Align)
	if err := canvas.Composite([]engine.Layer{
		{Overlay: overlay, Gravity: grav.image},
		{Overlay: text, Gravity: grav.text},
	}); err != nil {
		return fmt.Errorf("compose mixed canvas: %w", err)
	}

	md := ictx.Image.Metadata()
	fitW, fitH := canvasW, canvasH
	if fitW > md.Width {
		fitW = md.Width - 1
	}
	if fitH > md.Height {
		fitH = md.Height - 1
	}
	if fitW != canvasW || fitH != canvasH {
		if fitW < 1 {
			fitW = 1
		}
		if fitH < 1 {
			fitH = 1
		}
		if err := canvas.Resize(fitW, fitH); err != nil {
			return fmt.Errorf("fit mixed canvas: %w", err)
		}
	}

	return compositeWatermark(ictx, canvas, opts, omd.HasAlpha)
}

// compositeWatermark lays the prepared overlay onto the target. When the
// requested opacity is partial and the watermark carries alpha, the
// overlay is blended in two passes: composite onto a copy of the base,
// scale the whole copy's alpha, then lay the copy over the original. The
// engine's per-layer alpha alone cannot blend against existing content.
func compositeWatermark(ictx *Context, overlay engine.Image, opts WatermarkOptions, hasAlpha bool) error {
	md := ictx.Image.Metadata()
	omd := overlay.Metadata()
	pos := calculateImgPos(opts, md.Width, md.Height, omd.Width, omd.Height)

	layer := engine.Layer{
		Overlay: overlay,
		Tile:    opts.Fill,
		Gravity: opts.Gravity,
		Top:     pos.Top,
		Left:    pos.Left,
	}

	if opts.Opacity < 100 && hasAlpha {
		blended, err := ictx.Image.Copy()
		if err != nil {
			return fmt.Errorf("copy base for blend: %w", err)
		}
		defer blended.Close()

		if err := blended.Composite([]engine.Layer{layer}); err != nil {
			return fmt.Errorf("composite blend copy: %w", err)
		}
		if err := blended.ScaleAlpha(float64(opts.Opacity) / 100); err != nil {
			return err
		}
		origin := 0
		return ictx.Image.Composite([]engine.Layer{{
			Overlay: blended,
			Top:     &origin,
			Left:    &origin,
		}})
	}

	return ictx.Image.Composite([]engine.Layer{layer})
}
