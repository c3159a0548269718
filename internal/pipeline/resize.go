package pipeline

import (
	"context"

	"github.com/dunamismax/pixelgate/internal/apierr"
)

const maxDimension = 4096

type resizeOptions struct {
	Width  int
	Height int
	Mode   string // lfit (default) or fixed
}

// resizeAction scales the image. lfit fits within the requested box
// preserving aspect ratio; fixed forces the exact box.
type resizeAction struct{}

func (resizeAction) Name() string { return "resize" }

func (resizeAction) Validate(tokens []string) error {
	_, err := parseResizeOptions(tokens)
	return err
}

func parseResizeOptions(tokens []string) (resizeOptions, error) {
	opts := resizeOptions{Mode: "lfit"}
	for _, token := range tokens[1:] {
		key, value, err := splitToken(token)
		if err != nil {
			return opts, err
		}
		switch key {
		case "w":
			if opts.Width, err = intInRange("w", value, 1, maxDimension); err != nil {
				return opts, err
			}
		case "h":
			if opts.Height, err = intInRange("h", value, 1, maxDimension); err != nil {
				return opts, err
			}
		case "m":
			if value != "lfit" && value != "fixed" {
				return opts, apierr.InvalidArgument("invalid resize mode: %s", value)
			}
			opts.Mode = value
		default:
			return opts, apierr.InvalidArgument("unknown key: %s", key)
		}
	}
	if opts.Width == 0 && opts.Height == 0 {
		return opts, apierr.InvalidArgument("resize requires w or h")
	}
	return opts, nil
}

func (resizeAction) Process(_ context.Context, ictx *Context, tokens []string) error {
	opts, err := parseResizeOptions(tokens)
	if err != nil {
		return err
	}

	md := ictx.Image.Metadata()
	width, height := opts.Width, opts.Height

	if opts.Mode == "fixed" {
		if width == 0 {
			width = md.Width
		}
		if height == 0 {
			height = md.Height
		}
		return ictx.Image.Resize(width, height)
	}

	scale := 1.0
	if width > 0 {
		scale = float64(width) / float64(md.Width)
	}
	if height > 0 {
		if s := float64(height) / float64(md.Height); width == 0 || s < scale {
			scale = s
		}
	}

	width = int(float64(md.Width) * scale)
	height = int(float64(md.Height) * scale)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return ictx.Image.Resize(width, height)
}
