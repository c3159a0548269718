package pipeline

import (
	"context"

	"github.com/dunamismax/pixelgate/internal/apierr"
)

// WatermarkOptions are the parsed watermark parameters with their
// defaults applied. X and Y distinguish "unset" from an explicit zero.
type WatermarkOptions struct {
	Text     string
	Image    string
	Opacity  int    // t, 0..100
	Gravity  string // long form
	Fill     bool
	Rotate   int // 0..360, 360 normalized to 0
	Size     int // font size, 0..1000
	Color    string // hex rgb, no leading #
	X        *int   // 0..4096
	Y        *int   // 0..4096
	VOffset  int    // -1000..1000
	Order    int    // 0 image-then-text, 1 text-then-image
	Interval int    // 0..1000, gap between text and image
	Align    int    // 0 top, 1 middle, 2 bottom
	Auto     bool   // shrink overlay to fit the target
}

// watermarkAction overlays text, an image, or both onto the target.
type watermarkAction struct{}

func (watermarkAction) Name() string { return "watermark" }

func (watermarkAction) Validate(tokens []string) error {
	_, err := parseWatermarkOptions(tokens)
	return err
}

func parseWatermarkOptions(tokens []string) (WatermarkOptions, error) {
	opts := WatermarkOptions{
		Opacity: 100,
		Gravity: "southeast",
		Size:    40,
		Color:   "000000",
		Auto:    true,
	}

	for _, token := range tokens[1:] {
		key, value, err := splitToken(token)
		if err != nil {
			return opts, err
		}
		switch key {
		case "text":
			if opts.Text, err = decodeBase64Value("text", value); err != nil {
				return opts, err
			}
		case "image":
			if opts.Image, err = decodeBase64Value("image", value); err != nil {
				return opts, err
			}
		case "t":
			if opts.Opacity, err = intInRange("t", value, 0, 100); err != nil {
				return opts, err
			}
		case "g":
			if opts.Gravity, err = gravityConvert(value); err != nil {
				return opts, err
			}
		case "fill":
			if opts.Fill, err = boolFlag("fill", value); err != nil {
				return opts, err
			}
		case "rotate":
			if opts.Rotate, err = intInRange("rotate", value, 0, 360); err != nil {
				return opts, err
			}
			if opts.Rotate == 360 {
				opts.Rotate = 0
			}
		case "size":
			if opts.Size, err = intInRange("size", value, 0, 1000); err != nil {
				return opts, err
			}
		case "color":
			if !isHexColor(value) {
				return opts, apierr.InvalidArgument("invalid color: %s", value)
			}
			opts.Color = value
		case "x":
			x, err := intInRange("x", value, 0, maxDimension)
			if err != nil {
				return opts, err
			}
			opts.X = &x
		case "y":
			y, err := intInRange("y", value, 0, maxDimension)
			if err != nil {
				return opts, err
			}
			opts.Y = &y
		case "voffset":
			if opts.VOffset, err = intInRange("voffset", value, -1000, 1000); err != nil {
				return opts, err
			}
		case "order":
			if opts.Order, err = intInRange("order", value, 0, 1); err != nil {
				return opts, err
			}
		case "interval":
			if opts.Interval, err = intInRange("interval", value, 0, 1000); err != nil {
				return opts, err
			}
		case "align":
			if opts.Align, err = intInRange("align", value, 0, 2); err != nil {
				return opts, err
			}
		case "auto":
			if opts.Auto, err = boolFlag("auto", value); err != nil {
				return opts, err
			}
		default:
			return opts, apierr.InvalidArgument("unknown key: %s", key)
		}
	}

	if opts.Text == "" && opts.Image == "" {
		return opts, apierr.InvalidArgument("watermark requires text or image")
	}
	return opts, nil
}

func isHexColor(value string) bool {
	if len(value) != 6 {
		return false
	}
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func (watermarkAction) Process(ctx context.Context, ictx *Context, tokens []string) error {
	opts, err := parseWatermarkOptions(tokens)
	if err != nil {
		return err
	}

	switch {
	case opts.Text != "" && opts.Image != "":
		return mixedWatermark(ctx, ictx, opts)
	case opts.Image != "":
		return imageWatermark(ctx, ictx, opts)
	default:
		return textWatermark(ctx, ictx, opts)
	}
}
