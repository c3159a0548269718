package pipeline

import (
	"context"

	"github.com/dunamismax/pixelgate/internal/apierr"
	"github.com/dunamismax/pixelgate/internal/engine"
)

// rotateAction rotates clockwise with a white background fill.
type rotateAction struct{}

func (rotateAction) Name() string { return "rotate" }

func (rotateAction) Validate(tokens []string) error {
	_, err := parseRotate(tokens)
	return err
}

func parseRotate(tokens []string) (int, error) {
	if len(tokens) != 2 {
		return 0, apierr.InvalidArgument("rotate action expects exactly one value")
	}
	deg, err := intInRange("rotate", tokens[1], 0, 360)
	if err != nil {
		return 0, err
	}
	if deg == 360 {
		deg = 0
	}
	return deg, nil
}

func (rotateAction) Process(_ context.Context, ictx *Context, tokens []string) error {
	deg, err := parseRotate(tokens)
	if err != nil {
		return err
	}
	if deg == 0 {
		return nil
	}
	return ictx.Image.Rotate(float64(deg), engine.White)
}

// qualityAction records an encoder quality override. It re-encodes in the
// source format unless a later format action picks another encoder.
type qualityAction struct{}

func (qualityAction) Name() string { return "quality" }

func (qualityAction) Validate(tokens []string) error {
	_, err := parseQuality(tokens)
	return err
}

func parseQuality(tokens []string) (int, error) {
	if len(tokens) != 2 {
		return 0, apierr.InvalidArgument("quality action expects exactly one value")
	}
	key, value, err := splitToken(tokens[1])
	if err != nil {
		return 0, err
	}
	if key != "q" {
		return 0, apierr.InvalidArgument("unknown key: %s", key)
	}
	return intInRange("q", value, 1, 100)
}

func (qualityAction) Process(_ context.Context, ictx *Context, tokens []string) error {
	q, err := parseQuality(tokens)
	if err != nil {
		return err
	}
	ictx.Quality = q
	ictx.Image.SetEncoder(ictx.Image.Metadata().Format, engine.EncodeParams{Quality: q})
	return nil
}
