package pipeline

import (
	"context"
	"fmt"

	"github.com/dunamismax/pixelgate/internal/apierr"
	"github.com/dunamismax/pixelgate/internal/engine"
)

var supportedFormats = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
	"gif":  true,
}

const supportedFormatList = "jpg, jpeg, png, webp, gif"

// formatAction selects the output encoder. Animated sources targeting a
// still format are reopened pinned to the first frame.
type formatAction struct{}

func (formatAction) Name() string { return "format" }

func (formatAction) Validate(tokens []string) error {
	if len(tokens) != 2 {
		return apierr.InvalidArgument("format action expects exactly one value")
	}
	if !supportedFormats[tokens[1]] {
		return apierr.InvalidArgument("unsupported format %q, supported formats: %s", tokens[1], supportedFormatList)
	}
	return nil
}

func (formatAction) BeforeFetch(features Features, tokens []string) error {
	target := tokens[1]
	// Animation-capable targets need every source frame decoded.
	features[FeatureReadAllFrames] = target == "webp" || target == "gif"
	return nil
}

func (formatAction) Process(_ context.Context, ictx *Context, tokens []string) error {
	target := tokens[1]

	// An explicit format overrides any upstream format negotiation.
	delete(ictx.Features, FeatureAutoFormat)

	if target == "gif" {
		return nil
	}

	md := ictx.Image.Metadata()
	if md.Pages > 0 && target != "webp" {
		// Animated source, still target: reopen at the first frame.
		img, err := ictx.Engine.Decode(ictx.Source, engine.DecodeOptions{})
		if err != nil {
			return fmt.Errorf("reopen first frame: %w", err)
		}
		ictx.ReplaceImage(img)
	}

	switch target {
	case "jpg", "jpeg":
		ictx.Image.SetEncoder("jpeg", engine.EncodeParams{Quality: ictx.Quality})
	case "png":
		ictx.Image.SetEncoder("png", engine.EncodeParams{Quality: 80, Effort: 2})
	case "webp":
		ictx.Image.SetEncoder("webp", engine.EncodeParams{Quality: 80, Effort: 2})
	}
	return nil
}
