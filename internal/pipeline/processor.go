package pipeline

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/pixelgate/internal/apierr"
	"github.com/dunamismax/pixelgate/internal/bufferstore"
	"github.com/dunamismax/pixelgate/internal/engine"
	"github.com/dunamismax/pixelgate/internal/parser"
)

type Result struct {
	Bytes       []byte
	Format      string
	ContentType string
	Transformed bool
	SourceBytes int
}

// Controller runs a parsed request end to end: validate every action
// first, run pre-fetch hooks, fetch the source once, process the actions
// in declared order, encode once. A request without a compound pipeline
// is served straight from the buffer store.
type Controller struct {
	registry *Registry
	engine   engine.Engine
	store    bufferstore.Store
	logger   *log.Logger
	tracer   trace.Tracer
}

func NewController(logger *log.Logger, eng engine.Engine, store bufferstore.Store) (*Controller, error) {
	if eng == nil {
		return nil, fmt.Errorf("image engine is required")
	}
	if store == nil {
		return nil, fmt.Errorf("buffer store is required")
	}
	return &Controller{
		registry: NewRegistry(),
		engine:   eng,
		store:    store,
		logger:   logger,
		tracer:   otel.Tracer("pixelgate/pipeline"),
	}, nil
}

type boundAction struct {
	action Action
	tokens []string
}

func (c *Controller) Run(ctx context.Context, req parser.ParsedRequest) (Result, error) {
	if !req.Transform() {
		obj, err := c.store.Get(ctx, req.ObjectURI)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Bytes:       obj.Bytes,
			ContentType: obj.ContentType,
			SourceBytes: len(obj.Bytes),
		}, nil
	}

	ctx, span := c.tracer.Start(ctx, "pipeline.run")
	span.SetAttributes(
		attribute.String("image.object_uri", req.ObjectURI),
		attribute.Int("image.action_groups", len(req.Actions)),
	)
	defer span.End()

	result, err := c.transform(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		return Result{}, err
	}
	span.SetStatus(codes.Ok, "transformed")
	return result, nil
}

func (c *Controller) transform(ctx context.Context, req parser.ParsedRequest) (Result, error) {
	// The first group's action drives the chain; an unknown driver is
	// rejected before anything else.
	driver := req.Actions[0][0]
	if _, ok := c.registry.Lookup(driver); !ok {
		return Result{}, apierr.InvalidArgument("unsupported action: %s", driver)
	}

	// Validate every group before any I/O.
	bound := make([]boundAction, 0, len(req.Actions))
	for _, tokens := range req.Actions {
		action, ok := c.registry.Lookup(tokens[0])
		if !ok {
			return Result{}, apierr.InvalidArgument("unsupported action: %s", tokens[0])
		}
		if err := action.Validate(tokens); err != nil {
			return Result{}, err
		}
		bound = append(bound, boundAction{action: action, tokens: tokens})
	}

	// Pre-fetch hooks decide how the source is decoded, so they must run
	// before the bytes are fetched.
	features := Features{}
	for _, b := range bound {
		if pf, ok := b.action.(preFetcher); ok {
			if err := pf.BeforeFetch(features, b.tokens); err != nil {
				return Result{}, err
			}
		}
	}

	obj, err := c.store.Get(ctx, req.ObjectURI)
	if err != nil {
		return Result{}, fmt.Errorf("fetch source: %w", err)
	}

	img, err := c.engine.Decode(obj.Bytes, engine.DecodeOptions{
		AllFrames: features[FeatureReadAllFrames],
	})
	if err != nil {
		return Result{}, fmt.Errorf("decode source: %w", err)
	}

	ictx := &Context{
		Engine:   c.engine,
		Image:    img,
		Source:   obj.Bytes,
		Features: features,
		Store:    c.store,
		Quality:  defaultQuality,
	}
	defer ictx.Close()

	for _, b := range bound {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := b.action.Process(ctx, ictx, b.tokens); err != nil {
			return Result{}, fmt.Errorf("process action %s: %w", b.action.Name(), err)
		}
	}

	data, format, err := ictx.Image.Export()
	if err != nil {
		return Result{}, fmt.Errorf("encode result: %w", err)
	}

	if c.logger != nil {
		c.logger.Printf("transformed object=%s groups=%d format=%s bytes_in=%d bytes_out=%d",
			req.ObjectURI, len(req.Actions), format, len(obj.Bytes), len(data))
	}

	return Result{
		Bytes:       data,
		Format:      format,
		ContentType: ContentTypeForFormat(format),
		Transformed: true,
		SourceBytes: len(obj.Bytes),
	}, nil
}

func ContentTypeForFormat(format string) string {
	switch format {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "svg":
		return "image/svg+xml"
	default:
		return "image/png"
	}
}
