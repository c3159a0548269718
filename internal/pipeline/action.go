// Package pipeline implements the action pipeline engine: the registry of
// typed actions, the controller that validates and sequences them, and the
// transform actions themselves.
package pipeline

import (
	"context"

	"github.com/dunamismax/pixelgate/internal/apierr"
)

// Feature flags computed by pre-fetch hooks and consumed when the source
// image is decoded.
const (
	// FeatureReadAllFrames asks the decoder to open every animated frame.
	FeatureReadAllFrames = "read_all_frames"
	// FeatureAutoFormat marks upstream content negotiation; an explicit
	// format action clears it.
	FeatureAutoFormat = "auto_format"
)

type Features map[string]bool

// Action is one named, independently validated transform step. Validate
// runs before any I/O; Process runs in declared order against the shared
// image context. tokens[0] is always the action name.
type Action interface {
	Name() string
	Validate(tokens []string) error
	Process(ctx context.Context, ictx *Context, tokens []string) error
}

// preFetcher is implemented by actions that need to influence how the
// source is decoded, before the bytes are fetched.
type preFetcher interface {
	BeforeFetch(features Features, tokens []string) error
}

// Registry is the closed set of pipeline actions, keyed by name.
type Registry struct {
	actions map[string]Action
}

func NewRegistry() *Registry {
	r := &Registry{actions: make(map[string]Action)}
	for _, a := range []Action{
		imageAction{},
		formatAction{},
		watermarkAction{},
		resizeAction{},
		rotateAction{},
		qualityAction{},
	} {
		r.actions[a.Name()] = a
	}
	return r
}

func (r *Registry) Lookup(name string) (Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// imageAction is the instruction namespace marker ("image/..."). It
// carries no options and transforms nothing.
type imageAction struct{}

func (imageAction) Name() string { return "image" }

func (imageAction) Validate(tokens []string) error {
	if len(tokens) != 1 {
		return apierr.InvalidArgument("image group takes no options")
	}
	return nil
}

func (imageAction) Process(context.Context, *Context, []string) error { return nil }
