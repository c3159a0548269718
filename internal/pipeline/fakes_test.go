package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dunamismax/pixelgate/internal/apierr"
	"github.com/dunamismax/pixelgate/internal/bufferstore"
	"github.com/dunamismax/pixelgate/internal/engine"
)

// fakeEngine records every operation applied to any handle it produced,
// in order, so tests can assert on the composition sequence without a
// real codec.
type fakeEngine struct {
	metadata  map[string]engine.Metadata
	events    []string
	decodes   int
	allFrames []bool
	svgs      []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{metadata: make(map[string]engine.Metadata)}
}

func (e *fakeEngine) record(format string, args ...any) {
	e.events = append(e.events, fmt.Sprintf(format, args...))
}

func (e *fakeEngine) Decode(data []byte, opts engine.DecodeOptions) (engine.Image, error) {
	e.decodes++
	e.allFrames = append(e.allFrames, opts.AllFrames)

	md, ok := e.metadata[string(data)]
	if !ok {
		if bytes.Contains(data, []byte("<svg")) {
			e.svgs = append(e.svgs, string(data))
			md = engine.Metadata{Width: 10, Height: 10, HasAlpha: true, Format: "svg"}
		} else {
			md = engine.Metadata{Width: 100, Height: 100, Format: "png"}
		}
	}
	if !opts.AllFrames {
		md.Pages = 0
	}
	return &fakeImage{eng: e, md: md, source: data}, nil
}

func (e *fakeEngine) NewCanvas(width, height int) (engine.Image, error) {
	e.record("canvas %dx%d", width, height)
	return &fakeImage{
		eng:      e,
		md:       engine.Metadata{Width: width, Height: height, HasAlpha: true},
		modified: true,
	}, nil
}

type fakeImage struct {
	eng       *fakeEngine
	md        engine.Metadata
	source    []byte
	modified  bool
	encFormat string
	enc       engine.EncodeParams
	closed    bool
}

func (f *fakeImage) Metadata() engine.Metadata { return f.md }

func (f *fakeImage) Resize(width, height int) error {
	f.eng.record("resize %dx%d", width, height)
	f.md.Width, f.md.Height = width, height
	f.modified = true
	return nil
}

func (f *fakeImage) Rotate(degrees float64, background engine.Color) error {
	f.eng.record("rotate %.0f", degrees)
	f.modified = true
	return nil
}

func (f *fakeImage) Composite(layers []engine.Layer) error {
	for _, layer := range layers {
		desc := layer.Gravity
		if layer.Top != nil || layer.Left != nil {
			desc = fmt.Sprintf("%s@explicit", desc)
		}
		if layer.Tile {
			desc += "+tile"
		}
		f.eng.record("composite %s", desc)
	}
	f.modified = true
	return nil
}

func (f *fakeImage) Copy() (engine.Image, error) {
	f.eng.record("copy")
	clone := *f
	return &clone, nil
}

func (f *fakeImage) ScaleAlpha(factor float64) error {
	f.eng.record("scale_alpha %.2f", factor)
	f.modified = true
	return nil
}

func (f *fakeImage) SetEncoder(format string, params engine.EncodeParams) {
	f.encFormat = format
	f.enc = params
}

func (f *fakeImage) Export() ([]byte, string, error) {
	if f.encFormat == "" && !f.modified && f.source != nil {
		return f.source, f.md.Format, nil
	}
	format := f.encFormat
	if format == "" {
		format = f.md.Format
	}
	return []byte("encoded:" + format), format, nil
}

func (f *fakeImage) Close() { f.closed = true }

type fakeBufferStore struct {
	objects map[string]bufferstore.Object
	gets    []string
}

func newFakeBufferStore() *fakeBufferStore {
	return &fakeBufferStore{objects: make(map[string]bufferstore.Object)}
}

func (s *fakeBufferStore) Get(_ context.Context, uri string) (bufferstore.Object, error) {
	s.gets = append(s.gets, uri)
	obj, ok := s.objects[uri]
	if !ok {
		return bufferstore.Object{}, apierr.NotFound("object not found: %s", uri)
	}
	return obj, nil
}

func hasEvent(events []string, want string) bool {
	for _, ev := range events {
		if ev == want {
			return true
		}
	}
	return false
}

func objectWithBytes(data string) bufferstore.Object {
	return bufferstore.Object{Bytes: []byte(data), ContentType: "image/png"}
}

func opaqueMetadata(width, height int) engine.Metadata {
	return engine.Metadata{Width: width, Height: height, Format: "png"}
}

func alphaMetadata(width, height int) engine.Metadata {
	return engine.Metadata{Width: width, Height: height, HasAlpha: true, Format: "png"}
}
