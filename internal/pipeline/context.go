package pipeline

import (
	"github.com/dunamismax/pixelgate/internal/bufferstore"
	"github.com/dunamismax/pixelgate/internal/engine"
)

// defaultQuality is the JPEG quality used when no quality action runs.
const defaultQuality = 75

// Context carries the state one transforming request threads through its
// actions: the exclusively-owned image handle, the original source bytes,
// the feature-flag set, and the buffer store for auxiliary fetches.
// A Context is never shared between requests.
type Context struct {
	Engine   engine.Engine
	Image    engine.Image
	Source   []byte
	Features Features
	Store    bufferstore.Store

	// Quality is an encoder override recorded by the quality action and
	// consulted by later encoder selection.
	Quality int
}

// ReplaceImage hands ownership of a new handle to the context, releasing
// the previous one.
func (c *Context) ReplaceImage(img engine.Image) {
	if c.Image != nil {
		c.Image.Close()
	}
	c.Image = img
}

func (c *Context) Close() {
	if c.Image != nil {
		c.Image.Close()
		c.Image = nil
	}
}
