// Package parser turns a request path and query into the object key and the
// ordered action groups of the processing instruction.
package parser

import (
	"net/url"
	"strings"

	"github.com/dunamismax/pixelgate/internal/apierr"
)

// InstructionParam carries the processing instruction, e.g.
// x-image-process=image/watermark,text_5L2g5aW9,g_se,t_80/format,jpg
const InstructionParam = "x-image-process"

type ParsedRequest struct {
	ObjectURI string
	// Actions holds one token slice per instruction group, in source
	// order. Order is semantically significant: resize-then-watermark
	// differs from watermark-then-resize.
	Actions [][]string
}

// Transform reports whether the request asks for a compound pipeline.
// A missing instruction or a single group is a raw passthrough fetch.
func (r ParsedRequest) Transform() bool {
	return len(r.Actions) > 1
}

// Instruction reassembles the raw instruction string, used for cache keys.
func (r ParsedRequest) Instruction() string {
	groups := make([]string, 0, len(r.Actions))
	for _, tokens := range r.Actions {
		groups = append(groups, strings.Join(tokens, ","))
	}
	return strings.Join(groups, "/")
}

func Parse(path string, query url.Values) (ParsedRequest, error) {
	objectURI := strings.TrimPrefix(path, "/")
	if objectURI == "" {
		return ParsedRequest{}, apierr.InvalidArgument("object key is required")
	}

	raw := strings.Trim(query.Get(InstructionParam), "/")
	if raw == "" {
		return ParsedRequest{ObjectURI: objectURI}, nil
	}

	groups := strings.Split(raw, "/")
	actions := make([][]string, 0, len(groups))
	for _, group := range groups {
		tokens := strings.Split(group, ",")
		if len(tokens) == 0 || strings.TrimSpace(tokens[0]) == "" {
			return ParsedRequest{}, apierr.InvalidArgument("malformed action group: %q", group)
		}
		actions = append(actions, tokens)
	}

	return ParsedRequest{ObjectURI: objectURI, Actions: actions}, nil
}
