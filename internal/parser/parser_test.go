package parser

import (
	"net/url"
	"testing"

	"github.com/dunamismax/pixelgate/internal/apierr"
)

func TestParsePassthrough(t *testing.T) {
	req, err := Parse("/photos/cat.png", url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ObjectURI != "photos/cat.png" {
		t.Fatalf("unexpected object uri: %s", req.ObjectURI)
	}
	if req.Transform() {
		t.Fatal("request without an instruction must be a passthrough")
	}
}

func TestParseCompoundInstruction(t *testing.T) {
	query := url.Values{}
	query.Set(InstructionParam, "image/watermark,text_5L2g5aW9,g_se,t_80/format,jpg")

	req, err := Parse("/photos/cat.png", query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.Transform() {
		t.Fatal("expected a compound pipeline")
	}
	if len(req.Actions) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(req.Actions))
	}
	if req.Actions[0][0] != "image" {
		t.Fatalf("unexpected driver group: %v", req.Actions[0])
	}
	if req.Actions[1][0] != "watermark" || len(req.Actions[1]) != 4 {
		t.Fatalf("unexpected watermark group: %v", req.Actions[1])
	}
	if req.Actions[2][0] != "format" || req.Actions[2][1] != "jpg" {
		t.Fatalf("unexpected format group: %v", req.Actions[2])
	}
}

func TestParseSingleGroupIsPassthrough(t *testing.T) {
	query := url.Values{}
	query.Set(InstructionParam, "image")

	req, err := Parse("/a.jpg", query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Transform() {
		t.Fatal("single-group instruction must be a passthrough")
	}
}

func TestParseMalformedGroup(t *testing.T) {
	query := url.Values{}
	query.Set(InstructionParam, "image//format,jpg")

	_, err := Parse("/a.jpg", query)
	if !apierr.IsInvalidArgument(err) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestParseEmptyObjectKey(t *testing.T) {
	if _, err := Parse("/", url.Values{}); !apierr.IsInvalidArgument(err) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestInstructionRoundTrip(t *testing.T) {
	query := url.Values{}
	query.Set(InstructionParam, "image/resize,w_200/format,webp")

	req, err := Parse("/a.jpg", query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := req.Instruction(); got != "image/resize,w_200/format,webp" {
		t.Fatalf("unexpected instruction: %s", got)
	}
}
