package pipeline

import (
	"testing"

	"github.com/dunamismax/pixelgate/internal/apierr"
)

func TestGravityConvertAliases(t *testing.T) {
	aliases := map[string]string{
		"se": "southeast",
		"sw": "southwest",
		"nw": "northwest",
		"ne": "northeast",
	}
	for alias, want := range aliases {
		got, err := gravityConvert(alias)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", alias, err)
		}
		if got != want {
			t.Errorf("%s: got %s, want %s", alias, got, want)
		}
	}
}

func TestGravityConvertLongForms(t *testing.T) {
	for _, g := range []string{"north", "west", "east", "south", "center", "southeast", "southwest", "northwest", "northeast"} {
		got, err := gravityConvert(g)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", g, err)
		}
		if got != g {
			t.Errorf("%s: got %s", g, got)
		}
	}

	got, err := gravityConvert("centre")
	if err != nil {
		t.Fatalf("centre: unexpected error: %v", err)
	}
	if got != "center" {
		t.Errorf("centre should normalize to center, got %s", got)
	}
}

func TestGravityConvertRejectsUnknown(t *testing.T) {
	for _, g := range []string{"", "middle", "top", "SE", "north-east"} {
		if _, err := gravityConvert(g); !apierr.IsInvalidArgument(err) {
			t.Errorf("%q: expected InvalidArgument, got %v", g, err)
		}
	}
}
