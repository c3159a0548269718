package engine

import "testing"

func TestAnchorOffset(t *testing.T) {
	tests := []struct {
		gravity  string
		wantLeft int
		wantTop  int
	}{
		{"northwest", 0, 0},
		{"north", 45, 0},
		{"northeast", 90, 0},
		{"west", 0, 40},
		{"center", 45, 40},
		{"east", 90, 40},
		{"southwest", 0, 80},
		{"south", 45, 80},
		{"southeast", 90, 80},
	}
	for _, tc := range tests {
		left, top := anchorOffset(tc.gravity, 100, 100, 10, 20)
		if left != tc.wantLeft || top != tc.wantTop {
			t.Errorf("%s: got (%d,%d), want (%d,%d)", tc.gravity, left, top, tc.wantLeft, tc.wantTop)
		}
	}
}

func TestAnchorOffsetClampsOversizedOverlay(t *testing.T) {
	left, top := anchorOffset("southeast", 50, 50, 80, 80)
	if left != 0 || top != 0 {
		t.Fatalf("expected clamped origin, got (%d,%d)", left, top)
	}
}

func TestLayerOffsetExplicitBeatsGravity(t *testing.T) {
	ten := 10
	layer := Layer{Gravity: "southeast", Left: &ten}
	left, top := layerOffset(layer, 100, 100, 10, 10)
	if left != 10 {
		t.Fatalf("explicit left must win, got %d", left)
	}
	if top != 90 {
		t.Fatalf("gravity top expected 90, got %d", top)
	}
}

func TestNormalizeFormat(t *testing.T) {
	if got := normalizeFormat("jpg"); got != "jpeg" {
		t.Fatalf("jpg should normalize to jpeg, got %s", got)
	}
	if got := normalizeFormat("bmp"); got != "png" {
		t.Fatalf("unknown formats default to png, got %s", got)
	}
	if got := normalizeFormat("GIF"); got != "gif" {
		t.Fatalf("expected gif, got %s", got)
	}
}
