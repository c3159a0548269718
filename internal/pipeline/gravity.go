package pipeline

import "github.com/dunamismax/pixelgate/internal/apierr"

var gravityAliases = map[string]string{
	"se": "southeast",
	"sw": "southwest",
	"nw": "northwest",
	"ne": "northeast",
}

var gravityNames = map[string]bool{
	"north":     true,
	"west":      true,
	"east":      true,
	"south":     true,
	"center":    true,
	"southeast": true,
	"southwest": true,
	"northwest": true,
	"northeast": true,
}

// gravityConvert maps a gravity token to its canonical long form. Short
// compass aliases and the "centre" spelling are accepted.
func gravityConvert(g string) (string, error) {
	if long, ok := gravityAliases[g]; ok {
		return long, nil
	}
	if g == "centre" {
		return "center", nil
	}
	if gravityNames[g] {
		return g, nil
	}
	return "", apierr.InvalidArgument("invalid gravity: %s", g)
}
