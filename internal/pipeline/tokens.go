package pipeline

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/dunamismax/pixelgate/internal/apierr"
)

// splitToken breaks a key_value option token on the first underscore,
// leaving underscores inside the value intact (base64url values use them).
func splitToken(token string) (key, value string, err error) {
	parts := strings.SplitN(token, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apierr.InvalidArgument("malformed option: %s", token)
	}
	return parts[0], parts[1], nil
}

func intInRange(key, value string, min, max int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apierr.InvalidArgument("invalid %s value: %s", key, value)
	}
	if n < min || n > max {
		return 0, apierr.InvalidArgument("%s must be in [%d,%d], got %d", key, min, max, n)
	}
	return n, nil
}

func boolFlag(key, value string) (bool, error) {
	switch value {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, apierr.InvalidArgument("%s accepts only 0 or 1, got %s", key, value)
	}
}

// decodeBase64Value decodes text/image values, which are base64url
// encoded with or without padding.
func decodeBase64Value(key, value string) (string, error) {
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
	} {
		if decoded, err := enc.DecodeString(value); err == nil {
			return string(decoded), nil
		}
	}
	return "", apierr.InvalidArgument("invalid base64 in %s value", key)
}
