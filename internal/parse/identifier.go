package parse

import (
	"fmt"
	"regexp"
	"strings"

	"pencil-me-in-backend/internal/event"
)

var (
	// "<display name>_<device id>"; device ids never contain an underscore.
	compositeRe = regexp.MustCompile(`^(.*)_([^_]+)$`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// ParsedIdentifier holds the parts of a participant identifier.
type ParsedIdentifier struct {
	Name     string
	DeviceID string
}

// ParseIdentifier splits a stored participant identifier into display name and device id.
// Bare identifiers come back with an empty Name.
func ParseIdentifier(raw string) (ParsedIdentifier, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedIdentifier{}, fmt.Errorf("empty participant identifier")
	}

	if m := compositeRe.FindStringSubmatch(s); m != nil {
		name := strings.TrimSpace(spaceRe.ReplaceAllString(m[1], " "))
		if name != "" {
			return ParsedIdentifier{Name: name, DeviceID: m[2]}, nil
		}
	}
	return ParsedIdentifier{DeviceID: s}, nil
}

// DisplayName renders an identifier for listings. The local device is shown as
// "You (name)".
func DisplayName(raw, localID string) string {
	if raw == event.LegacyPlaceholder {
		return raw
	}
	p, err := ParseIdentifier(raw)
	if err != nil {
		return "Anonymous"
	}

	name := p.Name
	if name == "" {
		name = p.DeviceID
	}
	if localID != "" && p.DeviceID == localID {
		if p.Name == "" {
			return event.LegacyPlaceholder
		}
		return event.LegacyPlaceholder + " (" + p.Name + ")"
	}
	return name
}
