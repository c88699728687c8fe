package pdf

import (
	"fmt"
	"strconv"
	"strings"
)

// RGB is a color in 0-255 components.
type RGB struct {
	R, G, B int
}

var namedColors = map[string]RGB{
	"black":         {0, 0, 0},
	"white":         {255, 255, 255},
	"red":           {255, 0, 0},
	"darkred":       {139, 0, 0},
	"green":         {0, 128, 0},
	"darkgreen":     {0, 100, 0},
	"blue":          {0, 0, 255},
	"navy":          {0, 0, 128},
	"purple":        {128, 0, 128},
	"indigo":        {75, 0, 130},
	"gold":          {255, 215, 0},
	"brown":         {165, 42, 42},
	"saddlebrown":   {139, 69, 19},
	"grey":          {128, 128, 128},
	"gray":          {128, 128, 128},
	"slategrey":     {112, 128, 144},
	"slategray":     {112, 128, 144},
	"darkslategrey": {47, 79, 79},
	"darkslategray": {47, 79, 79},
	"dimgrey":       {105, 105, 105},
	"dimgray":       {105, 105, 105},
}

// ParseColor accepts "#RRGGBB", "#RGB" or a CSS color name.
func ParseColor(value string) (RGB, error) {
	s := strings.ToLower(strings.TrimSpace(value))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return RGB{}, fmt.Errorf("unknown color %q", value)
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return RGB{}, fmt.Errorf("invalid color %q", value)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid color %q: %w", value, err)
	}
	return RGB{R: int(v >> 16 & 0xff), G: int(v >> 8 & 0xff), B: int(v & 0xff)}, nil
}
