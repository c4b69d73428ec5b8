// Package scale maps a numeric attribute onto a linear color ramp and derives
// the legend bins describing it.
package scale

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is an opaque RGB color.
type Color struct {
	R, G, B uint8
}

var namedColors = map[string]Color{
	"black":  {0, 0, 0},
	"white":  {255, 255, 255},
	"red":    {255, 0, 0},
	"orange": {255, 165, 0},
	"yellow": {255, 255, 0},
	"gold":   {255, 215, 0},
	"lime":   {0, 255, 0},
	"green":  {0, 128, 0},
	"blue":   {0, 0, 255},
	"purple": {128, 0, 128},
	"brown":  {165, 42, 42},
	"gray":   {128, 128, 128},
}

// ParseColor accepts a CSS color name, #rgb, #rrggbb or rgb(r, g, b).
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}

	if strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")") {
		parts := strings.Split(s[4:len(s)-1], ",")
		if len(parts) != 3 {
			return Color{}, fmt.Errorf("invalid color %q", s)
		}
		var ch [3]uint8
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
			}
			ch[i] = uint8(v)
		}
		return Color{ch[0], ch[1], ch[2]}, nil
	}

	if !strings.HasPrefix(s, "#") {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}

	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}

	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// MustParseColor is ParseColor for trusted constants.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String renders the color in CSS rgb() notation.
func (c Color) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
