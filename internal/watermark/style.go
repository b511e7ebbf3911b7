package watermark

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Font size bounds accepted by ParseStyle.
const (
	MinFontSize = 8
	MaxFontSize = 200
)

// Position is one of the seven named anchors a watermark can be placed at.
type Position string

const (
	TopLeft      Position = "top-left"
	TopRight     Position = "top-right"
	TopCenter    Position = "top-center"
	Center       Position = "center"
	BottomLeft   Position = "bottom-left"
	BottomRight  Position = "bottom-right"
	BottomCenter Position = "bottom-center"
)

// Positions lists every valid anchor, for help text and validation messages.
var Positions = []Position{
	TopLeft, TopRight, TopCenter, Center, BottomLeft, BottomRight, BottomCenter,
}

// Style holds the validated render parameters shared by every file in a
// batch run. It is constructed once by ParseStyle and never modified after.
type Style struct {
	FontSize int
	Color    color.NRGBA
	Position Position
	Opacity  float64
}

// ParseStyle validates the raw configuration inputs and normalizes them
// into a Style. Any invalid input fails the whole run before file I/O
// starts, since the style is shared across the batch.
func ParseStyle(fontSize int, colorStr, positionStr string, opacity float64) (Style, error) {
	if fontSize < MinFontSize || fontSize > MaxFontSize {
		return Style{}, fmt.Errorf("font size %d out of range [%d, %d]", fontSize, MinFontSize, MaxFontSize)
	}
	// NaN compares false against both bounds, so reject it explicitly.
	if math.IsNaN(opacity) || opacity < 0.0 || opacity > 1.0 {
		return Style{}, fmt.Errorf("opacity %g out of range [0.0, 1.0]", opacity)
	}
	pos, err := ParsePosition(positionStr)
	if err != nil {
		return Style{}, err
	}
	col, err := ParseColor(colorStr)
	if err != nil {
		return Style{}, err
	}
	return Style{FontSize: fontSize, Color: col, Position: pos, Opacity: opacity}, nil
}

// ParsePosition maps a position token to its anchor. Unknown tokens are an
// error rather than silently defaulting.
func ParsePosition(s string) (Position, error) {
	p := Position(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Positions {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown position %q (valid: %s)", s, positionList())
}

func positionList() string {
	names := make([]string, len(Positions))
	for i, p := range Positions {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

var namedColors = map[string]color.NRGBA{
	"white":   {255, 255, 255, 255},
	"black":   {0, 0, 0, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 255, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"cyan":    {0, 255, 255, 255},
	"magenta": {255, 0, 255, 255},
}

// ParseColor resolves a color given in any of the three accepted notations:
// a named color, a "#RRGGBB" hex literal, or an "rgb(r,g,b)" triple with
// each channel in [0,255]. All three resolve to the same opaque NRGBA
// representation; opacity is applied separately at composite time.
func ParseColor(s string) (color.NRGBA, error) {
	trimmed := strings.TrimSpace(s)

	if c, ok := namedColors[strings.ToLower(trimmed)]; ok {
		return c, nil
	}
	if strings.HasPrefix(trimmed, "#") {
		return parseHexColor(trimmed)
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "rgb(") && strings.HasSuffix(lower, ")") {
		return parseRGBColor(trimmed[4 : len(trimmed)-1])
	}
	return color.NRGBA{}, fmt.Errorf("unrecognized color %q", s)
}

func parseHexColor(s string) (color.NRGBA, error) {
	hex := s[1:]
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("hex color %q must have exactly 6 digits", s)
	}
	var channels [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("hex color %q: %w", s, err)
		}
		channels[i] = uint8(v)
	}
	return color.NRGBA{R: channels[0], G: channels[1], B: channels[2], A: 255}, nil
}

func parseRGBColor(body string) (color.NRGBA, error) {
	parts := strings.Split(body, ",")
	if len(parts) != 3 {
		return color.NRGBA{}, fmt.Errorf("rgb color needs 3 channels, got %d", len(parts))
	}
	var channels [3]uint8
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("rgb channel %q: %w", part, err)
		}
		if v < 0 || v > 255 {
			return color.NRGBA{}, fmt.Errorf("rgb channel %d out of range [0, 255]", v)
		}
		channels[i] = uint8(v)
	}
	return color.NRGBA{R: channels[0], G: channels[1], B: channels[2], A: 255}, nil
}
