package render

import (
	"strconv"
	"strings"

	"github.com/gogpu/gg"
)

// parseColor understands the color syntax the designer saves: "#rgb",
// "#rrggbb", "#rrggbbaa", "rgb(r, g, b)" and "rgba(r, g, b, a)". Anything
// unparseable falls back to opaque black, matching the canvas default.
func parseColor(s string) gg.RGBA {
	s = strings.TrimSpace(s)
	if s == "" {
		return gg.RGBA{A: 1}
	}
	if strings.HasPrefix(s, "#") {
		return gg.Hex(s)
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "rgb") {
		open := strings.IndexByte(s, '(')
		close := strings.IndexByte(s, ')')
		if open == -1 || close <= open {
			return gg.RGBA{A: 1}
		}
		parts := strings.Split(s[open+1:close], ",")
		if len(parts) != 3 && len(parts) != 4 {
			return gg.RGBA{A: 1}
		}

		channel := func(p string) float64 {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return 0
			}
			return clamp01(v / 255)
		}
		c := gg.RGBA{R: channel(parts[0]), G: channel(parts[1]), B: channel(parts[2]), A: 1}
		if len(parts) == 4 {
			a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
			if err == nil {
				c.A = clamp01(a)
			}
		}
		return c
	}

	return gg.RGBA{A: 1}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
