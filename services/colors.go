package services

import (
	"bytes"
	"fmt"
	"image"
	"regexp"
	"sort"

	"github.com/EdlinOrg/prominentcolor"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const maxDominantColors = 5

var hexColorRe = regexp.MustCompile(`^#[0-9a-f]{6}$`)

// ExtractDominantColors returns up to 5 lowercase "#rrggbb" strings for the
// image in buf, most populous swatch first. An empty result is valid: images
// without distinguishable swatches yield no colors. Extraction failures are
// returned as a single wrapped error; upload treats them as non-fatal.
func ExtractDominantColors(buf []byte) ([]string, error) {
	if len(buf) == 0 {
		return nil, Validation("Image buffer is required")
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("color extraction: decode: %w", err)
	}

	items, err := prominentcolor.KmeansWithAll(
		maxDominantColors,
		img,
		prominentcolor.ArgumentNoCropping,
		prominentcolor.DefaultSize,
		prominentcolor.GetDefaultMasks(),
	)
	if err != nil {
		return nil, fmt.Errorf("color extraction: kmeans: %w", err)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Cnt > items[j].Cnt })

	colors := make([]string, 0, len(items))
	for _, it := range items {
		if len(colors) == maxDominantColors {
			break
		}
		colors = append(colors, fmt.Sprintf("#%02x%02x%02x", it.Color.R, it.Color.G, it.Color.B))
	}

	return colors, nil
}

// IsHexColor reports whether s is a normalized "#rrggbb" string.
func IsHexColor(s string) bool {
	return hexColorRe.MatchString(s)
}
