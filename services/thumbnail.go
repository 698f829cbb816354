package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/gift"
	"github.com/rwcarlsen/goexif/exif"
)

const (
	ThumbnailMaxEdge     = 300
	thumbnailJPEGQuality = 90
)

// GenerateThumbnail produces a JPEG derivative bounded to 300px on the long
// edge, aspect ratio preserved, corrected for EXIF orientation. Thumbnailing
// is mandatory for upload: any failure here aborts the whole upload.
func GenerateThumbnail(buf []byte) ([]byte, error) {
	if len(buf) == 0 {
		return nil, Validation("Image buffer is required")
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("thumbnail: decode: %w", err)
	}

	filters := orientationFilters(readOrientation(buf))
	filters = append(filters, gift.ResizeToFit(ThumbnailMaxEdge, ThumbnailMaxEdge, gift.LanczosResampling))

	g := gift.New(filters...)
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		return nil, fmt.Errorf("thumbnail: encode: %w", err)
	}

	return out.Bytes(), nil
}

// readOrientation returns the EXIF orientation tag, defaulting to 1 (upright)
// when the image carries no usable EXIF data.
func readOrientation(buf []byte) int {
	x, err := exif.Decode(bytes.NewReader(buf))
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}

	return o
}

func orientationFilters(orientation int) []gift.Filter {
	switch orientation {
	case 2:
		return []gift.Filter{gift.FlipHorizontal()}
	case 3:
		return []gift.Filter{gift.Rotate180()}
	case 4:
		return []gift.Filter{gift.FlipVertical()}
	case 5:
		return []gift.Filter{gift.Transpose()}
	case 6:
		return []gift.Filter{gift.Rotate270()}
	case 7:
		return []gift.Filter{gift.Transverse()}
	case 8:
		return []gift.Filter{gift.Rotate90()}
	default:
		return nil
	}
}
