package slider

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
)

const handleWidth = 3

// AspectRatio returns height/width of the encoded image without decoding the
// pixels. Anything unreadable is treated as square.
func AspectRatio(data []byte) float64 {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return 1
	}
	return float64(cfg.Height) / float64(cfg.Width)
}

// Render composes the comparison frame as PNG: the after image on the left of
// the boundary, the before image on the right, and a handle line between them.
// The frame is as wide as the slider and as tall as the before image's aspect
// ratio demands.
func Render(s *Slider, before, after []byte) ([]byte, error) {
	width := uint(s.Width())
	if width == 0 {
		return nil, fmt.Errorf("render comparison: zero width")
	}
	height := uint(float64(width) * AspectRatio(before))
	if height == 0 {
		height = width
	}

	beforeImg, _, err := image.Decode(bytes.NewReader(before))
	if err != nil {
		return nil, fmt.Errorf("decode before image: %w", err)
	}
	afterImg, _, err := image.Decode(bytes.NewReader(after))
	if err != nil {
		return nil, fmt.Errorf("decode after image: %w", err)
	}

	beforeImg = resize.Resize(width, height, beforeImg, resize.Lanczos3)
	afterImg = resize.Resize(width, height, afterImg, resize.Lanczos3)

	frame := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	draw.Draw(frame, frame.Bounds(), beforeImg, image.Point{}, draw.Src)

	boundary := int(s.Position())
	draw.Draw(frame, image.Rect(0, 0, boundary, int(height)), afterImg, image.Point{}, draw.Src)

	handle := image.Rect(boundary-handleWidth/2, 0, boundary-handleWidth/2+handleWidth, int(height)).Intersect(frame.Bounds())
	draw.Draw(frame, handle, &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return nil, fmt.Errorf("encode comparison: %w", err)
	}
	return buf.Bytes(), nil
}
