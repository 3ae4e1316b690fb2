package escpos

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultLogoWidth gives 16-byte rows, which every common firmware buffers.
const DefaultLogoWidth = 128

// Raster is a packed 1-bit image, MSB first, WidthBytes per row.
type Raster struct {
	WidthBytes int
	Height     int
	Data       []byte
}

// DecodeImage decodes PNG, JPEG, GIF or WebP bytes.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Rasterize scales src to targetWidth keeping its aspect ratio, flattens it on
// white and thresholds luminance at 128: darker pixels print.
func Rasterize(src image.Image, targetWidth int) (Raster, error) {
	if targetWidth <= 0 || targetWidth%8 != 0 {
		return Raster{}, fmt.Errorf("raster width %d must be a positive multiple of 8", targetWidth)
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Raster{}, fmt.Errorf("empty image %dx%d", b.Dx(), b.Dy())
	}

	height := int(math.Round(float64(b.Dy()) * float64(targetWidth) / float64(b.Dx())))
	if height < 1 {
		height = 1
	}

	canvas := image.NewRGBA(image.Rect(0, 0, targetWidth, height))
	xdraw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), src, b, xdraw.Over, nil)

	rowBytes := targetWidth / 8
	data := make([]byte, rowBytes*height)
	for y := 0; y < height; y++ {
		for x := 0; x < targetWidth; x++ {
			gray := color.GrayModel.Convert(canvas.RGBAAt(x, y)).(color.Gray)
			if gray.Y < 128 {
				data[y*rowBytes+x/8] |= 1 << (7 - uint(x%8))
			}
		}
	}

	return Raster{WidthBytes: rowBytes, Height: height, Data: data}, nil
}
