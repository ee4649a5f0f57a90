package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	// Decoders for model output and uploaded base images.
	_ "image/gif"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxThumbnailBytes is the largest file YouTube accepts as a custom thumbnail.
const MaxThumbnailBytes = 2 << 20

var jpegQualities = []int{92, 85, 78, 70, 60}

// ToJPEG converts image bytes to a JPEG no larger than maxBytes.
// Quality is lowered first, then the image is scaled down until it fits.
func ToJPEG(data []byte, maxBytes int) ([]byte, error) {
	mime := mimetype.Detect(data)
	if mime.Is("image/jpeg") && len(data) <= maxBytes {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", mime.String(), err)
	}
	img = flatten(img)

	for scale := 0; scale < 6; scale++ {
		for _, q := range jpegQualities {
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
				return nil, fmt.Errorf("encode jpeg: %w", err)
			}
			if buf.Len() <= maxBytes {
				return buf.Bytes(), nil
			}
		}
		img = shrink(img, 3, 4)
	}
	return nil, fmt.Errorf("cannot fit image into %d bytes", maxBytes)
}

// flatten draws img over white so transparent areas do not turn black.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

func shrink(img image.Image, num, den int) image.Image {
	b := img.Bounds()
	w, h := max(1, b.Dx()*num/den), max(1, b.Dy()*num/den)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
