// Package imaging normalizes user photos before they travel to the model
// layer: oversized images are scaled down and everything is re-encoded as
// JPEG so downstream consumers deal with exactly one format.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"
)

// Reencode decodes raw (JPEG, PNG or GIF), scales the longest side down to
// maxDim preserving aspect ratio, and re-encodes as JPEG at the given
// quality. Images already within maxDim are not upscaled. Returns the JPEG
// bytes and the "image/jpeg" mime type.
func Reencode(raw []byte, maxDim int, quality int) ([]byte, string, error) {
	if maxDim <= 0 {
		return nil, "", fmt.Errorf("maxDim must be positive, got %d", maxDim)
	}
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	scaled := scaleDown(src, maxDim)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// scaleDown resizes src so its longest side is at most maxDim, using box
// sampling. Returns src unchanged when it already fits.
func scaleDown(src image.Image, maxDim int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	var outW, outH int
	if w >= h {
		outW = maxDim
		outH = h * maxDim / w
	} else {
		outH = maxDim
		outW = w * maxDim / h
	}
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		sy0 := bounds.Min.Y + y*h/outH
		sy1 := bounds.Min.Y + (y+1)*h/outH
		if sy1 <= sy0 {
			sy1 = sy0 + 1
		}
		for x := 0; x < outW; x++ {
			sx0 := bounds.Min.X + x*w/outW
			sx1 := bounds.Min.X + (x+1)*w/outW
			if sx1 <= sx0 {
				sx1 = sx0 + 1
			}

			var r, g, b, a, n uint64
			for sy := sy0; sy < sy1; sy++ {
				for sx := sx0; sx < sx1; sx++ {
					pr, pg, pb, pa := src.At(sx, sy).RGBA()
					r += uint64(pr)
					g += uint64(pg)
					b += uint64(pb)
					a += uint64(pa)
					n++
				}
			}
			idx := dst.PixOffset(x, y)
			dst.Pix[idx+0] = uint8(r / n >> 8)
			dst.Pix[idx+1] = uint8(g / n >> 8)
			dst.Pix[idx+2] = uint8(b / n >> 8)
			dst.Pix[idx+3] = uint8(a / n >> 8)
		}
	}
	return dst
}
