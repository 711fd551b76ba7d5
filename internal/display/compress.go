package display

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	// register decoders for whatever format the backend's capture happens
	// to hand back.
	_ "image/gif"
)

// Format names a target encoding for a captured frame.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// pngMagic is the standard 8-byte PNG file signature.
var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// sniffFormat identifies the encoding of data actually being returned to a
// client, for the case where a capture is passed through uncompressed
// (compression skipped, or the decode-then-recompress pass failed) and the
// reported format must match the bytes rather than the engine's target
// settings.
func sniffFormat(data []byte) Format {
	if len(data) >= len(pngMagic) && bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return FormatPNG
	}
	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8 {
		return FormatJPEG
	}
	return FormatPNG
}

// decodeToRGBA decodes raw image bytes produced by a platform backend into
// an *image.RGBA, regardless of the source encoding.
func decodeToRGBA(raw []byte) (*image.RGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode captured frame: %w", err)
	}
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(src.Bounds())
	draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)
	return rgba, nil
}

// encodeJPEG mirrors the teacher's quality clamp of 1-100.
func encodeJPEG(img *image.RGBA, quality int) ([]byte, error) {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePNG(img *image.RGBA) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encode compresses img into format, with quality applying to FormatJPEG
// only.
func encode(img *image.RGBA, format Format, quality int) ([]byte, error) {
	switch format {
	case FormatJPEG:
		return encodeJPEG(img, quality)
	case FormatPNG, "":
		return encodePNG(img)
	default:
		return nil, fmt.Errorf("unsupported compression format %q", format)
	}
}

// scaleToFit performs a nearest-neighbor downscale of img so that it fits
// within maxWidth x maxHeight, preserving aspect ratio. It is a no-op if
// img already fits.
func scaleToFit(img *image.RGBA, maxWidth, maxHeight int) *image.RGBA {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if maxWidth <= 0 || maxHeight <= 0 || (srcW <= maxWidth && srcH <= maxHeight) {
		return img
	}

	widthRatio := float64(maxWidth) / float64(srcW)
	heightRatio := float64(maxHeight) / float64(srcH)
	ratio := widthRatio
	if heightRatio < ratio {
		ratio = heightRatio
	}

	dstW := int(float64(srcW) * ratio)
	dstH := int(float64(srcH) * ratio)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	srcPix := img.Pix
	dstPix := dst.Pix
	srcStride := img.Stride
	dstStride := dst.Stride

	srcXOffsets := make([]int, dstW)
	for x := 0; x < dstW; x++ {
		srcXOffsets[x] = (x * srcW / dstW) * 4
	}

	for y := 0; y < dstH; y++ {
		srcY := y * srcH / dstH
		srcRowBase := srcY * srcStride
		dstRowBase := y * dstStride
		for x := 0; x < dstW; x++ {
			si := srcRowBase + srcXOffsets[x]
			di := dstRowBase + x*4
			dstPix[di+0] = srcPix[si+0]
			dstPix[di+1] = srcPix[si+1]
			dstPix[di+2] = srcPix[si+2]
			dstPix[di+3] = srcPix[si+3]
		}
	}
	return dst
}
