package qrcode

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// decodeSymbol reads a code back from img. The image is placed on a wider
// canvas of the given background, the way a printed code sits on paper.
func decodeSymbol(t *testing.T, img image.Image, background color.Color) string {
	t.Helper()

	const margin = 40
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx()+2*margin, b.Dy()+2*margin))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(margin, margin, margin+b.Dx(), margin+b.Dy()), img, b.Min, draw.Over)

	bmp, err := gozxing.NewBinaryBitmapFromImage(canvas)
	if err != nil {
		t.Fatalf("failed to binarise image: %v", err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := zxingqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		t.Fatalf("failed to decode QR code: %v", err)
	}
	return result.GetText()
}

// rasteriseSVG draws an SVG document at side size on an opaque white canvas.
func rasteriseSVG(t *testing.T, data []byte, size int) *image.RGBA {
	t.Helper()

	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to parse SVG: %v", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)
	return img
}
