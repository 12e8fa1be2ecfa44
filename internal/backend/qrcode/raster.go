package qrcode

import (
	"image"
	"log/slog"
)

// Raster paints the symbol onto a square RGBA image of side s.Size. Each
// pixel takes the colour of the module it falls into, so module edges are
// never blurred even when s.Size is not a multiple of the module count.
func (e *Encoder) Raster(s Symbol) (*image.RGBA, error) {
	if err := checkSize(s.Size); err != nil {
		return nil, err
	}
	fg, bg, err := parseColors(s)
	if err != nil {
		return nil, err
	}
	grid, err := e.Bitmap(s.Content)
	if err != nil {
		return nil, err
	}

	dark, light := toRGBA(fg), toRGBA(bg)
	index := moduleIndex(s.Size, len(grid))
	img := image.NewRGBA(image.Rect(0, 0, s.Size, s.Size))

	parallelRows(s.Size, func(y int) {
		row := grid[index[y]]
		off := y * img.Stride
		for x := 0; x < s.Size; x++ {
			c := light
			if row[index[x]] {
				c = dark
			}
			p := img.Pix[off+4*x : off+4*x+4 : off+4*x+4]
			p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
		}
	})

	slog.Debug("Encoder: raster rendered", "size", s.Size, "modules", len(grid))
	return img, nil
}

// moduleIndex maps each of size pixels to one of n modules.
func moduleIndex(size, n int) []int {
	index := make([]int, size)
	for i := range index {
		index[i] = i * n / size
	}
	return index
}
