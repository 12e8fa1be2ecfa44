package qrcode

import (
	"bytes"
	"fmt"
	"log/slog"
)

// SVG renders the symbol as an SVG document. The viewBox is measured in
// modules while width and height carry s.Size, so the markup stays small
// and scales without resampling. Dark modules are merged into one path of
// horizontal runs.
func (e *Encoder) SVG(s Symbol) ([]byte, error) {
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
	n := len(grid)

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		s.Size, s.Size, n, n)
	fmt.Fprintf(&buf, `<rect width="%d" height="%d" fill="%s"/>`, n, n, bg.Hex())
	fmt.Fprintf(&buf, `<path fill="%s" d="`, fg.Hex())
	for y, row := range grid {
		for x := 0; x < n; {
			if !row[x] {
				x++
				continue
			}
			start := x
			for x < n && row[x] {
				x++
			}
			run := x - start
			fmt.Fprintf(&buf, "M%d %dh%dv1h-%dz", start, y, run, run)
		}
	}
	buf.WriteString(`"/></svg>`)

	slog.Debug("Encoder: SVG rendered", "size", s.Size, "modules", n, "bytes", buf.Len())
	return buf.Bytes(), nil
}
