package commands

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/jo-hoe/goqr/internal/backend/commandstructure"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// hasCorrectPngSignature checks whether the provided data begins with a valid PNG signature
func hasCorrectPngSignature(data []byte) bool {
	return len(data) >= len(pngSignature) && bytes.Equal(data[:len(pngSignature)], pngSignature)
}

// PngConverterCommand normalises an uploaded logo into PNG bytes. Raster
// formats are re-encoded as they are; SVG documents are rasterised so that
// they fit the configured box.
type PngConverterCommand struct {
	name      string
	boxWidth  int
	boxHeight int
}

// NewPngConverterCommand creates a new PNG converter command.
// "boxWidth" and "boxHeight" are optional and only used for SVG input.
func NewPngConverterCommand(params map[string]any) (commandstructure.Command, error) {
	w := commandstructure.GetIntParam(params, "boxWidth", 0)
	h := commandstructure.GetIntParam(params, "boxHeight", 0)
	if w < 0 || h < 0 {
		return nil, fmt.Errorf("box dimensions must not be negative, got %dx%d", w, h)
	}

	return NewPngConverterCommandWithBox(w, h), nil
}

// NewPngConverterCommandWithBox creates a PNG converter that renders SVG input
// to fit into width x height.
func NewPngConverterCommandWithBox(width, height int) *PngConverterCommand {
	return &PngConverterCommand{
		name:      "PngConverterCommand",
		boxWidth:  width,
		boxHeight: height,
	}
}

// Name returns the command name
func (c *PngConverterCommand) Name() string {
	return c.name
}

func (c *PngConverterCommand) Execute(imageData []byte) ([]byte, error) {
	if hasCorrectPngSignature(imageData) {
		return imageData, nil
	}

	if isSVGData(imageData) {
		return c.rasterizeSVG(imageData)
	}

	img, currentFormat, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		slog.Error("PngConverterCommand: failed to decode image", "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	slog.Debug("PngConverterCommand: decoded raster image",
		"current_format", currentFormat,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	out, err := encodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image to PNG: %w", err)
	}
	return out, nil
}

// rasterizeSVG draws the document scaled to the box while keeping the aspect
// ratio of its viewBox. The background stays transparent.
func (c *PngConverterCommand) rasterizeSVG(svgData []byte) ([]byte, error) {
	if c.boxWidth <= 0 || c.boxHeight <= 0 {
		return nil, fmt.Errorf("cannot rasterise SVG without a target box, got %dx%d", c.boxWidth, c.boxHeight)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		slog.Error("PngConverterCommand: failed to parse SVG", "error", err)
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}

	w, h := fitBox(icon.ViewBox.W, icon.ViewBox.H, c.boxWidth, c.boxHeight)
	icon.SetTarget(0, 0, float64(w), float64(h))

	dst := createTargetCanvas(w, h, color.Transparent)
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)

	out, err := encodePNG(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rendered SVG as PNG: %w", err)
	}
	slog.Debug("PngConverterCommand: SVG rasterised", "width", w, "height", h, "output_size_bytes", len(out))
	return out, nil
}

// fitBox scales a vector size of any magnitude so it touches the box on one axis.
// Unknown sizes fill the whole box.
func fitBox(vw, vh float64, boxWidth, boxHeight int) (int, int) {
	if vw <= 0 || vh <= 0 {
		return boxWidth, boxHeight
	}
	scale := min(float64(boxWidth)/vw, float64(boxHeight)/vh)
	return max(1, int(vw*scale)), max(1, int(vh*scale))
}

// isSVGData performs a lightweight detection of SVG content from raw bytes.
func isSVGData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	// Only inspect the first ~4KB for detection
	n := min(len(data), 4096)
	header := bytes.ToLower(bytes.TrimSpace(data[:n]))
	return bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte("xmlns=\"http://www.w3.org/2000/svg\"")) ||
		bytes.Contains(header, []byte("xmlns='http://www.w3.org/2000/svg'"))
}

func init() {
	// Register the command in the default registry
	if err := commandstructure.DefaultRegistry.Register("PngConverterCommand", NewPngConverterCommand); err != nil {
		panic(fmt.Sprintf("failed to register PngConverterCommand: %v", err))
	}
}
