package commands

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"

	"github.com/jo-hoe/goqr/internal/backend/commandstructure"
	"golang.org/x/image/draw"
)

// ScaleParams represents typed parameters for scale command
type ScaleParams struct {
	Height int
	Width  int
}

// NewScaleParamsFromMap creates ScaleParams from a generic map
func NewScaleParamsFromMap(params map[string]any) (*ScaleParams, error) {
	// Validate required parameters exist
	if err := commandstructure.ValidateRequiredParams(params, []string{"height", "width"}); err != nil {
		return nil, err
	}

	height := commandstructure.GetIntParam(params, "height", 0)
	width := commandstructure.GetIntParam(params, "width", 0)

	// Validate dimensions are positive
	if height <= 0 {
		return nil, fmt.Errorf("height must be positive, got %d", height)
	}
	if width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", width)
	}

	return &ScaleParams{
		Height: height,
		Width:  width,
	}, nil
}

// ScaleCommand fits an image into a fixed box ("contain"): the aspect ratio is
// preserved, the image is only ever scaled down and the unused part of the box
// stays fully transparent.
type ScaleCommand struct {
	name   string
	params *ScaleParams
}

// NewScaleCommand creates a new scale command from configuration parameters
func NewScaleCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewScaleParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &ScaleCommand{
		name:   "ScaleCommand",
		params: typedParams,
	}, nil
}

// NewScaleCommandWithParams creates a new scale command from concrete typed parameters
func NewScaleCommandWithParams(height, width int) (*ScaleCommand, error) {
	if height <= 0 {
		return nil, fmt.Errorf("height must be positive, got %d", height)
	}
	if width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", width)
	}

	return &ScaleCommand{
		name: "ScaleCommand",
		params: &ScaleParams{
			Height: height,
			Width:  width,
		},
	}, nil
}

// Name returns the command name
func (c *ScaleCommand) Name() string {
	return c.name
}

// Execute fits the PNG image into the target box and returns a PNG of exactly
// Width x Height pixels.
func (c *ScaleCommand) Execute(imageData []byte) ([]byte, error) {
	img, err := decodePNG(imageData)
	if err != nil {
		slog.Error("ScaleCommand: failed to decode PNG image", "error", err)
		return nil, fmt.Errorf("failed to decode PNG image: %w", err)
	}

	bounds := img.Bounds()
	originalWidth := bounds.Dx()
	originalHeight := bounds.Dy()
	if originalWidth == 0 || originalHeight == 0 {
		return nil, fmt.Errorf("image has no pixels (%dx%d)", originalWidth, originalHeight)
	}

	targetWidth := c.params.Width
	targetHeight := c.params.Height

	// If target matches original dimensions, skip processing
	if targetWidth == originalWidth && targetHeight == originalHeight {
		slog.Debug("ScaleCommand: target dimensions equal original; skipping scaling")
		return imageData, nil
	}

	scaledWidth, scaledHeight := computeContainDimensions(originalWidth, originalHeight, targetWidth, targetHeight)
	offsetX, offsetY := computeCenterOffset(targetWidth, targetHeight, scaledWidth, scaledHeight)
	slog.Debug("ScaleCommand: fitting image into box",
		"original_width", originalWidth,
		"original_height", originalHeight,
		"target_width", targetWidth,
		"target_height", targetHeight,
		"scaled_width", scaledWidth,
		"scaled_height", scaledHeight,
		"offset_x", offsetX,
		"offset_y", offsetY)

	targetImg := createTargetCanvas(targetWidth, targetHeight, color.Transparent)
	dstRect := image.Rect(offsetX, offsetY, offsetX+scaledWidth, offsetY+scaledHeight)
	if scaledWidth == originalWidth && scaledHeight == originalHeight {
		draw.Draw(targetImg, dstRect, img, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(targetImg, dstRect, img, bounds, draw.Src, nil)
	}

	out, err := encodePNG(targetImg)
	if err != nil {
		slog.Error("ScaleCommand: failed to encode scaled image", "error", err)
		return nil, fmt.Errorf("failed to encode scaled PNG image: %w", err)
	}

	return out, nil
}

// GetHeight returns the configured height
func (c *ScaleCommand) GetHeight() int {
	return c.params.Height
}

// GetWidth returns the configured width
func (c *ScaleCommand) GetWidth() int {
	return c.params.Width
}

// GetParams returns the typed parameters
func (c *ScaleCommand) GetParams() *ScaleParams {
	return c.params
}

func decodePNG(data []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
}

// computeContainDimensions returns the largest size with the original aspect
// ratio that fits into the target box without exceeding the original size.
func computeContainDimensions(originalWidth, originalHeight, targetWidth, targetHeight int) (int, int) {
	if originalWidth <= targetWidth && originalHeight <= targetHeight {
		return originalWidth, originalHeight
	}
	originalAspect := float64(originalWidth) / float64(originalHeight)
	targetAspect := float64(targetWidth) / float64(targetHeight)
	if originalAspect > targetAspect {
		// Original is wider - scale to target width
		return targetWidth, max(1, int(float64(targetWidth)/originalAspect))
	}
	// Original is taller - scale to target height
	return max(1, int(float64(targetHeight)*originalAspect)), targetHeight
}

func createTargetCanvas(w, h int, bg color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)
	return dst
}

func computeCenterOffset(targetWidth, targetHeight, scaledWidth, scaledHeight int) (int, int) {
	return (targetWidth - scaledWidth) / 2, (targetHeight - scaledHeight) / 2
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	bb := img.Bounds()
	// Pre-grow buffer to reduce re-allocations; rough heuristic: 1 byte per pixel
	buf.Grow(bb.Dx() * bb.Dy())
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func init() {
	// Register the command in the default registry
	if err := commandstructure.DefaultRegistry.Register("ScaleCommand", NewScaleCommand); err != nil {
		panic(fmt.Sprintf("failed to register ScaleCommand: %v", err))
	}
}
