package commands

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/goqr/internal/backend/commandstructure"
	"golang.org/x/image/draw"
)

// DefaultLogoRatio is the side of the logo's bounding square relative to the QR side.
const DefaultLogoRatio = 0.25

// ErrCompositingFailure marks a logo that could not be placed onto the QR raster,
// typically because its bytes do not decode as an image.
var ErrCompositingFailure = errors.New("compositing failure")

// LogoOverlayParams represents typed parameters for the logo overlay command
type LogoOverlayParams struct {
	Logo  []byte
	Ratio float64
}

// NewLogoOverlayParamsFromMap creates LogoOverlayParams from a generic map.
// "logo" ([]byte) is required, "ratio" defaults to DefaultLogoRatio.
func NewLogoOverlayParamsFromMap(params map[string]any) (*LogoOverlayParams, error) {
	logo, ok := commandstructure.GetBytesParam(params, "logo")
	if !ok || len(logo) == 0 {
		return nil, fmt.Errorf("missing required parameter: logo")
	}

	ratio := commandstructure.GetFloatParam(params, "ratio", DefaultLogoRatio)
	if ratio <= 0 || ratio > 1 {
		return nil, fmt.Errorf("ratio must be in (0, 1], got %v", ratio)
	}

	return &LogoOverlayParams{
		Logo:  logo,
		Ratio: ratio,
	}, nil
}

// LogoOverlayCommand places a logo in the centre of a square QR raster.
type LogoOverlayCommand struct {
	name   string
	params *LogoOverlayParams
}

// NewLogoOverlayCommand creates a new logo overlay command from configuration parameters
func NewLogoOverlayCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewLogoOverlayParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &LogoOverlayCommand{
		name:   "LogoOverlayCommand",
		params: typedParams,
	}, nil
}

// NewLogoOverlayCommandWithParams creates a new logo overlay command from typed parameters
func NewLogoOverlayCommandWithParams(logo []byte, ratio float64) (*LogoOverlayCommand, error) {
	command, err := NewLogoOverlayCommand(map[string]any{"logo": logo, "ratio": ratio})
	if err != nil {
		return nil, err
	}
	return command.(*LogoOverlayCommand), nil
}

// Name returns the command name
func (c *LogoOverlayCommand) Name() string {
	return c.name
}

// GetParams returns the typed parameters
func (c *LogoOverlayCommand) GetParams() *LogoOverlayParams {
	return c.params
}

// LogoGeometry returns the side of the logo's bounding square and its offset on
// both axes for a QR raster of the given side.
func LogoGeometry(size int, ratio float64) (logoSize, logoPosition int) {
	logoSize = int(float64(size) * ratio)
	logoPosition = (size - logoSize) / 2
	return logoSize, logoPosition
}

// Execute composites the logo onto the QR PNG and returns a new PNG with the
// same dimensions. The input buffer is left untouched.
func (c *LogoOverlayCommand) Execute(imageData []byte) ([]byte, error) {
	qr, err := decodePNG(imageData)
	if err != nil {
		slog.Error("LogoOverlayCommand: failed to decode QR raster", "error", err)
		return nil, fmt.Errorf("%w: failed to decode QR raster: %v", ErrCompositingFailure, err)
	}

	bounds := qr.Bounds()
	size := bounds.Dx()
	if size != bounds.Dy() {
		return nil, fmt.Errorf("%w: QR raster must be square, got %dx%d", ErrCompositingFailure, bounds.Dx(), bounds.Dy())
	}

	logoSize, logoPosition := LogoGeometry(size, c.params.Ratio)
	if logoSize == 0 {
		return nil, fmt.Errorf("%w: QR raster of %dpx leaves no room for a logo", ErrCompositingFailure, size)
	}

	logo, err := c.fitLogo(logoSize)
	if err != nil {
		slog.Error("LogoOverlayCommand: failed to prepare logo", "error", err, "logo_size", logoSize)
		return nil, fmt.Errorf("%w: %v", ErrCompositingFailure, err)
	}

	slog.Debug("LogoOverlayCommand: compositing logo",
		"qr_size", size,
		"logo_size", logoSize,
		"logo_position", logoPosition)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), qr, bounds.Min, draw.Src)
	target := image.Rect(logoPosition, logoPosition, logoPosition+logoSize, logoPosition+logoSize)
	draw.Draw(dst, target, logo, logo.Bounds().Min, draw.Over)

	out, err := encodePNG(dst)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode composited image: %v", ErrCompositingFailure, err)
	}
	return out, nil
}

// fitLogo decodes the logo and contains it in a transparent logoSize square.
func (c *LogoOverlayCommand) fitLogo(logoSize int) (image.Image, error) {
	normalized, err := NewPngConverterCommandWithBox(logoSize, logoSize).Execute(c.params.Logo)
	if err != nil {
		return nil, fmt.Errorf("failed to decode logo: %w", err)
	}

	scaler, err := NewScaleCommandWithParams(logoSize, logoSize)
	if err != nil {
		return nil, err
	}
	fitted, err := scaler.Execute(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to scale logo: %w", err)
	}

	return decodePNG(fitted)
}

func init() {
	// Register the command in the default registry
	if err := commandstructure.DefaultRegistry.Register("LogoOverlayCommand", NewLogoOverlayCommand); err != nil {
		panic(fmt.Sprintf("failed to register LogoOverlayCommand: %v", err))
	}
}
