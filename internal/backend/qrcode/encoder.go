package qrcode

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"log/slog"

	"github.com/lucasb-eyer/go-colorful"
	goqrcode "github.com/skip2/go-qrcode"
)

// ErrEncodingFailure marks content the symbol generator cannot represent,
// for example a payload beyond the largest QR version.
var ErrEncodingFailure = errors.New("encoding failure")

const (
	// DefaultQuietZone is the blank margin around the symbol, in modules.
	DefaultQuietZone = 1
	// DefaultRecoveryLevel keeps a quarter-width centre logo recoverable.
	DefaultRecoveryLevel = goqrcode.Highest
)

// Symbol describes one code to render.
type Symbol struct {
	Content    string
	Size       int
	Foreground string
	Background string
}

// Encoder turns content into QR rasters and SVG documents.
type Encoder struct {
	level     goqrcode.RecoveryLevel
	quietZone int
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithRecoveryLevel overrides the error correction tier.
func WithRecoveryLevel(level goqrcode.RecoveryLevel) Option {
	return func(e *Encoder) {
		e.level = level
	}
}

// WithQuietZone overrides the margin width in modules.
func WithQuietZone(modules int) Option {
	return func(e *Encoder) {
		if modules >= 0 {
			e.quietZone = modules
		}
	}
}

// NewEncoder creates an encoder using the highest recovery level and a one
// module quiet zone unless overridden.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{
		level:     DefaultRecoveryLevel,
		quietZone: DefaultQuietZone,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bitmap returns the module grid for content, quiet zone included.
// true is a dark module.
func (e *Encoder) Bitmap(content string) ([][]bool, error) {
	code, err := goqrcode.New(content, e.level)
	if err != nil {
		slog.Error("Encoder: failed to build symbol", "error", err, "content_length", len(content))
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailure, err)
	}
	code.DisableBorder = true
	symbol := code.Bitmap()

	n := len(symbol) + 2*e.quietZone
	grid := make([][]bool, n)
	for y := range grid {
		grid[y] = make([]bool, n)
	}
	for y, row := range symbol {
		copy(grid[y+e.quietZone][e.quietZone:], row)
	}

	slog.Debug("Encoder: symbol built", "modules", len(symbol), "quiet_zone", e.quietZone)
	return grid, nil
}

// PNG renders the symbol as a PNG of side s.Size.
func (e *Encoder) PNG(s Symbol) ([]byte, error) {
	img, err := e.Raster(s)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: failed to encode PNG: %v", ErrEncodingFailure, err)
	}
	return buf.Bytes(), nil
}

// parseColors resolves both colours of a symbol. Only the six digit
// "#rrggbb" form is accepted.
func parseColors(s Symbol) (fg, bg colorful.Color, err error) {
	fg, err = parseHex(s.Foreground)
	if err != nil {
		return fg, bg, fmt.Errorf("%w: invalid foreground colour %q", ErrEncodingFailure, s.Foreground)
	}
	bg, err = parseHex(s.Background)
	if err != nil {
		return fg, bg, fmt.Errorf("%w: invalid background colour %q", ErrEncodingFailure, s.Background)
	}
	return fg, bg, nil
}

func parseHex(value string) (colorful.Color, error) {
	if len(value) != 7 {
		return colorful.Color{}, fmt.Errorf("expected #rrggbb, got %q", value)
	}
	return colorful.Hex(value)
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func checkSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrEncodingFailure, size)
	}
	return nil
}
