package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jo-hoe/goqr/internal/backend/commands"
	"github.com/jo-hoe/goqr/internal/backend/commandstructure"
	"github.com/jo-hoe/goqr/internal/backend/database"
	"github.com/jo-hoe/goqr/internal/backend/qrcode"
	"github.com/jo-hoe/goqr/internal/backend/validation"
)

// ErrPersistenceFailure is returned when the record could not be stored and
// persistence is configured as required.
var ErrPersistenceFailure = errors.New("persistence failure")

// GenerationResult is a generated image plus the record describing it.
type GenerationResult struct {
	Record    *database.Record
	MimeType  string
	Image     []byte
	Persisted bool
}

// DataURL embeds the image as a base64 data URI.
func (r *GenerationResult) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", r.MimeType, base64.StdEncoding.EncodeToString(r.Image))
}

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	validator       *validation.Validator
	encoder         *qrcode.Encoder
	now             func() time.Time
}

// NewCoreService wires the generation pipeline to the given store.
func NewCoreService(config *ServiceConfig, databaseService database.DatabaseService) (*CoreService, error) {
	if databaseService == nil {
		return nil, fmt.Errorf("database service must not be nil")
	}
	v, err := validation.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize validator: %w", err)
	}

	return &CoreService{
		config:          config,
		databaseService: databaseService,
		validator:       v,
		encoder:         qrcode.NewEncoder(),
		now:             func() time.Time { return time.Now().UTC() },
	}, nil
}

// Generate validates raw, renders the code, overlays the logo for PNG output
// and records the result. SVG output never carries a logo.
func (service *CoreService) Generate(ctx context.Context, raw validation.RawRequest) (*GenerationResult, error) {
	req, err := service.validator.Validate(raw)
	if err != nil {
		return nil, err
	}

	image, err := service.render(req)
	if err != nil {
		slog.Error("CoreService: failed to render QR code", "error", err, "format", req.Format, "size", req.Size)
		return nil, err
	}
	hasLogo := req.Format == validation.FormatPNG && req.HasLogo()
	if req.HasLogo() && !hasLogo {
		slog.Debug("CoreService: dropping logo for vector output", "format", req.Format)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, err := database.GenerateID()
	if err != nil {
		return nil, err
	}
	record := &database.Record{
		ID:              id,
		URL:             req.URL,
		ForegroundColor: req.ForegroundColor,
		BackgroundColor: req.BackgroundColor,
		Size:            req.Size,
		Format:          string(req.Format),
		HasLogo:         hasLogo,
		CreatedAt:       service.now(),
	}
	if hasLogo {
		record.Logo = base64.StdEncoding.EncodeToString(req.Logo.Data)
	}

	result := &GenerationResult{
		Record:   record,
		MimeType: req.Format.MimeType(),
		Image:    image,
	}

	if _, err := service.databaseService.CreateRecord(ctx, record); err != nil {
		if service.persistenceRequired() {
			slog.Error("CoreService: failed to persist record", "id", id, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}
		slog.Warn("CoreService: failed to persist record, returning result anyway", "id", id, "error", err)
		return result, nil
	}
	result.Persisted = true

	slog.Info("CoreService: generated QR code", "id", id, "format", req.Format, "size", req.Size, "has_logo", hasLogo)
	return result, nil
}

func (service *CoreService) render(req *validation.GenerationRequest) ([]byte, error) {
	symbol := qrcode.Symbol{
		Content:    req.URL,
		Size:       req.Size,
		Foreground: req.ForegroundColor,
		Background: req.BackgroundColor,
	}

	if req.Format == validation.FormatSVG {
		return service.encoder.SVG(symbol)
	}

	image, err := service.encoder.PNG(symbol)
	if err != nil {
		return nil, err
	}
	if !req.HasLogo() {
		return image, nil
	}

	return commandstructure.ExecuteCommands(image, []commandstructure.CommandConfig{
		{
			Name: "LogoOverlayCommand",
			Params: map[string]any{
				"logo":  req.Logo.Data,
				"ratio": commands.DefaultLogoRatio,
			},
		},
	})
}

func (service *CoreService) persistenceRequired() bool {
	return service.config != nil && service.config.Persistence.Required
}

// GetRecordByID returns nil and no error when the id is unknown.
func (service *CoreService) GetRecordByID(ctx context.Context, id string) (*database.Record, error) {
	return service.databaseService.GetRecordByID(ctx, id)
}

// GetAllRecords returns at most limit records starting at offset, ordered by
// creation. A limit of zero or less returns everything after offset.
func (service *CoreService) GetAllRecords(ctx context.Context, offset, limit int) ([]*database.Record, error) {
	records, err := service.databaseService.GetAllRecords(ctx)
	if err != nil {
		return nil, err
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return []*database.Record{}, nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

// IsProcessingFailure reports whether err came from encoding or compositing
// rather than from the caller's input.
func IsProcessingFailure(err error) bool {
	return errors.Is(err, qrcode.ErrEncodingFailure) || errors.Is(err, commands.ErrCompositingFailure)
}

func (service *CoreService) Close() error {
	return service.databaseService.Close()
}
