package backend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/jo-hoe/goqr/internal/backend/validation"
	"github.com/jo-hoe/goqr/internal/core"
	"github.com/labstack/echo/v4"
)

const multipartMemory = 32 << 20

type APIService struct {
	coreService *core.CoreService
}

// GenerateResponse is returned for a successful generation.
type GenerateResponse struct {
	ID              string    `json:"id"`
	QRCodeDataURL   string    `json:"qrCodeDataUrl"`
	URL             string    `json:"url"`
	Size            int       `json:"size"`
	ForegroundColor string    `json:"foregroundColor"`
	BackgroundColor string    `json:"backgroundColor"`
	Format          string    `json:"format"`
	HasLogo         bool      `json:"hasLogo"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ValidationErrorResponse lists every violated field of a rejected request.
type ValidationErrorResponse struct {
	Message string                  `json:"message"`
	Errors  []validation.FieldError `json:"errors"`
}

type listQuery struct {
	Offset int `query:"offset" validate:"min=0"`
	Limit  int `query:"limit" validate:"min=1,max=100"`
}

func NewAPIService(coreService *core.CoreService) *APIService {
	return &APIService{
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	api := e.Group("/api")
	api.POST("/generate", s.generateHandler)
	api.GET("/qrcodes", s.listHandler)
	api.GET("/qrcodes/:id", s.getHandler)
}

func (s *APIService) generateHandler(ctx echo.Context) error {
	raw, err := readRawRequest(ctx)
	if err != nil {
		return err
	}

	result, err := s.coreService.Generate(ctx.Request().Context(), raw)
	if err != nil {
		var verr *validation.ValidationError
		if errors.As(err, &verr) {
			return ctx.JSON(http.StatusBadRequest, ValidationErrorResponse{
				Message: "Validation failed",
				Errors:  verr.Fields(),
			})
		}
		if core.IsProcessingFailure(err) {
			slog.Error("APIService: failed to render QR code", "url", raw.URL, "format", raw.Format, "has_logo", raw.Logo != nil, "error", err)
		}
		return fmt.Errorf("failed to generate QR code: %w", err)
	}

	record := result.Record
	return ctx.JSON(http.StatusOK, GenerateResponse{
		ID:              record.ID,
		QRCodeDataURL:   result.DataURL(),
		URL:             record.URL,
		Size:            record.Size,
		ForegroundColor: record.ForegroundColor,
		BackgroundColor: record.BackgroundColor,
		Format:          record.Format,
		HasLogo:         record.HasLogo,
		CreatedAt:       record.CreatedAt,
	})
}

// readRawRequest collects the form fields and the optional logo part.
func readRawRequest(ctx echo.Context) (validation.RawRequest, error) {
	req := ctx.Request()
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get(echo.HeaderContentType))
	if mediaType == echo.MIMEMultipartForm {
		if err := req.ParseMultipartForm(multipartMemory); err != nil {
			return validation.RawRequest{}, uploadError(err)
		}
	}

	raw := validation.RawRequest{
		URL:             ctx.FormValue("url"),
		ForegroundColor: ctx.FormValue("foregroundColor"),
		BackgroundColor: ctx.FormValue("backgroundColor"),
		Size:            ctx.FormValue("size"),
		Format:          ctx.FormValue("format"),
	}

	fileHeader, err := ctx.FormFile("logo")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return raw, nil
	case err != nil:
		return raw, uploadError(err)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return raw, uploadError(err)
	}
	defer func() {
		_ = file.Close()
	}()
	data, err := io.ReadAll(file)
	if err != nil {
		return raw, uploadError(err)
	}

	raw.Logo = &validation.LogoUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get(echo.HeaderContentType),
		Data:        data,
	}
	return raw, nil
}

func uploadError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	slog.Debug("APIService: rejected upload", "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func (s *APIService) listHandler(ctx echo.Context) error {
	query := listQuery{Limit: 100}
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &query); err != nil {
		return err
	}
	if err := ctx.Validate(&query); err != nil {
		return err
	}

	records, err := s.coreService.GetAllRecords(ctx.Request().Context(), query.Offset, query.Limit)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	return ctx.JSON(http.StatusOK, records)
}

func (s *APIService) getHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	record, err := s.coreService.GetRecordByID(ctx.Request().Context(), id)
	if err != nil {
		return fmt.Errorf("failed to read record %s: %w", id, err)
	}
	if record == nil {
		return echo.NewHTTPError(http.StatusNotFound, "QR code not found")
	}
	return ctx.JSON(http.StatusOK, record)
}
