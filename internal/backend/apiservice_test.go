package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/jo-hoe/goqr/internal/backend/database"
	"github.com/jo-hoe/goqr/internal/backend/validation"
	"github.com/jo-hoe/goqr/internal/common"
	"github.com/jo-hoe/goqr/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct {
	*database.MemoryDatabase
}

func (b *brokenStore) CreateRecord(ctx context.Context, record *database.Record) (*database.Record, error) {
	return nil, errors.New("connection refused")
}

func (b *brokenStore) GetAllRecords(ctx context.Context) ([]*database.Record, error) {
	return nil, errors.New("connection refused")
}

func newTestServer(t *testing.T, config *core.ServiceConfig, store database.DatabaseService) *echo.Echo {
	t.Helper()
	if config == nil {
		config = core.DefaultConfig()
	}
	if store == nil {
		store = database.NewMemoryDatabase()
	}
	coreService, err := core.NewCoreService(config, store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = coreService.Close() })

	e := NewServer(config.Upload.BodyLimit)
	NewAPIService(coreService).SetRoutes(e)
	return e
}

type formPart struct {
	name        string
	filename    string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, fields map[string]string, parts ...formPart) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, p.name, p.filename))
		h.Set("Content-Type", p.contentType)
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func pngBytes(t *testing.T, size int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeGenerateResponse(t *testing.T, rec *httptest.ResponseRecorder) GenerateResponse {
	t.Helper()
	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestProbe(t *testing.T) {
	e := newTestServer(t, nil, nil)
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerate_MultipartPNG(t *testing.T) {
	e := newTestServer(t, nil, nil)
	rec := serve(e, multipartRequest(t, map[string]string{
		"url":             "https://example.com",
		"size":            "300",
		"foregroundColor": "#112233",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeGenerateResponse(t, rec)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "https://example.com", resp.URL)
	assert.Equal(t, 300, resp.Size)
	assert.Equal(t, "#112233", resp.ForegroundColor)
	assert.Equal(t, "#ffffff", resp.BackgroundColor)
	assert.Equal(t, "png", resp.Format)
	assert.False(t, resp.HasLogo)
	assert.False(t, resp.CreatedAt.IsZero())

	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(resp.QRCodeDataURL, prefix))
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(resp.QRCodeDataURL, prefix))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
}

func TestGenerate_URLEncodedSVG(t *testing.T) {
	e := newTestServer(t, nil, nil)
	form := url.Values{"url": {"https://example.com"}, "size": {"200"}, "format": {"svg"}}
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)

	rec := serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeGenerateResponse(t, rec)
	assert.True(t, strings.HasPrefix(resp.QRCodeDataURL, "data:image/svg+xml;base64,"))
	assert.Equal(t, "svg", resp.Format)
}

func TestGenerate_WithLogo(t *testing.T) {
	e := newTestServer(t, nil, nil)
	rec := serve(e, multipartRequest(t,
		map[string]string{"url": "https://example.com", "size": "300"},
		formPart{name: "logo", filename: "logo.png", contentType: "image/png", data: pngBytes(t, 64, color.RGBA{255, 0, 0, 255})},
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeGenerateResponse(t, rec).HasLogo)
}

func TestGenerate_SVGWithLogoDropsLogo(t *testing.T) {
	e := newTestServer(t, nil, nil)
	rec := serve(e, multipartRequest(t,
		map[string]string{"url": "https://example.com", "size": "300", "format": "svg"},
		formPart{name: "logo", filename: "logo.png", contentType: "image/png", data: pngBytes(t, 64, color.Black)},
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeGenerateResponse(t, rec)
	assert.False(t, resp.HasLogo)
	assert.True(t, strings.HasPrefix(resp.QRCodeDataURL, "data:image/svg+xml;base64,"))
}

func TestGenerate_ValidationErrors(t *testing.T) {
	e := newTestServer(t, nil, nil)
	rec := serve(e, multipartRequest(t,
		map[string]string{"url": "not a url", "size": "401", "backgroundColor": "white"},
		formPart{name: "logo", filename: "notes.txt", contentType: "text/plain", data: []byte("hello")},
	))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Message)

	codes := make([]validation.ErrorCode, 0, len(resp.Errors))
	for _, fe := range resp.Errors {
		codes = append(codes, fe.Code)
	}
	assert.Equal(t, []validation.ErrorCode{
		validation.InvalidUrl,
		validation.InvalidColor,
		validation.InvalidSize,
		validation.UnsupportedLogoType,
	}, codes)
}

func TestGenerate_LogoTooLarge(t *testing.T) {
	config := core.DefaultConfig()
	config.Upload.BodyLimit = "8M"
	e := newTestServer(t, config, nil)

	rec := serve(e, multipartRequest(t,
		map[string]string{"url": "https://example.com", "size": "300"},
		formPart{name: "logo", filename: "big.png", contentType: "image/png", data: make([]byte, validation.MaxLogoBytes+1)},
	))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, validation.LogoTooLarge, resp.Errors[0].Code)
}

func TestGenerate_BodyLimitIsBadRequest(t *testing.T) {
	config := core.DefaultConfig()
	config.Upload.BodyLimit = "1K"
	e := newTestServer(t, config, nil)

	rec := serve(e, multipartRequest(t,
		map[string]string{"url": "https://example.com", "size": "300"},
		formPart{name: "logo", filename: "logo.png", contentType: "image/png", data: make([]byte, 4096)},
	))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Message)
}

func TestGenerate_MalformedMultipart(t *testing.T) {
	e := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader("--nope\r\ngarbage"))
	req.Header.Set(echo.HeaderContentType, "multipart/form-data; boundary=xyz")

	rec := serve(e, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Message)
}

// captureLogs routes the default slog logger into a buffer for one test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func TestGenerate_CorruptLogoIsServerError(t *testing.T) {
	logs := captureLogs(t)
	e := newTestServer(t, nil, nil)
	rec := serve(e, multipartRequest(t,
		map[string]string{"url": "https://example.com", "size": "300"},
		formPart{name: "logo", filename: "logo.png", contentType: "image/png", data: []byte("not a png at all")},
	))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Internal Server Error", resp.Message)
	assert.Contains(t, logs.String(), "APIService: failed to render QR code")
	assert.Contains(t, logs.String(), "compositing failure")
}

func TestGenerate_PersistencePolicy(t *testing.T) {
	t.Run("best effort", func(t *testing.T) {
		e := newTestServer(t, nil, &brokenStore{database.NewMemoryDatabase()})
		rec := serve(e, multipartRequest(t, map[string]string{"url": "https://example.com", "size": "200"}))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, decodeGenerateResponse(t, rec).ID)
	})

	t.Run("required", func(t *testing.T) {
		config := core.DefaultConfig()
		config.Persistence.Required = true
		logs := captureLogs(t)
		e := newTestServer(t, config, &brokenStore{database.NewMemoryDatabase()})
		rec := serve(e, multipartRequest(t, map[string]string{"url": "https://example.com", "size": "200"}))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, logs.String(), "APIService: failed to render QR code")
	})
}

func TestRecords(t *testing.T) {
	e := newTestServer(t, nil, nil)

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		rec := serve(e, multipartRequest(t, map[string]string{"url": fmt.Sprintf("https://example.com/%d", i), "size": "200"}))
		require.Equal(t, http.StatusOK, rec.Code)
		ids = append(ids, decodeGenerateResponse(t, rec).ID)
	}

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/qrcodes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var all []database.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 3)
	assert.Equal(t, ids[0], all[0].ID)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/qrcodes?offset=1&limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var page []database.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, "https://example.com/1", page[0].URL)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/qrcodes/"+ids[2], nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var one database.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, ids[2], one.ID)

	// Trailing slashes are stripped before routing
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/qrcodes/"+ids[2]+"/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecords_NotFound(t *testing.T) {
	e := newTestServer(t, nil, nil)
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/qrcodes/unknown", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "QR code not found", resp.Message)
}

func TestRecords_InvalidPaging(t *testing.T) {
	e := newTestServer(t, nil, nil)
	for _, query := range []string{"limit=0", "limit=101", "offset=-1", "limit=abc"} {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/qrcodes?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestRecords_StoreFailure(t *testing.T) {
	e := newTestServer(t, nil, &brokenStore{database.NewMemoryDatabase()})
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/qrcodes", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
