package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator"
	"go.uber.org/multierr"
)

const (
	DefaultForegroundColor = "#000000"
	DefaultBackgroundColor = "#ffffff"
	DefaultFormat          = FormatPNG

	MinSize      = 200
	MaxSize      = 400
	MaxLogoBytes = 2 * 1024 * 1024
)

// Format is the output encoding of a generated code.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// MimeType returns the media type of the encoded image.
func (f Format) MimeType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// LogoUpload is an uploaded logo as received from the client.
type LogoUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RawRequest holds the untyped form values of a generation request.
// Empty strings are treated as absent.
type RawRequest struct {
	URL             string
	ForegroundColor string
	BackgroundColor string
	Size            string
	Format          string
	Logo            *LogoUpload
}

// GenerationRequest is a request that satisfied every constraint.
type GenerationRequest struct {
	URL             string
	ForegroundColor string
	BackgroundColor string
	Size            int
	Format          Format
	Logo            *LogoUpload
}

// HasLogo reports whether a logo accompanies the request.
func (r *GenerationRequest) HasLogo() bool {
	return r.Logo != nil && len(r.Logo.Data) > 0
}

type requestFields struct {
	URL             string `validate:"absurl"`
	ForegroundColor string `validate:"hexcolor6"`
	BackgroundColor string `validate:"hexcolor6"`
	Size            string `validate:"qrsize"`
	Format          string `validate:"oneof=png svg"`
}

type logoFields struct {
	ContentType string `validate:"imagemime"`
	Length      int    `validate:"max=2097152"`
}

var hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// RegisterCustomValidations adds the tags used by generation requests to v.
func RegisterCustomValidations(v *validator.Validate) error {
	custom := map[string]validator.Func{
		"absurl":    isAbsoluteURL,
		"hexcolor6": isHexColor,
		"qrsize":    isQRSize,
		"imagemime": isImageMime,
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register validation %q: %w", tag, err)
		}
	}
	return nil
}

func isAbsoluteURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	return err == nil && u.Scheme != "" && u.Host != ""
}

func isHexColor(fl validator.FieldLevel) bool {
	return hexColorRegex.MatchString(fl.Field().String())
}

func isQRSize(fl validator.FieldLevel) bool {
	size, err := strconv.Atoi(fl.Field().String())
	return err == nil && size >= MinSize && size <= MaxSize
}

func isImageMime(fl validator.FieldLevel) bool {
	return strings.HasPrefix(strings.ToLower(fl.Field().String()), "image/")
}

// Validator checks raw generation requests.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the custom tags registered.
func NewValidator() (*Validator, error) {
	v := validator.New()
	if err := RegisterCustomValidations(v); err != nil {
		return nil, err
	}
	return &Validator{validate: v}, nil
}

var (
	defaultValidator     *Validator
	defaultValidatorErr  error
	defaultValidatorOnce sync.Once
)

// Validate checks raw with a shared Validator.
func Validate(raw RawRequest) (*GenerationRequest, error) {
	defaultValidatorOnce.Do(func() {
		defaultValidator, defaultValidatorErr = NewValidator()
	})
	if defaultValidatorErr != nil {
		return nil, defaultValidatorErr
	}
	return defaultValidator.Validate(raw)
}

// Validate applies defaults to absent fields and checks every constraint.
// All violations are reported together in a *ValidationError.
func (v *Validator) Validate(raw RawRequest) (*GenerationRequest, error) {
	fields := requestFields{
		URL:             raw.URL,
		ForegroundColor: withDefault(raw.ForegroundColor, DefaultForegroundColor),
		BackgroundColor: withDefault(raw.BackgroundColor, DefaultBackgroundColor),
		Size:            raw.Size,
		Format:          withDefault(raw.Format, string(DefaultFormat)),
	}

	var errs error
	if err := v.validate.Struct(fields); err != nil {
		fieldErrs, ferr := fieldErrors(err)
		if ferr != nil {
			return nil, ferr
		}
		errs = multierr.Append(errs, multierr.Combine(fieldErrs...))
	}

	if raw.Logo != nil {
		logo := logoFields{
			ContentType: raw.Logo.ContentType,
			Length:      len(raw.Logo.Data),
		}
		if err := v.validate.Struct(logo); err != nil {
			fieldErrs, ferr := fieldErrors(err)
			if ferr != nil {
				return nil, ferr
			}
			errs = multierr.Append(errs, multierr.Combine(fieldErrs...))
		}
	}

	if errs != nil {
		verr := &ValidationError{errs: errs}
		slog.Debug("Validator: request rejected", "violations", len(multierr.Errors(errs)))
		return nil, verr
	}

	size, _ := strconv.Atoi(fields.Size)
	return &GenerationRequest{
		URL:             fields.URL,
		ForegroundColor: strings.ToLower(fields.ForegroundColor),
		BackgroundColor: strings.ToLower(fields.BackgroundColor),
		Size:            size,
		Format:          Format(fields.Format),
		Logo:            raw.Logo,
	}, nil
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// fieldErrors turns validator output into field errors.
func fieldErrors(err error) ([]error, error) {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil, fmt.Errorf("unexpected validation error: %w", err)
	}

	errs := make([]error, 0, len(validationErrs))
	for _, fe := range validationErrs {
		errs = append(errs, describe(fe))
	}
	return errs, nil
}

func describe(fe validator.FieldError) *FieldError {
	switch fe.StructField() {
	case "URL":
		return &FieldError{Field: "url", Code: InvalidUrl, Message: "must be an absolute URL with scheme and host"}
	case "ForegroundColor":
		return &FieldError{Field: "foregroundColor", Code: InvalidColor, Message: "must be # followed by 6 hex digits"}
	case "BackgroundColor":
		return &FieldError{Field: "backgroundColor", Code: InvalidColor, Message: "must be # followed by 6 hex digits"}
	case "Size":
		return &FieldError{Field: "size", Code: InvalidSize, Message: fmt.Sprintf("must be an integer between %d and %d", MinSize, MaxSize)}
	case "Format":
		return &FieldError{Field: "format", Code: InvalidFormat, Message: "must be png or svg"}
	case "ContentType":
		return &FieldError{Field: "logo", Code: UnsupportedLogoType, Message: "must be an image"}
	case "Length":
		return &FieldError{Field: "logo", Code: LogoTooLarge, Message: fmt.Sprintf("must not exceed %d bytes", MaxLogoBytes)}
	}
	return &FieldError{Field: fe.Field(), Code: ErrorCode(fe.Tag()), Message: fmt.Sprintf("failed on the %q tag", fe.Tag())}
}
