package ingest

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"audiovault/internal/config"
	"audiovault/internal/services"
)

var validate = validator.New()

// Upload is one request to store a file for an owner.
type Upload struct {
	Owner       string `validate:"required,max=128"`
	Filename    string `validate:"required,max=255"`
	ContentType string `validate:"max=255"`
	Data        []byte `validate:"min=1"`
}

// ValidationError reports an upload rejected by the allow-lists.
type ValidationError struct {
	ContentType string
	Extension   string
	Detail      string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("unsupported file: content type %q, extension %q", e.ContentType, e.Extension)
}

// Unwrap classifies every ValidationError as services.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return services.ErrValidation
}

// Validator applies the configured acceptance rules. It has no side effects.
type Validator struct {
	audioTypes map[string]struct{}
	audioExts  map[string]struct{}
	imageTypes map[string]struct{}
}

// NewValidator builds the allow-lists from cfg.Upload.
func NewValidator(cfg *config.Config) *Validator {
	return &Validator{
		audioTypes: allowList(cfg.Upload.AudioContentTypes),
		audioExts:  allowList(cfg.Upload.AudioExtensions),
		imageTypes: allowList(cfg.Upload.ImageContentTypes),
	}
}

func allowList(items []string) map[string]struct{} {
	return lo.SliceToMap(items, func(item string) (string, struct{}) {
		return strings.ToLower(strings.TrimSpace(item)), struct{}{}
	})
}

// ValidateRequest checks the request envelope before any content rules run.
func (v *Validator) ValidateRequest(up Upload) error {
	if err := validate.Struct(up); err != nil {
		return &ValidationError{Detail: fmt.Sprintf("invalid upload: %v", err)}
	}
	if !validOwner(up.Owner) {
		return &ValidationError{Detail: fmt.Sprintf("invalid owner id %q", up.Owner)}
	}
	return nil
}

// ValidateAudio accepts when the content type OR the filename extension is on
// the audio allow-list.
func (v *Validator) ValidateAudio(contentType, filename string) error {
	mediaType := BaseType(contentType)
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := v.audioTypes[mediaType]; ok {
		return nil
	}
	if _, ok := v.audioExts[ext]; ok {
		return nil
	}
	return &ValidationError{ContentType: contentType, Extension: ext}
}

// ValidateImage accepts only content types on the image allow-list.
func (v *Validator) ValidateImage(contentType string) error {
	if _, ok := v.imageTypes[BaseType(contentType)]; ok {
		return nil
	}
	return &ValidationError{ContentType: contentType, Detail: fmt.Sprintf("unsupported image type %q", contentType)}
}

// BaseType strips parameters from a content type and lower-cases it.
func BaseType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	base, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// Sniff reports the content type detected from the payload itself.
func Sniff(data []byte) string {
	return BaseType(mimetype.Detect(data).String())
}

func validOwner(owner string) bool {
	if strings.HasPrefix(owner, ".") {
		return false
	}
	for _, r := range owner {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '.', r == '@', r == '_':
		default:
			return false
		}
	}
	return true
}
