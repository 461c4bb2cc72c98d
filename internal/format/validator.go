package format

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/chronomap/chronomap-go/internal/logging"
)

const (
	methodMIMEHint  = "mime-hint"
	methodExtension = "extension"

	mimeHintConfidence  = 0.9
	extensionConfidence = 0.7

	verdictMemoTTL     = time.Hour
	verdictMemoCleanup = 10 * time.Minute
)

var (
	serviceLogger *slog.Logger
	closeLogger   func() error
)

func init() {
	var err error
	serviceLogger, closeLogger, err = logging.NewFileLogger("logs/format.log", "format", slog.LevelInfo)
	if err != nil || serviceLogger == nil {
		serviceLogger = logging.NewDiscardLogger("format", slog.LevelInfo)
		closeLogger = func() error { return nil }
	}
}

// supportedFormats maps canonical format names to their MIME type. Only
// still-image raster formats qualify as usable photo records.
var supportedFormats = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// extensionFormats maps file extensions (lowercase, no dot) to canonical
// format names.
var extensionFormats = map[string]string{
	"jpg":  "jpeg",
	"jpeg": "jpeg",
	"jpe":  "jpeg",
	"png":  "png",
	"gif":  "gif",
	"tif":  "tiff",
	"tiff": "tiff",
	"webp": "webp",
}

// mimeFormats maps MIME types to canonical format names.
var mimeFormats = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/tiff": "tiff",
	"image/webp": "webp",
}

// HeuristicValidator is the default Validator. It decides from the
// provider-reported MIME type when available, falling back to the URL's file
// extension. Verdicts are memoized per URL.
type HeuristicValidator struct {
	memo   *gocache.Cache
	logger *slog.Logger
}

// NewHeuristicValidator creates the default validator.
func NewHeuristicValidator() *HeuristicValidator {
	return &HeuristicValidator{
		memo:   gocache.New(verdictMemoTTL, verdictMemoCleanup),
		logger: serviceLogger,
	}
}

// Validate examines a single photo URL.
func (v *HeuristicValidator) Validate(ctx context.Context, photoURL, mimeHint string, metadataHint map[string]string) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}

	memoKey := photoURL + "|" + mimeHint
	if cached, found := v.memo.Get(memoKey); found {
		return cached.(Verdict), nil
	}

	verdict := v.examine(photoURL, mimeHint, metadataHint)
	v.memo.Set(memoKey, verdict, gocache.DefaultExpiration)

	if !verdict.IsValid {
		v.logger.Debug("Photo rejected",
			"url", photoURL,
			"reason", verdict.RejectionReason,
			"method", verdict.DetectionMethod)
	}
	return verdict, nil
}

// ValidateBatch examines many URLs in one call, returning verdicts in input
// order.
func (v *HeuristicValidator) ValidateBatch(ctx context.Context, requests []Request) ([]Verdict, error) {
	verdicts := make([]Verdict, len(requests))
	for i, req := range requests {
		verdict, err := v.Validate(ctx, req.URL, req.MIMEHint, req.MetadataHint)
		if err != nil {
			return nil, err
		}
		verdicts[i] = verdict
	}
	return verdicts, nil
}

func (v *HeuristicValidator) examine(photoURL, mimeHint string, metadataHint map[string]string) Verdict {
	if mimeHint == "" {
		if hinted, ok := metadataHint["MIMEType"]; ok {
			mimeHint = hinted
		}
	}

	if mimeHint != "" {
		mime := strings.ToLower(strings.TrimSpace(mimeHint))
		if name, ok := mimeFormats[mime]; ok {
			return Verdict{
				IsValid:          true,
				DetectedFormat:   name,
				DetectedMIMEType: supportedFormats[name],
				Confidence:       mimeHintConfidence,
				DetectionMethod:  methodMIMEHint,
			}
		}
		return Verdict{
			IsValid:          false,
			DetectedMIMEType: mime,
			Confidence:       mimeHintConfidence,
			DetectionMethod:  methodMIMEHint,
			RejectionReason:  "unsupported MIME type " + mime,
		}
	}

	ext := urlExtension(photoURL)
	if ext == "" {
		return Verdict{
			IsValid:         false,
			Confidence:      extensionConfidence,
			DetectionMethod: methodExtension,
			RejectionReason: "no MIME hint and no file extension",
		}
	}
	if name, ok := extensionFormats[ext]; ok {
		return Verdict{
			IsValid:          true,
			DetectedFormat:   name,
			DetectedMIMEType: supportedFormats[name],
			Confidence:       extensionConfidence,
			DetectionMethod:  methodExtension,
		}
	}
	return Verdict{
		IsValid:         false,
		Confidence:      extensionConfidence,
		DetectionMethod: methodExtension,
		RejectionReason: "unsupported file extension ." + ext,
	}
}

// urlExtension extracts the lowercase file extension from a URL path,
// without the leading dot.
func urlExtension(photoURL string) string {
	parsed, err := url.Parse(photoURL)
	if err != nil {
		return ""
	}
	ext := path.Ext(parsed.Path)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
