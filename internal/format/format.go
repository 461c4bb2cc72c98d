// Package format defines the photo format validation contract consumed by
// the acquisition pipeline, plus the default heuristic validator.
//
// The pipeline treats verdicts as authoritative and terminal: a rejected URL
// is never re-examined, and validator internals never leak into pipeline
// decisions beyond the Verdict fields.
package format

import "context"

// Verdict is the outcome of validating a single photo URL.
type Verdict struct {
	// IsValid reports whether the photo is in a supported still-image format.
	IsValid bool
	// DetectedFormat is the canonical format name (e.g. "jpeg", "png"),
	// empty when detection failed.
	DetectedFormat string
	// DetectedMIMEType is the resolved MIME type, empty when unknown.
	DetectedMIMEType string
	// Confidence is the validator's confidence in the verdict, in [0, 1].
	Confidence float64
	// DetectionMethod names how the verdict was reached ("mime-hint",
	// "extension", ...).
	DetectionMethod string
	// RejectionReason is set when IsValid is false.
	RejectionReason string
}

// Request is one validation input.
type Request struct {
	// URL of the photo file.
	URL string
	// MIMEHint is the provider-reported MIME type, may be empty.
	MIMEHint string
	// MetadataHint carries provider metadata fields that may aid detection,
	// may be nil.
	MetadataHint map[string]string
}

// Validator decides whether photo URLs point at supported image formats.
type Validator interface {
	// Validate examines a single photo URL.
	Validate(ctx context.Context, url, mimeHint string, metadataHint map[string]string) (Verdict, error)
	// ValidateBatch examines many URLs in one call. Verdicts are returned
	// in input order, one per request.
	ValidateBatch(ctx context.Context, requests []Request) ([]Verdict, error)
}
