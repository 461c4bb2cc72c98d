package errors

import (
	"fmt"
	"testing"
	"time"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic', got '%s'", ee.Category)
	}
}

func TestBuilderContext(t *testing.T) {
	t.Parallel()

	ee := Newf("fetch failed for %s", "chunk-3").
		Component("pipeline").
		Category(CategoryPhotoFetch).
		Context("chunk_size", 50).
		Build()

	if ee.GetComponent() != "pipeline" {
		t.Errorf("Expected component 'pipeline', got '%s'", ee.GetComponent())
	}
	if got := ee.GetContext()["chunk_size"]; got != 50 {
		t.Errorf("Expected context chunk_size=50, got %v", got)
	}
}

func TestNetworkContextAnonymizesURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"https://commons.example/w/api.php?action=query", "https-endpoint"},
		{"http://localhost:8080/api", "http-endpoint"},
		{"ftp://files.example/x", "other-protocol"},
	}

	for _, tt := range tests {
		ee := Newf("request failed").
			Category(CategoryNetwork).
			NetworkContext(tt.url, 15*time.Second).
			Build()
		ctx := ee.GetContext()
		if ctx["url_category"] != tt.want {
			t.Errorf("NetworkContext(%q) url_category = %v, want %s", tt.url, ctx["url_category"], tt.want)
		}
		if ctx["timeout_seconds"] != 15.0 {
			t.Errorf("NetworkContext timeout_seconds = %v, want 15", ctx["timeout_seconds"])
		}
	}

	ee := Newf("request failed").NetworkContext("", 0).Build()
	if ctx := ee.GetContext(); ctx != nil {
		t.Errorf("NetworkContext with zero values should add no context, got %v", ctx)
	}
}

func TestTimingContext(t *testing.T) {
	t.Parallel()

	ee := Newf("slow call").
		Timing("geosearch", 1500*time.Millisecond).
		Build()

	ctx := ee.GetContext()
	if ctx["operation"] != "geosearch" {
		t.Errorf("Timing operation = %v, want geosearch", ctx["operation"])
	}
	if ctx["duration_ms"] != int64(1500) {
		t.Errorf("Timing duration_ms = %v, want 1500", ctx["duration_ms"])
	}
}

func TestCategoryDetectionFromMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  string
		want ErrorCategory
	}{
		{"connection refused", CategoryNetwork},
		{"context deadline exceeded", CategoryTimeout},
		{"invalid coordinates", CategoryValidation},
		{"page not found", CategoryNotFound},
		{"something else entirely", CategoryGeneric},
	}

	for _, tt := range tests {
		ee := Newf("%s", tt.msg).Build()
		if ee.Category != tt.want {
			t.Errorf("detectCategory(%q) = %s, want %s", tt.msg, ee.Category, tt.want)
		}
	}
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	ee := Newf("cache full").Category(CategoryCache).Build()
	wrapped := fmt.Errorf("outer: %w", ee)

	if !IsCategory(wrapped, CategoryCache) {
		t.Error("IsCategory should see through wrapping")
	}
	if IsCategory(wrapped, CategoryNetwork) {
		t.Error("IsCategory matched the wrong category")
	}
}
