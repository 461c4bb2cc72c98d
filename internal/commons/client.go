// Package commons implements a MediaWiki API client for Wikimedia-Commons
// style content providers: geographic, category and full-text file searches
// plus batched detail lookups.
package commons

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/chronomap/chronomap-go/internal/conf"
	"github.com/chronomap/chronomap-go/internal/errors"
	"github.com/chronomap/chronomap-go/internal/httpclient"
	"github.com/chronomap/chronomap-go/internal/logging"
	"github.com/chronomap/chronomap-go/internal/observability/metrics"
)

const (
	// fileNamespace is the MediaWiki namespace for File: pages.
	fileNamespace = "6"

	retryBackoffBase = time.Second
)

var (
	serviceLogger *slog.Logger
	closeLogger   func() error
)

func init() {
	var err error
	serviceLogger, closeLogger, err = logging.NewFileLogger("logs/commons.log", "commons", slog.LevelInfo)
	if err != nil || serviceLogger == nil {
		serviceLogger = logging.NewDiscardLogger("commons", slog.LevelInfo)
		closeLogger = func() error { return nil }
	}
}

// Candidate is a lightweight search result: enough to deduplicate and to
// decide whether a detail lookup is worthwhile.
type Candidate struct {
	PageID         int64
	Title          string
	Lat            float64
	Lon            float64
	HasCoordinates bool
}

// PageDetail carries the imageinfo payload for one file page.
type PageDetail struct {
	PageID         int64
	Title          string
	URL            string
	DescriptionURL string
	MIME           string
	Width          int64
	Height         int64
	// ExtMetadata holds flattened extmetadata values keyed by field name
	// (DateTimeOriginal, Artist, LicenseShortName, UsageTerms, GPSLatitude, ...).
	ExtMetadata map[string]string
}

// Config controls the client. Zero values fall back to the global settings.
type Config struct {
	BaseURL    string
	UserAgent  string
	MaxRetries int
	BatchLimit int
	RateLimit  rate.Limit
	RateBurst  int

	// Transport overrides the HTTP transport. Tests install a mock here.
	Transport http.RoundTripper
}

// Client talks to a MediaWiki action API endpoint.
type Client struct {
	httpClient  *httpclient.Client
	baseURL     string
	maxRetries  int
	batchLimit  int
	limiter     *rate.Limiter
	metrics     *metrics.ProviderMetrics
	logger      *slog.Logger
	backoffBase time.Duration
	timeout     time.Duration
}

// NewClient creates a Commons API client. A nil config uses the provider
// section of the global settings. The metrics argument may be nil.
func NewClient(cfg *Config, m *metrics.ProviderMetrics) (*Client, error) {
	settings := conf.Setting().Provider

	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = settings.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = settings.UserAgent
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = settings.MaxRetries
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = settings.BatchLimit
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Limit(settings.RateLimitRPS)
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = settings.RateLimitBurst
	}

	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, errors.Newf("invalid provider base URL %q", cfg.BaseURL).
			Component("commons").
			Category(errors.CategoryConfiguration).
			Build()
	}

	hc := httpclient.New(&httpclient.Config{
		DefaultTimeout: settings.Timeout,
		UserAgent:      cfg.UserAgent,
		Transport:      cfg.Transport,
	})

	logger := serviceLogger.With("base_url", cfg.BaseURL)
	logger.Info("Commons client initialized",
		"max_retries", cfg.MaxRetries,
		"batch_limit", cfg.BatchLimit,
		"rate_limit_rps", float64(cfg.RateLimit))

	return &Client{
		httpClient:  hc,
		baseURL:     cfg.BaseURL,
		maxRetries:  cfg.MaxRetries,
		batchLimit:  cfg.BatchLimit,
		limiter:     rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		metrics:     m,
		logger:      logger,
		backoffBase: retryBackoffBase,
		timeout:     settings.Timeout,
	}, nil
}

// BatchLimit reports the provider's maximum ids per detail request.
func (c *Client) BatchLimit() int {
	return c.batchLimit
}

// Close releases the client's pooled connections.
func (c *Client) Close() {
	c.httpClient.Close()
}

// GeoSearch returns file pages within radiusMeters of the given point.
func (c *Client) GeoSearch(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]Candidate, error) {
	reqID := uuid.New().String()
	params := map[string]string{
		"action":      "query",
		"list":        "geosearch",
		"gscoord":     fmt.Sprintf("%f|%f", lat, lon),
		"gsradius":    strconv.Itoa(radiusMeters),
		"gslimit":     strconv.Itoa(limit),
		"gsnamespace": fileNamespace,
	}

	resp, err := c.query(ctx, reqID, "geosearch", params)
	if err != nil {
		return nil, err
	}

	results, err := resp.GetObjectArray("query", "geosearch")
	if err != nil {
		// No results block means an empty result set, not a failure.
		c.logger.Debug("GeoSearch response has no results block", "request_id", reqID, "lat", lat, "lon", lon)
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(results))
	for _, obj := range results {
		pageID, err := obj.GetInt64("pageid")
		if err != nil {
			continue
		}
		title, _ := obj.GetString("title")
		cand := Candidate{PageID: pageID, Title: title}
		if candLat, latErr := obj.GetFloat64("lat"); latErr == nil {
			if candLon, lonErr := obj.GetFloat64("lon"); lonErr == nil {
				cand.Lat = candLat
				cand.Lon = candLon
				cand.HasCoordinates = true
			}
		}
		candidates = append(candidates, cand)
	}

	c.logger.Debug("GeoSearch completed",
		"request_id", reqID,
		"lat", lat, "lon", lon,
		"radius_m", radiusMeters,
		"result_count", len(candidates))
	return candidates, nil
}

// CategoryMembers returns file pages belonging to the given category. The
// "Category:" prefix is added when missing.
func (c *Client) CategoryMembers(ctx context.Context, category string, limit int) ([]Candidate, error) {
	reqID := uuid.New().String()
	title := category
	if !strings.HasPrefix(title, "Category:") {
		title = "Category:" + title
	}
	params := map[string]string{
		"action":      "query",
		"list":        "categorymembers",
		"cmtitle":     title,
		"cmtype":      "file",
		"cmlimit":     strconv.Itoa(limit),
		"cmnamespace": fileNamespace,
	}

	resp, err := c.query(ctx, reqID, "categorymembers", params)
	if err != nil {
		return nil, err
	}

	results, err := resp.GetObjectArray("query", "categorymembers")
	if err != nil {
		c.logger.Debug("CategoryMembers response has no results block", "request_id", reqID, "category", title)
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(results))
	for _, obj := range results {
		pageID, err := obj.GetInt64("pageid")
		if err != nil {
			continue
		}
		candTitle, _ := obj.GetString("title")
		candidates = append(candidates, Candidate{PageID: pageID, Title: candTitle})
	}

	c.logger.Debug("CategoryMembers completed",
		"request_id", reqID,
		"category", title,
		"result_count", len(candidates))
	return candidates, nil
}

// TextSearch runs a full-text search over file pages starting at offset.
func (c *Client) TextSearch(ctx context.Context, query string, limit, offset int) ([]Candidate, error) {
	reqID := uuid.New().String()
	params := map[string]string{
		"action":      "query",
		"list":        "search",
		"srsearch":    query,
		"srlimit":     strconv.Itoa(limit),
		"sroffset":    strconv.Itoa(offset),
		"srnamespace": fileNamespace,
	}

	resp, err := c.query(ctx, reqID, "search", params)
	if err != nil {
		return nil, err
	}

	results, err := resp.GetObjectArray("query", "search")
	if err != nil {
		c.logger.Debug("TextSearch response has no results block", "request_id", reqID, "query", query)
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(results))
	for _, obj := range results {
		pageID, err := obj.GetInt64("pageid")
		if err != nil {
			continue
		}
		title, _ := obj.GetString("title")
		candidates = append(candidates, Candidate{PageID: pageID, Title: title})
	}

	c.logger.Debug("TextSearch completed",
		"request_id", reqID,
		"query", query,
		"offset", offset,
		"result_count", len(candidates))
	return candidates, nil
}

// DetailBatch fetches imageinfo and extmetadata for the given page ids in a
// single request. The number of ids must not exceed BatchLimit.
func (c *Client) DetailBatch(ctx context.Context, pageIDs []int64) (map[int64]PageDetail, error) {
	if len(pageIDs) == 0 {
		return map[int64]PageDetail{}, nil
	}
	if len(pageIDs) > c.batchLimit {
		return nil, errors.Newf("detail batch of %d ids exceeds provider limit %d", len(pageIDs), c.batchLimit).
			Component("commons").
			Category(errors.CategoryValidation).
			Context("batch_size", len(pageIDs)).
			Context("batch_limit", c.batchLimit).
			Build()
	}

	reqID := uuid.New().String()
	ids := make([]string, len(pageIDs))
	for i, id := range pageIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	params := map[string]string{
		"action":  "query",
		"pageids": strings.Join(ids, "|"),
		"prop":    "imageinfo",
		"iiprop":  "url|mime|size|extmetadata",
	}

	resp, err := c.query(ctx, reqID, "imageinfo", params)
	if err != nil {
		return nil, err
	}

	pages, err := resp.GetObjectArray("query", "pages")
	if err != nil {
		c.logger.Warn("DetailBatch response has no pages block", "request_id", reqID, "batch_size", len(pageIDs))
		return map[int64]PageDetail{}, nil
	}

	details := make(map[int64]PageDetail, len(pages))
	for _, page := range pages {
		pageID, err := page.GetInt64("pageid")
		if err != nil {
			continue
		}
		if missing, _ := page.GetBoolean("missing"); missing {
			continue
		}

		detail := PageDetail{PageID: pageID}
		detail.Title, _ = page.GetString("title")

		infos, err := page.GetObjectArray("imageinfo")
		if err != nil || len(infos) == 0 {
			continue
		}
		info := infos[0]
		detail.URL, _ = info.GetString("url")
		detail.DescriptionURL, _ = info.GetString("descriptionurl")
		detail.MIME, _ = info.GetString("mime")
		detail.Width, _ = info.GetInt64("width")
		detail.Height, _ = info.GetInt64("height")
		detail.ExtMetadata = flattenExtMetadata(info)

		details[pageID] = detail
	}

	c.logger.Debug("DetailBatch completed",
		"request_id", reqID,
		"requested", len(pageIDs),
		"resolved", len(details))
	return details, nil
}

// flattenExtMetadata turns the nested {field: {value: ...}} extmetadata
// structure into a flat string map.
func flattenExtMetadata(info *jason.Object) map[string]string {
	ext, err := info.GetObject("extmetadata")
	if err != nil {
		return nil
	}
	fields := ext.Map()
	out := make(map[string]string, len(fields))
	for name, fieldValue := range fields {
		field, err := fieldValue.Object()
		if err != nil {
			continue
		}
		if value, err := field.GetString("value"); err == nil {
			out[name] = value
		}
	}
	return out
}

// query performs one rate-limited API call with retries and exponential
// backoff. Structured API errors and client errors are permanent; transport
// failures and 429/5xx responses are retried.
func (c *Client) query(ctx context.Context, reqID, operation string, params map[string]string) (*jason.Object, error) {
	logger := c.logger.With("request_id", reqID, "operation", operation)

	fullURL := c.buildURL(params)
	queryStart := time.Now()

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		attemptLogger := logger.With("attempt", attempt+1, "max_attempts", c.maxRetries)

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.New(err).
				Component("commons").
				Category(errors.CategoryNetwork).
				Context("request_id", reqID).
				Context("operation", "rate_limiter_wait").
				Build()
		}

		start := time.Now()
		resp, err := c.doRequest(ctx, fullURL, attemptLogger)
		if c.metrics != nil {
			c.metrics.ObserveRequest(operation, time.Since(start), err == nil)
		}
		if err == nil {
			apiErr := extractAPIError(resp)
			if apiErr != nil {
				// The provider told us the request itself is wrong.
				attemptLogger.Warn("Provider returned structured API error", "error", apiErr)
				return nil, apiErr
			}
			return resp, nil
		}

		if errors.IsCategory(err, errors.CategoryValidation) || errors.IsCategory(err, errors.CategoryHTTP) {
			return nil, err
		}

		lastErr = err
		attemptLogger.Warn("API request failed",
			"error", err,
			"will_retry", attempt < c.maxRetries-1)

		if attempt < c.maxRetries-1 {
			wait := c.backoffBase * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return nil, errors.New(ctx.Err()).
					Component("commons").
					Category(errors.CategoryNetwork).
					Context("request_id", reqID).
					Context("operation", operation).
					Build()
			case <-time.After(wait):
			}
		}
	}

	logger.Error("API request exhausted retries", "error", lastErr)
	return nil, errors.New(lastErr).
		Component("commons").
		Category(errors.CategoryNetwork).
		Context("request_id", reqID).
		Context("max_retries", c.maxRetries).
		Timing(operation, time.Since(queryStart)).
		Build()
}

// doRequest performs one HTTP round trip and parses the JSON body.
func (c *Client) doRequest(ctx context.Context, fullURL string, logger *slog.Logger) (*jason.Object, error) {
	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, errors.New(err).
			Component("commons").
			Category(errors.CategoryNetwork).
			NetworkContext(fullURL, c.timeout).
			Build()
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Debug("Failed to close response body", "error", closeErr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to parsing
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		// Retryable provider-side condition.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("provider returned status %d: %s", resp.StatusCode, string(body)).
			Component("commons").
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Build()
	default:
		// 4xx other than 429 will not get better on retry.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("provider rejected request with status %d: %s", resp.StatusCode, string(body)).
			Component("commons").
			Category(errors.CategoryHTTP).
			Context("status_code", resp.StatusCode).
			Build()
	}

	obj, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return nil, errors.New(err).
			Component("commons").
			Category(errors.CategoryNetwork).
			Context("operation", "parse_response").
			Build()
	}
	return obj, nil
}

// extractAPIError maps a structured MediaWiki error block to an enhanced
// error, or returns nil when the response carries none.
func extractAPIError(resp *jason.Object) error {
	errorObj, err := resp.GetObject("error")
	if err != nil {
		return nil
	}
	code, _ := errorObj.GetString("code")
	info, _ := errorObj.GetString("info")
	return errors.Newf("provider API error %s: %s", code, info).
		Component("commons").
		Category(errors.CategoryHTTP).
		Context("error_code", code).
		Context("error_info", info).
		Build()
}

func (c *Client) buildURL(params map[string]string) string {
	values := url.Values{}
	values.Set("format", "json")
	values.Set("formatversion", "2")
	for k, v := range params {
		values.Set(k, v)
	}
	return c.baseURL + "?" + values.Encode()
}
