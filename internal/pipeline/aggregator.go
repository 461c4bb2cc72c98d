package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chronomap/chronomap-go/internal/commons"
	"github.com/chronomap/chronomap-go/internal/errors"
	"github.com/chronomap/chronomap-go/internal/format"
	"github.com/chronomap/chronomap-go/internal/observability/metrics"
)

// maxConcurrentChunks bounds how many detail/validation chunk pipelines run
// at once.
const maxConcurrentChunks = 4

// Aggregator deduplicates raw search hits and turns them into validated
// PhotoRecords through batched detail and validation calls.
type Aggregator struct {
	provider  Provider
	validator format.Validator
	extractor *Extractor
	metrics   *metrics.PipelineMetrics
}

// NewAggregator creates an Aggregator. The metrics argument may be nil.
func NewAggregator(provider Provider, validator format.Validator, extractor *Extractor, m *metrics.PipelineMetrics) *Aggregator {
	return &Aggregator{
		provider:  provider,
		validator: validator,
		extractor: extractor,
		metrics:   m,
	}
}

// Aggregate deduplicates candidates, chunks them to the provider's batch
// limit and runs each chunk through detail fetch, metadata extraction and
// exactly one batched validation call. Chunk-level failures contribute zero
// records instead of aborting the attempt.
func (a *Aggregator) Aggregate(ctx context.Context, candidates []commons.Candidate) []PhotoRecord {
	deduped := dedupeCandidates(candidates)
	if len(deduped) == 0 {
		return nil
	}

	chunks := chunkCandidates(deduped, a.provider.BatchLimit())
	serviceLogger.Debug("Aggregating candidates",
		"raw", len(candidates),
		"deduped", len(deduped),
		"chunks", len(chunks))

	var mu sync.Mutex
	var records []PhotoRecord

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChunks)
	for i, chunk := range chunks {
		g.Go(func() error {
			chunkRecords := a.processChunk(gctx, i, chunk)
			mu.Lock()
			records = append(records, chunkRecords...)
			mu.Unlock()
			// Chunk failures never abort sibling chunks.
			return nil
		})
	}
	_ = g.Wait()

	return records
}

// processChunk runs one chunk end to end. Any chunk-scoped error is logged
// and yields zero records.
func (a *Aggregator) processChunk(ctx context.Context, chunkIndex int, chunk []commons.Candidate) []PhotoRecord {
	logger := serviceLogger.With("chunk", chunkIndex, "chunk_size", len(chunk))

	ids := make([]int64, len(chunk))
	byID := make(map[int64]commons.Candidate, len(chunk))
	for i, cand := range chunk {
		ids[i] = cand.PageID
		byID[cand.PageID] = cand
	}

	details, err := a.provider.DetailBatch(ctx, ids)
	if err != nil {
		logger.Warn("Detail batch failed, dropping chunk", "error", err)
		a.rejectChunk(len(chunk), "detail_fetch_failed")
		return nil
	}

	// Metadata extraction happens before validation so obviously unusable
	// candidates never reach the validator.
	type pending struct {
		record *PhotoRecord
	}
	pendings := make([]pending, 0, len(chunk))
	requests := make([]format.Request, 0, len(chunk))

	for _, id := range ids {
		detail, ok := details[id]
		if !ok || detail.URL == "" {
			a.reject("missing_detail")
			continue
		}

		var geo *LatLon
		if cand := byID[id]; cand.HasCoordinates {
			geo = &LatLon{Lat: cand.Lat, Lon: cand.Lon}
		}

		record, err := a.extractor.Extract(detail, geo)
		if err != nil {
			switch {
			case errors.Is(err, ErrNoUsableYear):
				a.reject("no_year")
			case errors.Is(err, ErrNoUsableCoordinates):
				a.reject("no_coordinates")
			default:
				a.reject("extraction_failed")
			}
			continue
		}

		pendings = append(pendings, pending{record: record})
		requests = append(requests, format.Request{
			URL:          record.URL,
			MIMEHint:     detail.MIME,
			MetadataHint: detail.ExtMetadata,
		})
	}

	if len(requests) == 0 {
		return nil
	}

	// One batched validation call per chunk, never one per candidate.
	verdicts, err := a.validator.ValidateBatch(ctx, requests)
	if err != nil || len(verdicts) != len(requests) {
		logger.Warn("Batched validation failed, dropping chunk",
			"error", err,
			"requested", len(requests))
		a.rejectChunk(len(requests), "validation_batch_failed")
		return nil
	}

	records := make([]PhotoRecord, 0, len(pendings))
	for i, p := range pendings {
		verdict := verdicts[i]
		if !verdict.IsValid || verdict.DetectedFormat == "" {
			a.reject("format_rejected")
			continue
		}
		p.record.Metadata.Format = verdict.DetectedFormat
		if verdict.DetectedMIMEType != "" {
			p.record.Metadata.MIMEType = verdict.DetectedMIMEType
		}
		records = append(records, *p.record)
		if a.metrics != nil {
			a.metrics.IncrementAccepted()
		}
	}

	logger.Debug("Chunk processed",
		"extracted", len(pendings),
		"accepted", len(records))
	return records
}

func (a *Aggregator) reject(reason string) {
	if a.metrics != nil {
		a.metrics.IncrementRejected(reason)
	}
}

func (a *Aggregator) rejectChunk(n int, reason string) {
	if a.metrics == nil {
		return
	}
	for range n {
		a.metrics.IncrementRejected(reason)
	}
}

// dedupeCandidates removes duplicate provider ids, first occurrence wins.
func dedupeCandidates(candidates []commons.Candidate) []commons.Candidate {
	seen := make(map[int64]struct{}, len(candidates))
	out := make([]commons.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if _, dup := seen[cand.PageID]; dup {
			continue
		}
		seen[cand.PageID] = struct{}{}
		out = append(out, cand)
	}
	return out
}

// chunkCandidates splits candidates into slices no longer than limit.
func chunkCandidates(candidates []commons.Candidate, limit int) [][]commons.Candidate {
	if limit <= 0 {
		limit = 1
	}
	var chunks [][]commons.Candidate
	for start := 0; start < len(candidates); start += limit {
		end := min(start+limit, len(candidates))
		chunks = append(chunks, candidates[start:end])
	}
	return chunks
}
