package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"local_rag/internal/chunker"
	"local_rag/internal/document"
	"local_rag/internal/store"
)

// IngestOptions controls one ingestion run.
type IngestOptions struct {
	// Force re-ingests every document, ignoring the index metadata.
	Force bool
}

// Failure is one item the ingestion could not process. ChunkIndex is -1 for
// failures that concern the whole document.
type Failure struct {
	Source     string
	ChunkIndex int
	Err        error
}

func (f Failure) Error() string {
	if f.ChunkIndex < 0 {
		return fmt.Sprintf("%s: %v", f.Source, f.Err)
	}
	return fmt.Sprintf("%s chunk %d: %v", f.Source, f.ChunkIndex, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// IngestReport summarises an ingestion run.
type IngestReport struct {
	Documents int // Documents chunked and written in this run
	Skipped   int // Documents left untouched because they did not change
	Removed   int // Documents pruned because their file disappeared
	Chunks    int // Chunks produced
	Written   int // Records written to the store
	Failures  []Failure
}

// Err joins every failure of the run, or returns nil.
func (r *IngestReport) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (r *IngestReport) fail(source string, chunkIndex int, err error) {
	log.Printf("❌ %v", Failure{Source: source, ChunkIndex: chunkIndex, Err: err})
	r.Failures = append(r.Failures, Failure{Source: source, ChunkIndex: chunkIndex, Err: err})
}

type embedResult struct {
	vec []float32
	err error
}

// Ingest loads the documents of the data directory, chunks and embeds the
// ones that changed since the last run and writes them to the store.
//
// Embedding and write failures do not stop the run: they are collected in
// the report and the affected document is retried on the next run. Records
// already written stay in the store. The returned error is reserved for
// failures that stop the whole run.
func (a *App) Ingest(ctx context.Context, opts IngestOptions) (*IngestReport, error) {
	if err := a.factory.Config().Validate(); err != nil {
		return nil, err
	}

	report := &IngestReport{}
	sources, err := a.loader.Sources(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("📂 Found %d documents in %s", len(sources), a.cfg.DataDir)

	a.prune(ctx, sources, report)

	var pending []string
	for _, src := range sources {
		if !opts.Force && a.unchanged(src) {
			report.Skipped++
			continue
		}
		pending = append(pending, src)
	}

	progress := a.progress(len(pending))
	runErr := func() error {
		for _, src := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := a.loader.LoadSource(src)
			if err != nil {
				report.fail(src, -1, err)
			} else if err := a.ingestDocument(ctx, doc, report); err != nil {
				return err
			}
			if progress != nil {
				progress.Increment()
			}
		}
		return nil
	}()
	if progress != nil {
		progress.Finish()
	}

	if err := a.metadata.save(a.cfg.MetadataFile()); err != nil {
		return report, fmt.Errorf("failed to save metadata: %w", err)
	}

	log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Printf("📊 Summary:")
	log.Printf("   Documents: %d ingested, %d unchanged, %d removed", report.Documents, report.Skipped, report.Removed)
	log.Printf("   Chunks: %d, written: %d", report.Chunks, report.Written)
	log.Printf("   ❌ Failures: %d", len(report.Failures))
	log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return report, runErr
}

// unchanged stats the file of src and compares it with the metadata.
func (a *App) unchanged(src string) bool {
	info, err := os.Stat(filepath.Join(a.cfg.DataDir, filepath.FromSlash(src)))
	if err != nil {
		return false
	}
	return a.metadata.unchanged(src, fingerprint(info.ModTime(), info.Size(), a.factory.Config(), a.cfg.ChunkMethod))
}

// prune deletes the records of indexed files that are no longer present.
func (a *App) prune(ctx context.Context, sources []string, report *IngestReport) {
	present := make(map[string]bool, len(sources))
	for _, src := range sources {
		present[src] = true
	}
	for src := range a.metadata.Files {
		if present[src] {
			continue
		}
		if err := a.store.DeleteSource(ctx, src); err != nil {
			report.fail(src, -1, fmt.Errorf("%w: %w", store.ErrWriteFailure, err))
			continue
		}
		log.Printf("🗑️  Removed %s from the index", src)
		delete(a.metadata.Files, src)
		report.Removed++
	}
}

// ingestDocument replaces the records of doc. Only a context error is
// returned; every other failure lands in the report.
func (a *App) ingestDocument(ctx context.Context, doc document.Document, report *IngestReport) error {
	chunkr, err := a.factory.GetChunker(doc.Path, a.cfg.ChunkMethod)
	if err != nil {
		report.fail(doc.Source, -1, err)
		return nil
	}
	chunks, err := chunkr.Chunk(doc.Content, doc.Source)
	if err != nil {
		report.fail(doc.Source, -1, err)
		return nil
	}

	// Track the document without a fingerprint while its records change:
	// it stays prunable and is retried until every chunk is written.
	info := FileInfo{
		Path:         doc.Source,
		LastModified: doc.ModTime,
		Size:         doc.Size,
		Chunks:       len(chunks),
		Failed:       len(chunks),
	}
	a.metadata.Files[doc.Source] = info
	if err := a.store.DeleteSource(ctx, doc.Source); err != nil {
		report.fail(doc.Source, -1, fmt.Errorf("%w: %w", store.ErrWriteFailure, err))
		return nil
	}

	report.Documents++
	report.Chunks += len(chunks)

	results := a.embedChunks(ctx, chunks)
	if err := ctx.Err(); err != nil {
		return err
	}

	failed := 0
	for i, ch := range chunks {
		if results[i].err != nil {
			report.fail(doc.Source, ch.Index, results[i].err)
			failed++
			continue
		}
		if err := a.store.Upsert(ctx, toRecord(ch, results[i].vec)); err != nil {
			report.fail(doc.Source, ch.Index, err)
			failed++
			continue
		}
		report.Written++
	}

	info.Failed = failed
	if failed > 0 {
		a.metadata.Files[doc.Source] = info
		log.Printf("⚠️  %s: %d of %d chunks failed", doc.Source, failed, len(chunks))
		return nil
	}

	info.Fingerprint = fingerprint(doc.ModTime, doc.Size, a.factory.Config(), a.cfg.ChunkMethod)
	a.metadata.Files[doc.Source] = info
	log.Printf("✅ Indexed %s (%d chunks)", doc.Source, len(chunks))
	return nil
}

// embedChunks embeds chunks with at most MaxConcurrency calls in flight.
// Each goroutine owns one slot of the result slice.
func (a *App) embedChunks(ctx context.Context, chunks []chunker.Chunk) []embedResult {
	results := make([]embedResult, len(chunks))
	sem := make(chan struct{}, max(a.cfg.MaxConcurrency, 1))
	var wg sync.WaitGroup

	for i, ch := range chunks {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			for j := i; j < len(chunks); j++ {
				results[j].err = ctx.Err()
			}
			wg.Wait()
			return results
		}

		wg.Add(1)
		go func(idx int, text string) {
			defer wg.Done()
			defer func() { <-sem }()

			vec, err := a.embedder.Embed(ctx, text)
			results[idx] = embedResult{vec: vec, err: err}
		}(i, ch.Text)
	}

	wg.Wait()
	return results
}

func toRecord(ch chunker.Chunk, vec []float32) store.Record {
	metadata := make(map[string]string, len(ch.Metadata)+4)
	for k, v := range ch.Metadata {
		metadata[k] = v
	}
	metadata[store.MetaSource] = ch.Source
	metadata[store.MetaChunkIndex] = strconv.Itoa(ch.Index)
	metadata[store.MetaStart] = strconv.Itoa(ch.Start)
	if ch.Section != "" {
		metadata[store.MetaSection] = ch.Section
	}
	return store.Record{
		ID:        ch.ID,
		Embedding: vec,
		Content:   ch.Text,
		Metadata:  metadata,
	}
}
