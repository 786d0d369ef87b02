package app

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local_rag/internal/document"
	"local_rag/internal/embedding"
	"local_rag/internal/store"
)

func TestIngest_WritesEveryChunk(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	writeDoc(t, cfg, "a.txt", "ABCDEFGHIJ")
	writeDoc(t, cfg, "notes/b.md", "# Title\n\nSome words here.\n")
	writeDoc(t, cfg, "ignored.csv", "x,y\n")
	st := openStore(t, cfg)
	a := newTestApp(t, cfg, nil, st)

	report, err := a.Ingest(ctx, IngestOptions{})
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, report.Chunks, report.Written)
	assert.Empty(t, report.Failures)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.Written, n)
}

func TestIngest_EmptyDocument(t *testing.T) {
	cfg := testConfig(t)
	writeDoc(t, cfg, "empty.txt", "")
	a := newTestApp(t, cfg, nil, nil)

	report, err := a.Ingest(context.Background(), IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
	assert.Zero(t, report.Chunks)
	assert.Zero(t, report.Written)
	assert.Empty(t, report.Failures)

	report, err = a.Ingest(context.Background(), IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
}

func TestIngest_Incremental(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	pathA := writeDoc(t, cfg, "a.txt", "AAAABBBB")
	writeDoc(t, cfg, "b.txt", "CCCCDDDD")
	st := openStore(t, cfg)
	a := newTestApp(t, cfg, nil, st)

	report, err := a.Ingest(ctx, IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 4, report.Written)

	report, err = a.Ingest(ctx, IngestOptions{})
	require.NoError(t, err)
	assert.Zero(t, report.Documents)
	assert.Equal(t, 2, report.Skipped)

	// a changed: its old records are replaced, not added to
	require.NoError(t, os.WriteFile(pathA, []byte("EEEE"), 0o644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(pathA, later, later))

	report, err = a.Ingest(ctx, IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, 1, report.Skipped)
	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// b removed: its records are pruned
	require.NoError(t, os.Remove(cfg.DataDir+"/b.txt"))
	report, err = a.Ingest(ctx, IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)
	n, err = st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// force re-ingests everything without duplicating records
	report, err = a.Ingest(ctx, IngestOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
	assert.Zero(t, report.Skipped)
	n, err = st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngest_EmbeddingFailureIsSkippedAndReported(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	writeDoc(t, cfg, "doc.txt", "AAAABBBBXXXXCCCC")
	st := openStore(t, cfg)
	a := newTestApp(t, cfg, failingEmbedder(cfg.EmbedDimensions, "XX"), st)

	report, err := a.Ingest(ctx, IngestOptions{})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Chunks)
	assert.Equal(t, 3, report.Written)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "doc.txt", report.Failures[0].Source)
	assert.Equal(t, 2, report.Failures[0].ChunkIndex)
	assert.ErrorIs(t, report.Failures[0], embedding.ErrEmbeddingFailure)
	assert.ErrorIs(t, report.Err(), embedding.ErrEmbeddingFailure)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// a document with failures is retried on the next run
	report, err = a.Ingest(ctx, IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
	assert.Len(t, report.Failures, 1)
	n, err = st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIngest_StoreWriteFailureKeepsPriorWrites(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	writeDoc(t, cfg, "doc.txt", "AAAABBBBCCCCDDDD")
	st := &flakyStore{Store: openStore(t, cfg), marker: "CCCC"}
	a := newTestApp(t, cfg, nil, st)

	report, err := a.Ingest(ctx, IngestOptions{})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Chunks)
	assert.Equal(t, 3, report.Written)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 2, report.Failures[0].ChunkIndex)
	assert.ErrorIs(t, report.Err(), store.ErrWriteFailure)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Contains(t, a.metadata.Files, "doc.txt")
	assert.Equal(t, 1, a.metadata.Files["doc.txt"].Failed)
	assert.Empty(t, a.metadata.Files["doc.txt"].Fingerprint)
}

func TestIngest_PartlyFailedDocumentIsPrunedWhenDeleted(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	path := writeDoc(t, cfg, "doc.txt", "AAAABBBBXXXX")
	st := openStore(t, cfg)
	a := newTestApp(t, cfg, failingEmbedder(cfg.EmbedDimensions, "XX"), st)

	report, err := a.Ingest(ctx, IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Written)
	require.Len(t, report.Failures, 1)

	require.NoError(t, os.Remove(path))
	report, err = a.Ingest(ctx, IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)
	assert.Empty(t, report.Failures)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NotContains(t, a.metadata.Files, "doc.txt")

	results, err := a.Query(ctx, "AAAAB", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIngest_UnreadableFileIsReported(t *testing.T) {
	cfg := testConfig(t)
	writeDoc(t, cfg, "good.txt", "AAAA")
	writeDoc(t, cfg, "broken.pdf", "this is not a pdf")
	a := newTestApp(t, cfg, nil, nil)

	report, err := a.Ingest(context.Background(), IngestOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, 1, report.Written)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "broken.pdf", report.Failures[0].Source)
	assert.Equal(t, -1, report.Failures[0].ChunkIndex)

	var loadErr *document.LoadError
	assert.True(t, errors.As(report.Failures[0], &loadErr))
}

func TestIngest_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	writeDoc(t, cfg, "a.txt", "AAAABBBB")
	a := newTestApp(t, cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Ingest(ctx, IngestOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngest_RecordMetadata(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.ChunkSize = 40
	cfg.ChunkOverlap = 10
	writeDoc(t, cfg, "guide.md", "# Guide\n\nIntro.\n\n## Install\n\nRun the installer.\n\n## Configure\n\nSet variables.\n\n## Use\n\nStart it.\n")
	st := openStore(t, cfg)
	a := newTestApp(t, cfg, nil, st)

	_, err := a.Ingest(ctx, IngestOptions{})
	require.NoError(t, err)

	results, err := a.Query(ctx, "Install\n\nRun the installer.", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "guide.md", results[0].Source)
	assert.Equal(t, "Install", results[0].Section)
	assert.Equal(t, 1, results[0].ChunkIndex)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-5)
}

func TestIngestReport_Err(t *testing.T) {
	report := &IngestReport{}
	assert.NoError(t, report.Err())

	report.Failures = []Failure{
		{Source: "a.txt", ChunkIndex: -1, Err: errors.New("gone")},
		{Source: "b.txt", ChunkIndex: 3, Err: store.ErrWriteFailure},
	}
	err := report.Err()
	assert.ErrorIs(t, err, store.ErrWriteFailure)
	assert.Contains(t, err.Error(), "a.txt: gone")
	assert.Contains(t, err.Error(), "b.txt chunk 3")
}
