package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// Archiver uploads one run's artifacts to object storage so results survive
// the local results directory. Uploads happen once, after the run completes;
// no partial artifacts are ever written.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver on top of a blob writer.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveRun uploads the run record, the trade ledger as JSONL, and the
// pre-rendered summary JSON under runs/{id}/.
func (a *Archiver) ArchiveRun(ctx context.Context, run domain.RunRecord, trades []domain.Trade, summary []byte) error {
	meta, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("s3blob: marshal run %s: %w", run.ID, err)
	}
	if err := a.writer.Put(ctx, runPath(run.ID, "run.json"), bytes.NewReader(meta), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive run %s: %w", run.ID, err)
	}

	ledger, err := marshalJSONL(trades)
	if err != nil {
		return fmt.Errorf("s3blob: marshal ledger %s: %w", run.ID, err)
	}
	if err := a.writer.Put(ctx, runPath(run.ID, "trades.jsonl"), bytes.NewReader(ledger), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive ledger %s: %w", run.ID, err)
	}

	if len(summary) > 0 {
		if err := a.writer.Put(ctx, runPath(run.ID, "summary.json"), bytes.NewReader(summary), "application/json"); err != nil {
			return fmt.Errorf("s3blob: archive summary %s: %w", run.ID, err)
		}
	}
	return nil
}

// runPath builds the object key for one run artifact.
//
//	runs/4f1c.../trades.jsonl
func runPath(runID, name string) string {
	return fmt.Sprintf("runs/%s/%s", runID, name)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
