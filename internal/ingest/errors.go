package ingest

import (
	"errors"
	"fmt"
)

// ErrNotFound marks an upstream 404: the key does not exist at the source.
// Not retried.
var ErrNotFound = errors.New("record not found at source")

// IngestionError means no usable payload (fresh or stale) exists for a key
// after exhausting retries. It fails the affected request, never the process.
type IngestionError struct {
	Source string
	Key    string
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed for %s/%s: %v", e.Source, e.Key, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }
