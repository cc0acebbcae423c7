package ingestion

import (
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/poiesic/sibyl/core"
)

// BatchStatus is the state of a batch.
type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchPartial    BatchStatus = "partial"
	BatchFailed     BatchStatus = "failed"
)

// DefaultBatchRetention is how long finished batches stay queryable.
const DefaultBatchRetention = 24 * time.Hour

// BatchError is the error report of one failed file.
type BatchError struct {
	Filename      string `json:"filename"`
	ErrorType     string `json:"error_type"`
	ErrorCode     string `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
	RetryPossible bool   `json:"retry_possible"`
}

// Batch is the progress or result of one ingestion request.
type Batch struct {
	BatchID         string                  `json:"batch_id"`
	Status          BatchStatus             `json:"status"`
	TotalFiles      int                     `json:"total_files"`
	ProcessedFiles  int                     `json:"processed_files"`
	SuccessfulFiles int                     `json:"successful_files"`
	FailedFiles     int                     `json:"failed_files"`
	SkippedFiles    int                     `json:"skipped_files"`
	Errors          []BatchError            `json:"errors"`
	Outcomes        []core.IngestionOutcome `json:"outcomes"`
	StartedAt       time.Time               `json:"started_at"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
	// ProcessingTime is in seconds.
	ProcessingTime float64 `json:"processing_time"`
}

func (b *Batch) clone() *Batch {
	c := *b
	c.Errors = slices.Clone(b.Errors)
	c.Outcomes = slices.Clone(b.Outcomes)
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// record folds one file outcome into the counters.
func (b *Batch) record(outcome core.IngestionOutcome) {
	b.ProcessedFiles++
	b.Outcomes = append(b.Outcomes, outcome)
	switch outcome.Status {
	case core.OutcomeCompleted:
		b.SuccessfulFiles++
	case core.OutcomeSkipped:
		b.SkippedFiles++
	case core.OutcomeFailed:
		b.FailedFiles++
		b.Errors = append(b.Errors, batchError(outcome))
	}
}

func batchError(outcome core.IngestionOutcome) BatchError {
	return BatchError{
		Filename:      outcome.Filename,
		ErrorType:     outcome.ErrorType,
		ErrorCode:     outcome.ErrorCode,
		ErrorMessage:  outcome.Error,
		RetryPossible: outcome.RetryPossible,
	}
}

// finish sets the terminal status and replaces the outcomes, which record
// appends in completion order, with ordered. Skipped files count as handled.
func (b *Batch) finish(now time.Time, ordered []core.IngestionOutcome) {
	b.Outcomes = ordered
	b.Errors = []BatchError{}
	for _, o := range ordered {
		if o.Status == core.OutcomeFailed {
			b.Errors = append(b.Errors, batchError(o))
		}
	}
	switch {
	case b.FailedFiles == 0:
		b.Status = BatchCompleted
	case b.FailedFiles == b.TotalFiles:
		b.Status = BatchFailed
	default:
		b.Status = BatchPartial
	}
	b.CompletedAt = &now
	b.ProcessingTime = now.Sub(b.StartedAt).Seconds()
}

// tracker holds batch progress in a TTL cache.
type tracker struct {
	mu      sync.Mutex
	batches *cache.Cache
}

func newTracker(retention time.Duration) *tracker {
	if retention <= 0 {
		retention = DefaultBatchRetention
	}
	return &tracker{batches: cache.New(retention, retention/4)}
}

// start claims id for a new batch. It fails when the id is already tracked.
func (t *tracker) start(id string, total int, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.batches.Add(id, &Batch{
		BatchID:    id,
		Status:     BatchProcessing,
		TotalFiles: total,
		Errors:     []BatchError{},
		StartedAt:  now,
	}, cache.DefaultExpiration)
}

func (t *tracker) update(id string, fn func(*Batch)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.batches.Get(id)
	if !ok {
		return
	}
	b := v.(*Batch)
	fn(b)
	t.batches.SetDefault(id, b)
}

func (t *tracker) exists(id string) bool {
	_, ok := t.batches.Get(id)
	return ok
}

func (t *tracker) get(id string) (*Batch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.batches.Get(id)
	if !ok {
		return nil, ErrBatchNotFound
	}
	return v.(*Batch).clone(), nil
}
