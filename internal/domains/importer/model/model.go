package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	TypeKeywordImport = "keyword_import"

	// MaxSampleProducts caps the preview list embedded in a job result.
	MaxSampleProducts = 5
)

// Params describes what a keyword import should fetch.
type Params struct {
	Keyword   string `json:"keyword"`
	Count     int    `json:"count"`
	BatchSize int    `json:"batch_size,omitempty"`
	Country   string `json:"country,omitempty"`
}

// SampleProduct is a preview entry in a completed job's result.
type SampleProduct struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Result summarizes a completed import.
type Result struct {
	TotalFound     int             `json:"total_found"`
	Imported       int             `json:"imported"`
	Failed         int             `json:"failed"`
	SampleProducts []SampleProduct `json:"sample_products"`
}

// ImportJob is one row of the import_jobs table.
type ImportJob struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	Supplier    string     `json:"supplier"`
	Params      Params     `json:"params"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Status      string     `json:"status"`
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Imported    int        `json:"imported"`
	Failed      int        `json:"failed"`
	Percent     float64    `json:"percent"`
	Result      *Result    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the job can never change again.
func (j *ImportJob) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Snapshot is the progress view streamed to clients.
type Snapshot struct {
	JobID     uuid.UUID `json:"job_id"`
	State     string    `json:"state"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Imported  int       `json:"imported"`
	Failed    int       `json:"failed"`
	Percent   float64   `json:"percent"`
	Error     string    `json:"error,omitempty"`
	Result    *Result   `json:"result,omitempty"`
}

// Snapshot projects the job into its streamed form.
func (j *ImportJob) Snapshot() Snapshot {
	return Snapshot{
		JobID:     j.ID,
		State:     j.Status,
		Total:     j.Total,
		Processed: j.Processed,
		Imported:  j.Imported,
		Failed:    j.Failed,
		Percent:   j.Percent,
		Error:     j.Error,
		Result:    j.Result,
	}
}

// Terminal reports whether the snapshot is a final event.
func (s Snapshot) Terminal() bool {
	return s.State == StatusCompleted || s.State == StatusFailed
}

// BulkImportTask is one row of the bulk_import_tasks table: a file of
// keyword/count pairs to import once scheduled_at passes.
type BulkImportTask struct {
	ID          uuid.UUID  `json:"id"`
	Source      string     `json:"source"`
	FileKey     string     `json:"file_key"`
	Status      string     `json:"status"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
