package entity

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

// RunStatus is the pipeline run lifecycle enum.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunSummary reports per-stage counts for one pipeline run. Operators
// see counts, not a single pass/fail signal.
type RunSummary struct {
	SourcesFetched    int `json:"sources_fetched"`
	SourcesFailed     int `json:"sources_failed"`
	DocumentsFetched  int `json:"documents_fetched"`
	DocumentsDropped  int `json:"documents_dropped"`
	DocumentsRejected int `json:"documents_rejected"`
	Duplicates        int `json:"duplicates"`
	ArticlesCreated   int `json:"articles_created"`
	Analyzed          int `json:"analyzed"`
	AnalysisRetries   int `json:"analysis_retries"`
	AnalysisFailures  int `json:"analysis_failures"`
	ArticlesLinked    int `json:"articles_linked"`
	TrendsUpdated     int `json:"trends_updated"`
	InsightsCreated   int `json:"insights_created"`
}

// PipelineRun is the persisted record of one run of a pipeline stage.
// Keyed by (stage, run_key) so the orchestrator is restartable after a
// crash mid-run.
type PipelineRun struct {
	ID           uint                           `gorm:"primaryKey" json:"id"`
	Stage        string                         `gorm:"uniqueIndex:idx_stage_run_key;not null" json:"stage"`
	RunKey       string                         `gorm:"uniqueIndex:idx_stage_run_key;not null" json:"run_key"`
	Status       RunStatus                      `gorm:"type:varchar(20);index" json:"status"`
	Summary      datatypes.JSONType[RunSummary] `json:"summary"`
	ErrorMessage sql.NullString                 `json:"error_message,omitempty"`
	StartedAt    time.Time                      `gorm:"not null" json:"started_at"`
	CompletedAt  sql.NullTime                   `json:"completed_at,omitempty"`
}

func (PipelineRun) TableName() string {
	return "pipeline_runs"
}
