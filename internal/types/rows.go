package types

import (
	"time"

	"gorm.io/datatypes"
)

// WorkflowStateRow is the durable whole-document copy of a ReportState.
// Upserts replace the entire document; there are no partial updates.
type WorkflowStateRow struct {
	ID        string         `gorm:"primaryKey" json:"id"`
	State     datatypes.JSON `gorm:"type:jsonb;column:state;not null" json:"state"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (WorkflowStateRow) TableName() string { return "workflow_state" }

// EmbeddedChunkRow is one vector-index row. Inserts are append-only; the
// similarity scan tolerates duplicate appends from redelivered messages.
type EmbeddedChunkRow struct {
	ID        string         `gorm:"primaryKey" json:"id"`
	ReportID  string         `gorm:"column:report_id;not null;index" json:"report_id"`
	SourceID  string         `gorm:"column:source_id;not null" json:"source_id"`
	Chunk     string         `gorm:"column:chunk;not null" json:"chunk"`
	Embedding datatypes.JSON `gorm:"type:jsonb;column:embedding;not null" json:"embedding"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (EmbeddedChunkRow) TableName() string { return "embedded_chunk" }

// PromptRow is a stored prompt template, selected by key.
type PromptRow struct {
	ID       string `gorm:"primaryKey" json:"id"`
	Template string `gorm:"column:template;not null" json:"template"`
}

func (PromptRow) TableName() string { return "prompt" }

// GenerationLogRow is the persisted twin of a GenerationResult, priced.
type GenerationLogRow struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	ReportID         string    `gorm:"column:report_id;not null;index" json:"report_id"`
	APITag           string    `gorm:"column:api_tag;not null" json:"api_tag"`
	PromptTokens     int       `gorm:"column:prompt_tokens;not null" json:"prompt_tokens"`
	GeneratedTokens  int       `gorm:"column:generated_tokens;not null" json:"generated_tokens"`
	CacheReadTokens  int       `gorm:"column:cache_read_tokens;not null" json:"cache_read_tokens"`
	CacheWriteTokens int       `gorm:"column:cache_write_tokens;not null" json:"cache_write_tokens"`
	DurationMicros   int64     `gorm:"column:duration_us;not null" json:"duration_us"`
	CostMicroCredits int64     `gorm:"column:cost_micro_credits;not null" json:"cost_micro_credits"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
}

func (GenerationLogRow) TableName() string { return "generation_log" }
