package models

import "time"

// ChatMessage is one prior turn of the conversation about a page.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type FailureKind string

const (
	FailureBusy       FailureKind = "busy"
	FailureNotFound   FailureKind = "not_found"
	FailureLocked     FailureKind = "locked"
	FailureMigration  FailureKind = "migration"
	FailureProvider   FailureKind = "provider"
	FailureValidation FailureKind = "validation"
	FailureStorage    FailureKind = "storage"
	FailureCanceled   FailureKind = "canceled"
)

// Diagnostic explains a failed transform to the presentation layer.
type Diagnostic struct {
	Kind   FailureKind `json:"kind"`
	Detail string      `json:"detail,omitempty"`
	Reason string      `json:"reason"`
}

// TransformResult is either applied, carrying the next state, or failed,
// carrying the untouched state plus a diagnostic.
type TransformResult struct {
	TransformID string       `json:"transformId"`
	Applied     bool         `json:"applied"`
	Markup      string       `json:"markup"`
	Metadata    PageMetadata `json:"metadata"`
	Operations  int          `json:"operations"`
	Diagnostic  *Diagnostic  `json:"diagnostic,omitempty"`
}

type TransformStatus string

const (
	TransformApplied TransformStatus = "applied"
	TransformFailed  TransformStatus = "failed"
)

// TransformRecord is the audit trail of one transform attempt.
type TransformRecord struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	PageName    string          `gorm:"size:255;not null;index" json:"pageName"`
	ModelID     string          `gorm:"size:255" json:"modelId"`
	Message     string          `gorm:"type:text" json:"message"`
	Status      TransformStatus `gorm:"size:20;not null" json:"status"`
	FailureKind FailureKind     `gorm:"size:40" json:"failureKind,omitempty"`
	Reason      string          `gorm:"type:text" json:"reason,omitempty"`
	Operations  int             `json:"operations"`
	StartedAt   time.Time       `gorm:"not null" json:"startedAt"`
	FinishedAt  time.Time       `gorm:"not null" json:"finishedAt"`
}
