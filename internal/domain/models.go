package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ==================== ENUMS ====================

type Operation string

const (
	OperationRemoveBackground Operation = "remove_background"
	OperationUpscale          Operation = "upscale"
)

type RecordStatus string

const (
	RecordStatusPending   RecordStatus = "pending"
	RecordStatusRunning   RecordStatus = "running"
	RecordStatusCompleted RecordStatus = "completed"
	RecordStatusFailed    RecordStatus = "failed"
	// RecordStatusPurged marks a completed record whose result artifact was removed.
	RecordStatusPurged RecordStatus = "purged"
)

// Namespace partitions the artifact store.
type Namespace string

const (
	NamespaceUploads Namespace = "uploads"
	NamespaceResults Namespace = "results"
)

// ==================== JSONB TYPES ====================

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan JSONB: invalid type")
	}
	return json.Unmarshal(bytes, j)
}

// ==================== REQUESTS ====================

type EnhanceRequest struct {
	InputKey  string
	Operation Operation
	Scale     int
}

type DispatchResult struct {
	TaskID      string
	Description string
	ResultKey   string
}

// ==================== ENTITIES ====================

// Artifact describes an uploaded original. The bytes live in the artifact store.
type Artifact struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Key          string `gorm:"size:255;uniqueIndex;not null" json:"key"`
	OriginalName string `gorm:"size:255" json:"original_name"`
	ContentType  string `gorm:"size:50;not null" json:"content_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	SizeBytes    int64  `json:"size_bytes"`
}

// EnhancementRecord is the audit trail of one dispatched task.
type EnhancementRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TaskID    string       `gorm:"size:36;uniqueIndex;not null" json:"task_id"`
	Operation Operation    `gorm:"size:50;not null;index" json:"operation"`
	InputKey  string       `gorm:"size:255;not null" json:"input_key"`
	ResultKey string       `gorm:"size:255" json:"result_key"`
	Status    RecordStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Message   string       `gorm:"type:text" json:"message"`
	Params    JSONB        `gorm:"type:jsonb" json:"params"`
}
