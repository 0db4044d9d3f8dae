package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusDone    JobStatus = "DONE"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is one queued task invocation. Attempts counts reservations, so a job
// that is being executed has Attempts >= 1.
type Job struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	Task          string         `gorm:"type:varchar(128);not null;index" json:"task"`
	Payload       datatypes.JSON `gorm:"not null" json:"payload"`
	Status        JobStatus      `gorm:"type:varchar(16);not null;index:idx_premium_jobs_ready,priority:1" json:"status"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	AvailableAt   time.Time      `gorm:"not null;index:idx_premium_jobs_ready,priority:2" json:"available_at"`
	LeasedUntil   *time.Time     `json:"leased_until,omitempty"`
	LastError     string         `gorm:"type:text;not null;default:''" json:"last_error,omitempty"`
	CorrelationID string         `gorm:"type:varchar(64);not null;default:''" json:"correlation_id,omitempty"` // id of the request that queued the job
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (Job) TableName() string { return "premium_jobs" }
