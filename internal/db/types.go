package db

import (
	"time"

	"github.com/google/uuid"
)

// Report represents an analysis report record
type Report struct {
	ID          uuid.UUID  `json:"id"`
	Entity      string     `json:"entity"`
	Markets     []string   `json:"markets"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Report status values
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
