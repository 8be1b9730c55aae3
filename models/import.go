package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

// Import statuses
const (
	ImportStatusPending    = "pending"
	ImportStatusProcessing = "processing"
	ImportStatusCompleted  = "completed"
	ImportStatusFailed     = "failed"
)

// MaxImportErrors caps the number of row-error messages kept on an import.
// Failures past the cap still count in FailedRows.
const MaxImportErrors = 50

// NewListData describes a list to create before importing into it
type NewListData struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	FromName    string `json:"from_name" validate:"required,max=100"`
	FromEmail   string `json:"from_email" validate:"required,email"`
}

// Import is a tracked background task that bulk-creates subscribers from a CSV
type Import struct {
	gorm.Model
	// Either ListID points at an existing list or NewListData describes one to create
	ListID      *uint        `gorm:"index" json:"list_id"`
	NewListData *NewListData `gorm:"type:jsonb;serializer:json" json:"new_list_data,omitempty"`

	Filename         string `gorm:"not null" json:"filename"` // stored name under the upload dir
	OriginalFilename string `json:"original_filename"`

	Status string `gorm:"default:'pending';index" json:"status"` // pending, processing, completed, failed

	TotalRows      int `gorm:"default:0" json:"total_rows"`
	ProcessedRows  int `gorm:"default:0" json:"processed_rows"`
	SuccessfulRows int `gorm:"default:0" json:"successful_rows"`
	FailedRows     int `gorm:"default:0" json:"failed_rows"`

	Errors []string `gorm:"type:jsonb;serializer:json" json:"errors"`

	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// AppendError records a row-error message, silently dropping past the cap
func (i *Import) AppendError(msg string) {
	if len(i.Errors) < MaxImportErrors {
		i.Errors = append(i.Errors, msg)
	}
}

// ProgressPercentage returns round(processed/total*100), 0 when total is 0
func (i *Import) ProgressPercentage() int {
	if i.TotalRows == 0 {
		return 0
	}
	return int(math.Round(float64(i.ProcessedRows) / float64(i.TotalRows) * 100))
}
