package ports

import (
	"context"
	"time"
)

// IngestedEvent is published after an upload has been reconciled.
type IngestedEvent struct {
	UploadID       string    `json:"upload_id"`
	Kind           string    `json:"kind"`
	Filename       string    `json:"filename"`
	RowCount       int       `json:"row_count"`
	UploadDate     time.Time `json:"upload_date"`
	ItemsAdded     int       `json:"items_added"`
	ItemsUpdated   int       `json:"items_updated"`
	NewItems       int       `json:"new_items"`
	RemovedItems   int       `json:"removed_items"`
	NewlyReleased  int       `json:"newly_released"`
	PreviousUpload string    `json:"previous_upload_id,omitempty"`
}

// Notifier delivers ingestion events to downstream consumers.
type Notifier interface {
	PublishIngested(ctx context.Context, event IngestedEvent) error
}
