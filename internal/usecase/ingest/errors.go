package ingest

import "fmt"

// PartialWriteError reports a master list write that failed after the upload
// was recorded. Applied counts reflect what was written before the failure.
type PartialWriteError struct {
	UploadID         string
	AddedApplied     int
	AddedAttempted   int
	UpdatedApplied   int
	UpdatedAttempted int
	Err              error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf(
		"master list partially written for upload %s (added %d/%d, updated %d/%d): %v",
		e.UploadID, e.AddedApplied, e.AddedAttempted, e.UpdatedApplied, e.UpdatedAttempted, e.Err,
	)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
