package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
	"cargoledger/internal/ports"
	"cargoledger/internal/usecase/ingest"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Partial *partialWriteView `json:"partial,omitempty"`
}

type partialWriteView struct {
	UploadID         string `json:"upload_id"`
	AddedApplied     int    `json:"added_applied"`
	AddedAttempted   int    `json:"added_attempted"`
	UpdatedApplied   int    `json:"updated_applied"`
	UpdatedAttempted int    `json:"updated_attempted"`
}

type uploadView struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Filename   string    `json:"filename"`
	RowCount   int       `json:"row_count"`
	UploadDate time.Time `json:"upload_date"`
}

type uploadSummaryView struct {
	uploadView
	Comparison ingest.ComparisonSummary `json:"comparison"`
}

type ingestView struct {
	Upload       uploadView               `json:"upload"`
	ItemsAdded   int                      `json:"items_added"`
	ItemsUpdated int                      `json:"items_updated"`
	SkippedRows  int                      `json:"skipped_rows"`
	Comparison   ingest.ComparisonSummary `json:"comparison"`
}

type comparisonView struct {
	Upload         uploadView               `json:"upload"`
	PreviousUpload *uploadView              `json:"previous_upload,omitempty"`
	NewItems       []manifest.Row           `json:"new_items"`
	RemovedItems   []manifest.Row           `json:"removed_items"`
	NewlyReleased  []manifest.Row           `json:"newly_released"`
	Summary        ingest.ComparisonSummary `json:"summary"`
}

type reportRowView struct {
	Position   int          `json:"position"`
	Identifier string       `json:"identifier"`
	Fields     manifest.Row `json:"fields"`
}

type masterEntryView struct {
	Identifier          string       `json:"identifier"`
	Fields              manifest.Row `json:"fields"`
	FirstSeenUploadID   *string      `json:"first_seen_upload_id"`
	LastUpdatedUploadID *string      `json:"last_updated_upload_id"`
	LastUpdateReason    string       `json:"last_update_reason,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

type deleteView struct {
	Upload             uploadView `json:"upload"`
	OrphanPolicy       string     `json:"orphan_policy"`
	RowsDeleted        int64      `json:"rows_deleted"`
	EntriesDeleted     int64      `json:"entries_deleted"`
	EntriesDetached    int64      `json:"entries_detached"`
	LastUpdatedCleared int64      `json:"last_updated_cleared"`
}

func toUploadView(u manifest.Upload) uploadView {
	return uploadView{
		ID:         u.ID,
		Kind:       string(u.Kind),
		Filename:   u.Filename,
		RowCount:   u.RowCount,
		UploadDate: u.UploadDate,
	}
}

func toMasterEntryView(e manifest.MasterEntry) masterEntryView {
	return masterEntryView{
		Identifier:          e.Identifier,
		Fields:              e.Fields,
		FirstSeenUploadID:   e.FirstSeenUploadID,
		LastUpdatedUploadID: e.LastUpdatedUploadID,
		LastUpdateReason:    e.LastUpdateReason,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

// nonNil keeps empty lists rendered as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrUploadNotFound):
		return http.StatusNotFound
	case errors.Is(err, manifest.ErrKindRequired),
		errors.Is(err, manifest.ErrUnknownKind),
		errors.Is(err, manifest.ErrMissingIdentifierColumn),
		errors.Is(err, manifest.ErrUnsupportedFormat),
		errors.Is(err, manifest.ErrEmptyManifest),
		errors.Is(err, manifest.ErrInvalidRowFilter),
		errors.Is(err, manifest.ErrInvalidOrphanPolicy):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}

	var partial *ingest.PartialWriteError
	if errors.As(err, &partial) {
		body.Partial = &partialWriteView{
			UploadID:         partial.UploadID,
			AddedApplied:     partial.AddedApplied,
			AddedAttempted:   partial.AddedAttempted,
			UpdatedApplied:   partial.UpdatedApplied,
			UpdatedAttempted: partial.UpdatedAttempted,
		}
	}

	if status >= http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}
