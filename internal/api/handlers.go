package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/infrastructure/spreadsheet"
	"cargoledger/internal/usecase/ingest"
)

const uploadFormField = "file"

func (h *Handler) createUpload(w http.ResponseWriter, r *http.Request) {
	kind, err := manifest.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		badRequest(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload exceeds size limit"})
			return
		}
		badRequest(w, fmt.Errorf("parse multipart form: %w", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		badRequest(w, fmt.Errorf("form field %q is required", uploadFormField))
		return
	}
	defer func() { _ = file.Close() }()

	if !spreadsheet.IsSupported(header.Filename) {
		badRequest(w, fmt.Errorf("%w: %s", manifest.ErrUnsupportedFormat, header.Filename))
		return
	}
	payload, err := io.ReadAll(file)
	if err != nil {
		badRequest(w, fmt.Errorf("read upload: %w", err))
		return
	}

	var uploadDate time.Time
	if raw := strings.TrimSpace(r.FormValue("upload_date")); raw != "" {
		uploadDate, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, fmt.Errorf("upload_date must be RFC3339: %w", err))
			return
		}
	}

	result, err := h.svc.IngestFile(r.Context(), ingest.IngestFileInput{
		Kind:       kind,
		Filename:   header.Filename,
		Payload:    payload,
		UploadDate: uploadDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ingestView{
		Upload:       toUploadView(result.Upload),
		ItemsAdded:   result.ItemsAdded,
		ItemsUpdated: result.ItemsUpdated,
		SkippedRows:  result.SkippedRows,
		Comparison:   result.Comparison,
	})
}

func (h *Handler) listUploads(w http.ResponseWriter, r *http.Request) {
	kind, err := manifest.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		badRequest(w, err)
		return
	}
	items, err := h.svc.ListUploads(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]uploadSummaryView, 0, len(items))
	for _, item := range items {
		out = append(out, uploadSummaryView{uploadView: toUploadView(item.Upload), Comparison: item.Summary})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getUpload(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	upload, err := h.svc.GetUpload(r.Context(), uploadID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.svc.Summary(r.Context(), uploadID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadSummaryView{uploadView: toUploadView(upload), Comparison: summary})
}

func (h *Handler) reportRows(w http.ResponseWriter, r *http.Request) {
	filter, err := ingest.ParseRowFilter(r.URL.Query().Get("filter"))
	if err != nil {
		badRequest(w, err)
		return
	}
	rows, err := h.svc.ReportRows(r.Context(), chi.URLParam(r, "uploadID"), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]reportRowView, 0, len(rows))
	for _, row := range rows {
		out = append(out, reportRowView{Position: row.Position, Identifier: row.Identifier, Fields: row.Fields})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) comparison(w http.ResponseWriter, r *http.Request) {
	comparison, err := h.svc.Compare(r.Context(), chi.URLParam(r, "uploadID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	view := comparisonView{
		Upload:        toUploadView(comparison.Upload),
		NewItems:      nonNil(comparison.NewItems),
		RemovedItems:  nonNil(comparison.RemovedItems),
		NewlyReleased: nonNil(comparison.NewlyReleased),
		Summary:       comparison.Summary,
	}
	if comparison.Previous != nil {
		prev := toUploadView(*comparison.Previous)
		view.PreviousUpload = &prev
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) deleteUpload(w http.ResponseWriter, r *http.Request) {
	policy, err := ingest.ParseOrphanPolicy(r.URL.Query().Get("orphans"))
	if err != nil {
		badRequest(w, err)
		return
	}
	result, err := h.svc.DeleteUpload(r.Context(), ingest.DeleteUploadInput{
		UploadID: chi.URLParam(r, "uploadID"),
		Policy:   policy,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteView{
		Upload:             toUploadView(result.Upload),
		OrphanPolicy:       string(result.Policy),
		RowsDeleted:        result.RowsDeleted,
		EntriesDeleted:     result.EntriesDeleted,
		EntriesDetached:    result.EntriesDetached,
		LastUpdatedCleared: result.LastUpdatedCleared,
	})
}

func (h *Handler) masterList(w http.ResponseWriter, r *http.Request) {
	input, err := masterListInput(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	entries, err := h.svc.MasterList(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]masterEntryView, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toMasterEntryView(entry))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) masterExport(w http.ResponseWriter, r *http.Request) {
	input, err := masterListInput(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	input.Limit, input.Offset = 0, 0

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "csv" {
		badRequest(w, fmt.Errorf("%w: %q", manifest.ErrUnsupportedFormat, format))
		return
	}

	sheet, err := h.svc.MasterSheet(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := spreadsheet.Sheet{Name: sheet.Name, Header: sheet.Header, Rows: sheet.Rows}

	filename := fmt.Sprintf("%s-master.%s", input.Kind, format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		err = spreadsheet.WriteCSV(w, out)
	} else {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = spreadsheet.WriteXLSX(w, out)
	}
	if err != nil {
		writeError(w, r, err)
	}
}

func masterListInput(r *http.Request) (ingest.MasterListInput, error) {
	kind, err := manifest.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return ingest.MasterListInput{}, err
	}
	query := r.URL.Query()
	release, err := ingest.ParseRowFilter(query.Get("filter"))
	if err != nil {
		return ingest.MasterListInput{}, err
	}
	limit, err := queryInt(query.Get("limit"))
	if err != nil {
		return ingest.MasterListInput{}, fmt.Errorf("limit: %w", err)
	}
	offset, err := queryInt(query.Get("offset"))
	if err != nil {
		return ingest.MasterListInput{}, fmt.Errorf("offset: %w", err)
	}
	return ingest.MasterListInput{
		Kind:    kind,
		Release: release,
		Search:  query.Get("q"),
		Limit:   limit,
		Offset:  offset,
	}, nil
}

func queryInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	return n, nil
}
