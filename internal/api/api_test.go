package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/ports"
	"cargoledger/internal/usecase/ingest"
)

type stubService struct {
	ingestInput ingest.IngestFileInput
	ingestErr   error
	deleteInput ingest.DeleteUploadInput
	masterInput ingest.MasterListInput
	upload      manifest.Upload
}

func (s *stubService) IngestFile(_ context.Context, input ingest.IngestFileInput) (ingest.IngestResult, error) {
	s.ingestInput = input
	if s.ingestErr != nil {
		return ingest.IngestResult{}, s.ingestErr
	}
	return ingest.IngestResult{Upload: s.upload, ItemsAdded: 2, Comparison: ingest.ComparisonSummary{UploadID: s.upload.ID, NewItems: 2}}, nil
}

func (s *stubService) ListUploads(_ context.Context, kind manifest.Kind) ([]ingest.UploadSummary, error) {
	return []ingest.UploadSummary{{Upload: s.upload, Summary: ingest.ComparisonSummary{UploadID: s.upload.ID}}}, nil
}

func (s *stubService) GetUpload(_ context.Context, uploadID string) (manifest.Upload, error) {
	if uploadID != s.upload.ID {
		return manifest.Upload{}, ports.ErrUploadNotFound
	}
	return s.upload, nil
}

func (s *stubService) Summary(_ context.Context, uploadID string) (ingest.ComparisonSummary, error) {
	return ingest.ComparisonSummary{UploadID: uploadID}, nil
}

func (s *stubService) ReportRows(_ context.Context, uploadID string, filter ports.RowFilter) ([]ports.ReportRow, error) {
	if filter != ports.RowFilterWithRelease {
		return nil, errors.New("unexpected filter")
	}
	return []ports.ReportRow{{UploadID: uploadID, Position: 0, Identifier: "A", Fields: manifest.Row{"HB": "A", "FRL": "01/01/2026"}}}, nil
}

func (s *stubService) Compare(_ context.Context, uploadID string) (ingest.Comparison, error) {
	return ingest.Comparison{
		Upload:   s.upload,
		NewItems: []manifest.Row{{"HB": "B"}},
		Summary:  ingest.ComparisonSummary{UploadID: uploadID, NewItems: 1},
	}, nil
}

func (s *stubService) DeleteUpload(_ context.Context, input ingest.DeleteUploadInput) (ingest.DeleteUploadResult, error) {
	s.deleteInput = input
	result := ingest.DeleteUploadResult{Upload: s.upload, Policy: input.Policy}
	result.RowsDeleted = 3
	return result, nil
}

func (s *stubService) MasterList(_ context.Context, input ingest.MasterListInput) ([]manifest.MasterEntry, error) {
	s.masterInput = input
	return []manifest.MasterEntry{{Identifier: "A", Fields: manifest.Row{"HB": "A"}}}, nil
}

func (s *stubService) MasterSheet(_ context.Context, input ingest.MasterListInput) (ingest.Sheet, error) {
	s.masterInput = input
	return ingest.Sheet{Name: "ocean master", Header: []string{"HB"}, Rows: [][]string{{"A"}}}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *stubService) {
	t.Helper()

	svc := &stubService{upload: manifest.Upload{
		ID:         "u1",
		Kind:       manifest.KindOcean,
		Filename:   "day0.csv",
		RowCount:   2,
		UploadDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}}
	srv := httptest.NewServer(NewHandler(svc, 1).Routes(context.Background()))
	t.Cleanup(srv.Close)
	return srv, svc
}

func multipartBody(t *testing.T, filename string, content string, uploadDate string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(uploadFormField, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if uploadDate != "" {
		if err := mw.WriteField("upload_date", uploadDate); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestCreateUpload(t *testing.T) {
	srv, svc := newTestServer(t)

	body, contentType := multipartBody(t, "day0.csv", "HB\nA\nB\n", "2026-05-01T08:00:00Z")
	resp, err := http.Post(srv.URL+"/api/Ocean/uploads", contentType, body)
	if err != nil {
		t.Fatalf("POST upload: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	got := decode[ingestView](t, resp)
	if got.Upload.ID != "u1" || got.ItemsAdded != 2 || got.Comparison.NewItems != 2 {
		t.Fatalf("response = %+v", got)
	}
	if svc.ingestInput.Kind != manifest.KindOcean || string(svc.ingestInput.Payload) != "HB\nA\nB\n" {
		t.Fatalf("ingest input = %+v", svc.ingestInput)
	}
	if !svc.ingestInput.UploadDate.Equal(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("upload date = %v", svc.ingestInput.UploadDate)
	}
}

func TestCreateUploadErrors(t *testing.T) {
	srv, svc := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		filename   string
		uploadDate string
		ingestErr  error
		wantStatus int
	}{
		{name: "unknown kind", path: "/api/rail/uploads", filename: "a.csv", wantStatus: http.StatusBadRequest},
		{name: "unsupported file", path: "/api/ocean/uploads", filename: "a.pdf", wantStatus: http.StatusBadRequest},
		{name: "bad upload date", path: "/api/ocean/uploads", filename: "a.csv", uploadDate: "yesterday", wantStatus: http.StatusBadRequest},
		{name: "missing identifier", path: "/api/ocean/uploads", filename: "a.csv", ingestErr: manifest.ErrMissingIdentifierColumn, wantStatus: http.StatusBadRequest},
		{
			name:       "partial write",
			path:       "/api/ocean/uploads",
			filename:   "a.csv",
			ingestErr:  &ingest.PartialWriteError{UploadID: "u1", AddedApplied: 1, AddedAttempted: 2, Err: errors.New("disk I/O error")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.ingestErr = tt.ingestErr
			body, contentType := multipartBody(t, tt.filename, "HB\nA\n", tt.uploadDate)
			resp, err := http.Post(srv.URL+tt.path, contentType, body)
			if err != nil {
				t.Fatalf("POST upload: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			got := decode[errorResponse](t, resp)
			if got.Error == "" {
				t.Fatalf("expected error message")
			}
			if tt.name == "partial write" && (got.Partial == nil || got.Partial.AddedApplied != 1) {
				t.Fatalf("partial = %+v", got.Partial)
			}
		})
	}
}

func TestUploadReadRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/ocean/uploads")
	if err != nil {
		t.Fatalf("GET uploads: %v", err)
	}
	list := decode[[]uploadSummaryView](t, resp)
	if len(list) != 1 || list[0].ID != "u1" {
		t.Fatalf("list = %+v", list)
	}

	resp, err = http.Get(srv.URL + "/api/uploads/missing")
	if err != nil {
		t.Fatalf("GET upload: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/uploads/u1/rows?filter=with_frl")
	if err != nil {
		t.Fatalf("GET rows: %v", err)
	}
	rows := decode[[]reportRowView](t, resp)
	want := []reportRowView{{Position: 0, Identifier: "A", Fields: manifest.Row{"HB": "A", "FRL": "01/01/2026"}}}
	if d := cmp.Diff(want, rows); d != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", d)
	}

	resp, err = http.Get(srv.URL + "/api/uploads/u1/rows?filter=released")
	if err != nil {
		t.Fatalf("GET rows: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/uploads/u1/comparison")
	if err != nil {
		t.Fatalf("GET comparison: %v", err)
	}
	comparison := decode[comparisonView](t, resp)
	if len(comparison.NewItems) != 1 || comparison.RemovedItems == nil || comparison.PreviousUpload != nil {
		t.Fatalf("comparison = %+v", comparison)
	}
}

func TestDeleteUploadPassesPolicy(t *testing.T) {
	srv, svc := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/uploads/u1?orphans=delete", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE upload: %v", err)
	}
	got := decode[deleteView](t, resp)
	if got.OrphanPolicy != "delete" || got.RowsDeleted != 3 || svc.deleteInput.UploadID != "u1" {
		t.Fatalf("delete = %+v input = %+v", got, svc.deleteInput)
	}
}

func TestMasterRoutes(t *testing.T) {
	srv, svc := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/ocean/master?filter=without_frl&q=A&limit=10&offset=5")
	if err != nil {
		t.Fatalf("GET master: %v", err)
	}
	entries := decode[[]masterEntryView](t, resp)
	if len(entries) != 1 || entries[0].Identifier != "A" {
		t.Fatalf("entries = %+v", entries)
	}
	wantInput := ingest.MasterListInput{Kind: manifest.KindOcean, Release: ports.RowFilterWithoutRelease, Search: "A", Limit: 10, Offset: 5}
	if d := cmp.Diff(wantInput, svc.masterInput); d != "" {
		t.Fatalf("master input mismatch (-want +got):\n%s", d)
	}

	resp, err = http.Get(srv.URL + "/api/ocean/master/export?format=csv")
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read export: %v", err)
	}
	if resp.Header.Get("Content-Type") != "text/csv" || buf.String() != "HB\nA\n" {
		t.Fatalf("export = %q (%s)", buf.String(), resp.Header.Get("Content-Type"))
	}

	resp, err = http.Get(srv.URL + "/api/ocean/master?limit=-1")
	if err != nil {
		t.Fatalf("GET master: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAllowOriginsSetsCORSHeaders(t *testing.T) {
	handler := NewHandler(&stubService{}, 1).AllowOrigins(" https://ops.example ", "")
	srv := httptest.NewServer(handler.Routes(context.Background()))
	t.Cleanup(srv.Close)

	for origin, want := range map[string]string{
		"https://ops.example":  "https://ops.example",
		"https://evil.example": "",
	} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET /healthz: %v", err)
		}
		_ = resp.Body.Close()
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != want {
			t.Fatalf("Access-Control-Allow-Origin for %q = %q, want %q", origin, got, want)
		}
	}
}
