package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
	"cargoledger/internal/ports"
)

// ParseRowFilter accepts all, with_frl and without_frl. Empty means all.
func ParseRowFilter(raw string) (ports.RowFilter, error) {
	switch filter := ports.RowFilter(strings.ToLower(strings.TrimSpace(raw))); filter {
	case "":
		return ports.RowFilterAll, nil
	case ports.RowFilterAll, ports.RowFilterWithRelease, ports.RowFilterWithoutRelease:
		return filter, nil
	default:
		return "", fmt.Errorf("%w: %q", manifest.ErrInvalidRowFilter, raw)
	}
}

// ListUploads returns the upload history of kind, newest first, with cached
// comparison counts.
func (s *Service) ListUploads(ctx context.Context, kind manifest.Kind) ([]UploadSummary, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, errRepositoryRequired
	}
	if _, err := s.shapes.For(kind); err != nil {
		return nil, err
	}

	uploads, err := s.repo.ListUploads(ctx, kind)
	if err != nil {
		return nil, errs.Wrap(err, "list uploads")
	}

	items := make([]UploadSummary, 0, len(uploads))
	for _, upload := range uploads {
		summary, err := s.summary(ctx, upload)
		if err != nil {
			logging.Warn(ctx, "comparison unavailable", slog.String("upload_id", upload.ID), slog.Any("err", errs.Loggable(err)))
		}
		items = append(items, UploadSummary{Upload: upload, Summary: summary})
	}
	return items, nil
}

func (s *Service) GetUpload(ctx context.Context, uploadID string) (manifest.Upload, error) {
	if err := checkContext(ctx); err != nil {
		return manifest.Upload{}, err
	}
	if s.repo == nil {
		return manifest.Upload{}, errRepositoryRequired
	}
	uploadID = strings.TrimSpace(uploadID)
	if uploadID == "" {
		return manifest.Upload{}, errUploadIDRequired
	}
	return s.repo.GetUpload(ctx, uploadID)
}

// ReportRows returns the stored rows of an upload in file order.
func (s *Service) ReportRows(ctx context.Context, uploadID string, filter ports.RowFilter) ([]ports.ReportRow, error) {
	if _, err := s.GetUpload(ctx, uploadID); err != nil {
		return nil, err
	}
	rows, err := s.repo.GetReportRows(ctx, strings.TrimSpace(uploadID), filter)
	if err != nil {
		return nil, errs.Wrap(err, "get report rows")
	}
	return rows, nil
}

func (s *Service) MasterList(ctx context.Context, input MasterListInput) ([]manifest.MasterEntry, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, errRepositoryRequired
	}
	if _, err := s.shapes.For(input.Kind); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListMasterEntries(ctx, input.Kind, ports.MasterFilter{
		Release: input.Release,
		Search:  input.Search,
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	if err != nil {
		return nil, errs.Wrap(err, "list master entries")
	}
	return entries, nil
}
