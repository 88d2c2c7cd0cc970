package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
	"cargoledger/internal/ports"
)

// Compare diffs an upload against the latest strictly earlier upload of the
// same kind.
func (s *Service) Compare(ctx context.Context, uploadID string) (Comparison, error) {
	if err := checkContext(ctx); err != nil {
		return Comparison{}, err
	}
	if s.repo == nil {
		return Comparison{}, errRepositoryRequired
	}
	uploadID = strings.TrimSpace(uploadID)
	if uploadID == "" {
		return Comparison{}, errUploadIDRequired
	}

	upload, err := s.repo.GetUpload(ctx, uploadID)
	if err != nil {
		return Comparison{}, err
	}
	comparison, err := s.compare(ctx, upload)
	if err != nil {
		return Comparison{}, err
	}
	s.storeSummary(ctx, comparison.Summary)
	return comparison, nil
}

// Summary returns the cached comparison counts of an upload, computing them
// when missing.
func (s *Service) Summary(ctx context.Context, uploadID string) (ComparisonSummary, error) {
	if err := checkContext(ctx); err != nil {
		return ComparisonSummary{}, err
	}
	if s.repo == nil {
		return ComparisonSummary{}, errRepositoryRequired
	}

	upload, err := s.repo.GetUpload(ctx, strings.TrimSpace(uploadID))
	if err != nil {
		return ComparisonSummary{}, err
	}
	return s.summary(ctx, upload)
}

func (s *Service) summary(ctx context.Context, upload manifest.Upload) (ComparisonSummary, error) {
	if cached, ok := s.cachedSummary(ctx, upload.ID); ok {
		return cached, nil
	}
	comparison, err := s.compare(ctx, upload)
	if err != nil {
		return ComparisonSummary{}, err
	}
	s.storeSummary(ctx, comparison.Summary)
	return comparison.Summary, nil
}

func (s *Service) compare(ctx context.Context, upload manifest.Upload) (Comparison, error) {
	shape, err := s.shapes.For(upload.Kind)
	if err != nil {
		return Comparison{}, err
	}

	uploads, err := s.repo.ListUploads(ctx, upload.Kind)
	if err != nil {
		return Comparison{}, errs.Wrap(err, "list uploads")
	}
	current, err := s.loadRows(ctx, upload.ID)
	if err != nil {
		return Comparison{}, err
	}

	comparison := Comparison{Upload: upload}
	var previous []manifest.Row
	if prev, ok := manifest.PreviousUpload(uploads, upload.ID); ok {
		comparison.Previous = &prev
		previous, err = s.loadRows(ctx, prev.ID)
		if err != nil {
			return Comparison{}, err
		}
	}

	diff := manifest.DiffIdentifiers(shape, current, previous)
	comparison.NewItems = manifest.SelectRowsByIdentifier(shape, current, diff.New)
	comparison.RemovedItems = manifest.SelectRowsByIdentifier(shape, previous, diff.Removed)
	comparison.NewlyReleased = manifest.SelectRowsByIdentifier(shape, current, manifest.NewlyReleased(shape, current, previous))

	comparison.Summary = ComparisonSummary{
		UploadID:      upload.ID,
		TotalRows:     len(current),
		NewItems:      diff.New.Len(),
		RemovedItems:  diff.Removed.Len(),
		NewlyReleased: len(comparison.NewlyReleased),
		ComputedAt:    s.now().UTC(),
	}
	if comparison.Previous != nil {
		comparison.Summary.PreviousUploadID = comparison.Previous.ID
	}
	return comparison, nil
}

func (s *Service) loadRows(ctx context.Context, uploadID string) ([]manifest.Row, error) {
	rows, err := s.repo.GetReportRows(ctx, uploadID, ports.RowFilterAll)
	if err != nil {
		return nil, errs.Wrapf(err, "load report rows of %s", uploadID)
	}
	out := make([]manifest.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Fields)
	}
	return out, nil
}

func (s *Service) cachedSummary(ctx context.Context, uploadID string) (ComparisonSummary, bool) {
	if s.cache == nil {
		return ComparisonSummary{}, false
	}
	raw, found, err := s.cache.Get(ctx, comparisonCacheKey(uploadID))
	if err != nil || !found {
		return ComparisonSummary{}, false
	}
	var summary ComparisonSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		logging.Warn(ctx, "discarding unreadable cached comparison", slog.String("upload_id", uploadID))
		return ComparisonSummary{}, false
	}
	return summary, true
}

func (s *Service) storeSummary(ctx context.Context, summary ComparisonSummary) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	s.setCacheBestEffort(ctx, comparisonCacheKey(summary.UploadID), string(raw))
}

// invalidateSuccessors drops cached comparisons of uploads whose previous
// upload shares pivot's date. Call it after inserting or before deleting pivot.
func (s *Service) invalidateSuccessors(ctx context.Context, pivot manifest.Upload) {
	if s.cache == nil {
		return
	}
	uploads, err := s.repo.ListUploads(ctx, pivot.Kind)
	if err != nil {
		logging.Warn(ctx, "list uploads for cache invalidation failed", slog.Any("err", errs.Loggable(err)))
		return
	}
	for _, u := range uploads {
		if u.ID == pivot.ID {
			continue
		}
		prev, ok := manifest.PreviousUpload(uploads, u.ID)
		if ok && prev.UploadDate.Equal(pivot.UploadDate) {
			s.deleteCacheBestEffort(ctx, comparisonCacheKey(u.ID))
		}
	}
}
