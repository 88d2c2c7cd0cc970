package ingest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
	"cargoledger/internal/ports"
)

// IngestFile parses an uploaded CSV or XLSX file and ingests its rows.
func (s *Service) IngestFile(ctx context.Context, input IngestFileInput) (IngestResult, error) {
	if err := checkContext(ctx); err != nil {
		return IngestResult{}, err
	}
	if s.parser == nil {
		return IngestResult{}, errParserRequired
	}
	if strings.TrimSpace(input.Filename) == "" {
		return IngestResult{}, errFilenameRequired
	}

	shape, err := s.shapes.For(input.Kind)
	if err != nil {
		return IngestResult{}, err
	}
	parsed, err := s.parser.Parse(input.Filename, input.Payload, shape)
	if err != nil {
		return IngestResult{}, errs.Wrapf(err, "parse %s", input.Filename)
	}

	return s.IngestRows(ctx, IngestRowsInput{
		Kind:       input.Kind,
		Filename:   input.Filename,
		Rows:       parsed.Rows,
		UploadDate: input.UploadDate,
	})
}

// IngestRows records an upload and reconciles its rows into the master list.
// When a master list write fails the upload stays recorded and the returned
// result carries the counts applied so far alongside a *PartialWriteError.
func (s *Service) IngestRows(ctx context.Context, input IngestRowsInput) (IngestResult, error) {
	if err := checkContext(ctx); err != nil {
		return IngestResult{}, err
	}
	if s.repo == nil {
		return IngestResult{}, errRepositoryRequired
	}
	if s.uow == nil {
		return IngestResult{}, errUnitOfWorkRequired
	}
	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		return IngestResult{}, errFilenameRequired
	}
	shape, err := s.shapes.For(input.Kind)
	if err != nil {
		return IngestResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	upload := manifest.Upload{
		ID:         uuid.NewString(),
		Kind:       input.Kind,
		Filename:   filename,
		UploadDate: input.UploadDate,
	}
	if upload.UploadDate.IsZero() {
		upload.UploadDate = now
	}

	logCtx := logging.WithAttrs(
		ctx,
		slog.String("component", "usecase.ingest"),
		slog.String("upload_id", upload.ID),
		slog.String("kind", string(input.Kind)),
	)

	rows := make([]manifest.Row, 0, len(input.Rows))
	for _, row := range input.Rows {
		if row.Has(shape.IdentifierColumn) {
			rows = append(rows, row)
		}
	}
	if dropped := len(input.Rows) - len(rows); dropped > 0 {
		logging.Warn(logCtx, "rows without identifier column dropped", slog.Int("dropped", dropped))
	}

	existing, err := s.repo.GetMasterEntriesByIdentifiers(ctx, input.Kind, shape.Identifiers(rows).Sorted())
	if err != nil {
		return IngestResult{}, errs.Wrap(err, "load master entries")
	}
	plan := manifest.Reconcile(shape, existing, rows, upload.ID, now)

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		created, err := s.repo.CreateUpload(txCtx, upload, rows)
		if err != nil {
			return err
		}
		upload = created
		return nil
	}); err != nil {
		return IngestResult{}, errs.Wrap(err, "record upload")
	}
	logging.Info(logCtx, "upload recorded", slog.String("filename", filename), slog.Int("rows", upload.RowCount))

	result := IngestResult{
		Upload:           upload,
		AttemptedAdds:    plan.ItemsAdded,
		AttemptedUpdates: plan.ItemsUpdated,
		SkippedRows:      plan.Skipped,
	}

	added, err := s.writeInserts(logCtx, plan.Inserts)
	result.ItemsAdded = added
	if err != nil {
		return result, s.partialWrite(logCtx, result, err)
	}
	updated, err := s.writeUpdates(logCtx, input.Kind, plan.Updates)
	result.ItemsUpdated = updated
	if err != nil {
		return result, s.partialWrite(logCtx, result, err)
	}

	if added != plan.ItemsAdded {
		// Identifiers inserted between the read and the write are skipped.
		logging.Warn(logCtx, "some master entries already existed", slog.Int("attempted", plan.ItemsAdded), slog.Int("inserted", added))
	}

	s.invalidateSuccessors(logCtx, upload)
	summary, err := s.summary(logCtx, upload)
	if err != nil {
		logging.Warn(logCtx, "compute comparison failed", slog.Any("err", errs.Loggable(err)))
	}
	result.Comparison = summary

	logging.Info(
		logCtx,
		"upload reconciled",
		slog.Int("items_added", result.ItemsAdded),
		slog.Int("items_updated", result.ItemsUpdated),
		slog.Int("skipped_rows", result.SkippedRows),
		slog.Int("new_items", summary.NewItems),
		slog.Int("removed_items", summary.RemovedItems),
		slog.Int("newly_released", summary.NewlyReleased),
	)

	s.notifyBestEffort(logCtx, result)
	return result, nil
}

func (s *Service) partialWrite(ctx context.Context, result IngestResult, cause error) error {
	err := &PartialWriteError{
		UploadID:         result.Upload.ID,
		AddedApplied:     result.ItemsAdded,
		AddedAttempted:   result.AttemptedAdds,
		UpdatedApplied:   result.ItemsUpdated,
		UpdatedAttempted: result.AttemptedUpdates,
		Err:              errs.WithStack(cause),
	}
	logging.Error(ctx, "master list write failed", slog.Any("err", errs.Loggable(err)))
	return err
}

func (s *Service) notifyBestEffort(ctx context.Context, result IngestResult) {
	if s.notifier == nil {
		return
	}
	event := ports.IngestedEvent{
		UploadID:       result.Upload.ID,
		Kind:           string(result.Upload.Kind),
		Filename:       result.Upload.Filename,
		RowCount:       result.Upload.RowCount,
		UploadDate:     result.Upload.UploadDate,
		ItemsAdded:     result.ItemsAdded,
		ItemsUpdated:   result.ItemsUpdated,
		NewItems:       result.Comparison.NewItems,
		RemovedItems:   result.Comparison.RemovedItems,
		NewlyReleased:  result.Comparison.NewlyReleased,
		PreviousUpload: result.Comparison.PreviousUploadID,
	}
	if err := s.notifier.PublishIngested(ctx, event); err != nil {
		logging.Warn(ctx, "publish ingested event failed", slog.Any("err", errs.Loggable(err)))
	}
}
