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

func ParseOrphanPolicy(raw string) (ports.OrphanPolicy, error) {
	switch policy := ports.OrphanPolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case "":
		return "", nil
	case ports.OrphanPolicyNull, ports.OrphanPolicyDelete:
		return policy, nil
	default:
		return "", fmt.Errorf("%w: %q", manifest.ErrInvalidOrphanPolicy, raw)
	}
}

// DeleteUpload removes an upload with its report rows. Master entries first
// seen under it follow the orphan policy; no other entry loses data.
func (s *Service) DeleteUpload(ctx context.Context, input DeleteUploadInput) (DeleteUploadResult, error) {
	if err := checkContext(ctx); err != nil {
		return DeleteUploadResult{}, err
	}
	if s.repo == nil {
		return DeleteUploadResult{}, errRepositoryRequired
	}
	uploadID := strings.TrimSpace(input.UploadID)
	if uploadID == "" {
		return DeleteUploadResult{}, errUploadIDRequired
	}
	policy := input.Policy
	if policy == "" {
		policy = s.opts.OrphanPolicy
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.ingest"), slog.String("upload_id", uploadID))

	upload, err := s.repo.GetUpload(ctx, uploadID)
	if err != nil {
		return DeleteUploadResult{}, err
	}
	s.invalidateSuccessors(logCtx, upload)

	deleted, err := s.repo.DeleteUpload(ctx, uploadID, policy)
	if err != nil {
		return DeleteUploadResult{}, errs.Wrap(err, "delete upload")
	}
	s.deleteCacheBestEffort(logCtx, comparisonCacheKey(uploadID))

	logging.Info(
		logCtx,
		"upload deleted",
		slog.String("orphan_policy", string(policy)),
		slog.Int64("rows_deleted", deleted.RowsDeleted),
		slog.Int64("entries_deleted", deleted.EntriesDeleted),
		slog.Int64("entries_detached", deleted.EntriesDetached),
	)

	return DeleteUploadResult{Upload: upload, Policy: policy, DeleteResult: deleted}, nil
}

// ResetMasterList removes every master entry of kind. Upload history is kept.
func (s *Service) ResetMasterList(ctx context.Context, kind manifest.Kind) (int64, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	if s.repo == nil {
		return 0, errRepositoryRequired
	}
	if _, err := s.shapes.For(kind); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.repo.ResetMasterList(ctx, kind)
	if err != nil {
		return 0, errs.Wrap(err, "reset master list")
	}
	logging.Info(
		logging.WithComponent(ctx, "usecase.ingest"),
		"master list reset",
		slog.String("kind", string(kind)),
		slog.Int64("removed", removed),
	)
	return removed, nil
}
