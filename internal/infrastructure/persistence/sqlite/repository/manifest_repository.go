package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
	"cargoledger/internal/infrastructure/persistence/sqlite/model"
	"cargoledger/internal/ports"
)

const (
	rowInsertBatchSize = 500
	lookupChunkSize    = 500
)

type ManifestRepository struct {
	db     *gorm.DB
	shapes manifest.Shapes
}

var _ ports.ManifestRepository = (*ManifestRepository)(nil)

func NewManifestRepository(db *gorm.DB, shapes manifest.Shapes) *ManifestRepository {
	return &ManifestRepository{db: db, shapes: shapes}
}

func (r *ManifestRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// inTx runs fn inside the caller's transaction, or a fresh one when the
// context carries none.
func (r *ManifestRepository) inTx(ctx context.Context, fn func(db *gorm.DB) error) error {
	if ports.TxFromContext(ctx) != nil {
		db, err := r.dbFromContext(ctx)
		if err != nil {
			return err
		}
		return fn(db)
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *ManifestRepository) ListUploads(ctx context.Context, kind manifest.Kind) ([]manifest.Upload, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Upload{})
	if kind != "" {
		query = query.Where("kind = ?", string(kind))
	}

	var rows []model.Upload
	if err := query.Order("upload_date desc").Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query uploads")
	}

	items := make([]manifest.Upload, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapUpload(row))
	}
	return items, nil
}

func (r *ManifestRepository) GetUpload(ctx context.Context, uploadID string) (manifest.Upload, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return manifest.Upload{}, err
	}
	row, err := getUploadByID(db, uploadID)
	if err != nil {
		return manifest.Upload{}, err
	}
	return mapUpload(row), nil
}

func (r *ManifestRepository) CreateUpload(ctx context.Context, upload manifest.Upload, rows []manifest.Row) (manifest.Upload, error) {
	shape, err := r.shapes.For(upload.Kind)
	if err != nil {
		return manifest.Upload{}, err
	}

	if strings.TrimSpace(upload.ID) == "" {
		upload.ID = uuid.NewString()
	}
	if upload.UploadDate.IsZero() {
		upload.UploadDate = time.Now()
	}
	upload.UploadDate = upload.UploadDate.UTC()
	upload.RowCount = len(rows)

	record := model.Upload{
		ID:         upload.ID,
		Kind:       string(upload.Kind),
		Filename:   upload.Filename,
		RowCount:   upload.RowCount,
		UploadDate: upload.UploadDate,
	}

	reportRows := make([]model.ReportRow, 0, len(rows))
	for idx, row := range rows {
		row = shape.Normalized(row)
		fields, err := encodeFields(row)
		if err != nil {
			return manifest.Upload{}, errs.Wrapf(err, "encode report row %d", idx+1)
		}
		reportRows = append(reportRows, model.ReportRow{
			ID:         uuid.NewString(),
			UploadID:   upload.ID,
			Kind:       string(upload.Kind),
			Position:   idx,
			Identifier: shape.Identifier(row),
			GroupRef:   shape.Group(row),
			Release:    shape.Release(row),
			Fields:     fields,
		})
	}

	err = r.inTx(ctx, func(db *gorm.DB) error {
		if err := db.Create(&record).Error; err != nil {
			return errs.Wrap(err, "insert upload")
		}
		if len(reportRows) == 0 {
			return nil
		}
		if err := db.CreateInBatches(&reportRows, rowInsertBatchSize).Error; err != nil {
			return errs.Wrap(err, "insert report rows")
		}
		return nil
	})
	if err != nil {
		return manifest.Upload{}, err
	}
	return upload, nil
}

func (r *ManifestRepository) GetReportRows(ctx context.Context, uploadID string, filter ports.RowFilter) ([]ports.ReportRow, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query, err := applyReleaseFilter(db.Model(&model.ReportRow{}).Where("upload_id = ?", uploadID), filter)
	if err != nil {
		return nil, err
	}

	var rows []model.ReportRow
	if err := query.Order("position asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query report rows")
	}

	items := make([]ports.ReportRow, 0, len(rows))
	for _, row := range rows {
		item, err := mapReportRow(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *ManifestRepository) DeleteUpload(ctx context.Context, uploadID string, policy ports.OrphanPolicy) (ports.DeleteResult, error) {
	switch policy {
	case "":
		policy = ports.OrphanPolicyNull
	case ports.OrphanPolicyNull, ports.OrphanPolicyDelete:
	default:
		return ports.DeleteResult{}, fmt.Errorf("%w: %q", manifest.ErrInvalidOrphanPolicy, policy)
	}

	var result ports.DeleteResult
	err := r.inTx(ctx, func(db *gorm.DB) error {
		if _, err := getUploadByID(db, uploadID); err != nil {
			return err
		}

		deleted := db.Where("upload_id = ?", uploadID).Delete(&model.ReportRow{})
		if deleted.Error != nil {
			return errs.Wrap(deleted.Error, "delete report rows")
		}
		result.RowsDeleted = deleted.RowsAffected

		// Only entries first seen under this upload are touched.
		switch policy {
		case ports.OrphanPolicyDelete:
			res := db.Where("first_seen_upload_id = ?", uploadID).Delete(&model.MasterEntry{})
			if res.Error != nil {
				return errs.Wrap(res.Error, "delete orphaned master entries")
			}
			result.EntriesDeleted = res.RowsAffected
		default:
			cleared := db.Model(&model.MasterEntry{}).
				Where("first_seen_upload_id = ? AND last_updated_upload_id = ?", uploadID, uploadID).
				UpdateColumn("last_updated_upload_id", nil)
			if cleared.Error != nil {
				return errs.Wrap(cleared.Error, "clear last updated references")
			}
			result.LastUpdatedCleared = cleared.RowsAffected

			res := db.Model(&model.MasterEntry{}).
				Where("first_seen_upload_id = ?", uploadID).
				UpdateColumn("first_seen_upload_id", nil)
			if res.Error != nil {
				return errs.Wrap(res.Error, "detach master entries")
			}
			result.EntriesDetached = res.RowsAffected
		}

		if err := db.Where("id = ?", uploadID).Delete(&model.Upload{}).Error; err != nil {
			return errs.Wrap(err, "delete upload")
		}
		return nil
	})
	if err != nil {
		return ports.DeleteResult{}, err
	}
	return result, nil
}

func getUploadByID(db *gorm.DB, uploadID string) (model.Upload, error) {
	var row model.Upload
	if err := db.Where("id = ?", uploadID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Upload{}, fmt.Errorf("%w: %s", ports.ErrUploadNotFound, uploadID)
		}
		return model.Upload{}, errs.Wrap(err, "query upload")
	}
	return row, nil
}

func applyReleaseFilter(query *gorm.DB, filter ports.RowFilter) (*gorm.DB, error) {
	switch filter {
	case "", ports.RowFilterAll:
		return query, nil
	case ports.RowFilterWithRelease:
		return query.Where("release_date <> ''"), nil
	case ports.RowFilterWithoutRelease:
		return query.Where("release_date = ''"), nil
	default:
		return nil, fmt.Errorf("%w: %q", manifest.ErrInvalidRowFilter, filter)
	}
}
