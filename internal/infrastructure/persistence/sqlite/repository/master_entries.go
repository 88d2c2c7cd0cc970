package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
	"cargoledger/internal/infrastructure/persistence/sqlite/model"
	"cargoledger/internal/ports"
)

func (r *ManifestRepository) GetMasterEntriesByIdentifiers(ctx context.Context, kind manifest.Kind, identifiers []string) (map[string]manifest.MasterEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := findMasterRows(db, kind, identifiers)
	if err != nil {
		return nil, err
	}

	out := make(map[string]manifest.MasterEntry, len(rows))
	for _, row := range rows {
		entry, err := mapMasterEntry(row)
		if err != nil {
			return nil, err
		}
		out[entry.Identifier] = entry
	}
	return out, nil
}

func (r *ManifestRepository) InsertMasterEntries(ctx context.Context, entries []manifest.MasterEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	rows := make([]model.MasterEntry, 0, len(entries))
	for _, entry := range entries {
		row, err := r.toMasterRow(entry)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	// Identifiers inserted by a concurrent or retried write are skipped.
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "identifier"}},
		DoNothing: true,
	}).CreateInBatches(&rows, rowInsertBatchSize)
	if res.Error != nil {
		return 0, errs.Wrap(res.Error, "insert master entries")
	}
	return int(res.RowsAffected), nil
}

func (r *ManifestRepository) UpdateMasterEntries(ctx context.Context, kind manifest.Kind, updates []manifest.EntryUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	shape, err := r.shapes.For(kind)
	if err != nil {
		return 0, err
	}

	identifiers := make([]string, 0, len(updates))
	for _, update := range updates {
		identifiers = append(identifiers, update.Identifier)
	}

	updated := 0
	err = r.inTx(ctx, func(db *gorm.DB) error {
		rows, err := findMasterRows(db, kind, identifiers)
		if err != nil {
			return err
		}
		current := make(map[string]manifest.MasterEntry, len(rows))
		for _, row := range rows {
			entry, err := mapMasterEntry(row)
			if err != nil {
				return err
			}
			current[entry.Identifier] = entry
		}

		for _, update := range updates {
			entry, ok := current[update.Identifier]
			if !ok {
				continue
			}
			next := update.Apply(entry)
			fields, err := encodeFields(next.Fields)
			if err != nil {
				return errs.Wrapf(err, "encode master entry %s", next.Identifier)
			}

			res := db.Model(&model.MasterEntry{}).
				Where("kind = ? AND identifier = ?", string(kind), next.Identifier).
				UpdateColumns(map[string]any{
					"fields":                 fields,
					"group_ref":              shape.Group(next.Fields),
					"release_date":           shape.Release(next.Fields),
					"last_updated_upload_id": next.LastUpdatedUploadID,
					"last_update_reason":     next.LastUpdateReason,
					"updated_at":             next.UpdatedAt.UTC(),
				})
			if res.Error != nil {
				return errs.Wrapf(res.Error, "update master entry %s", next.Identifier)
			}
			updated += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (r *ManifestRepository) ListMasterEntries(ctx context.Context, kind manifest.Kind, filter ports.MasterFilter) ([]manifest.MasterEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query, err := applyReleaseFilter(db.Model(&model.MasterEntry{}).Where("kind = ?", string(kind)), filter.Release)
	if err != nil {
		return nil, err
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("identifier LIKE ? OR group_ref LIKE ?", pattern, pattern)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []model.MasterEntry
	if err := query.Order("group_ref asc").Order("identifier asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query master entries")
	}

	items := make([]manifest.MasterEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapMasterEntry(row)
		if err != nil {
			return nil, err
		}
		items = append(items, entry)
	}
	return items, nil
}

func (r *ManifestRepository) CountMasterEntries(ctx context.Context, kind manifest.Kind) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.MasterEntry{}).Where("kind = ?", string(kind)).Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count master entries")
	}
	return count, nil
}

func (r *ManifestRepository) ResetMasterList(ctx context.Context, kind manifest.Kind) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	res := db.Where("kind = ?", string(kind)).Delete(&model.MasterEntry{})
	if res.Error != nil {
		return 0, errs.Wrap(res.Error, "reset master list")
	}
	return res.RowsAffected, nil
}

func (r *ManifestRepository) toMasterRow(entry manifest.MasterEntry) (model.MasterEntry, error) {
	shape, err := r.shapes.For(entry.Kind)
	if err != nil {
		return model.MasterEntry{}, err
	}
	fields, err := encodeFields(entry.Fields)
	if err != nil {
		return model.MasterEntry{}, errs.Wrapf(err, "encode master entry %s", entry.Identifier)
	}

	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	created := entry.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := entry.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	return model.MasterEntry{
		ID:                  id,
		Kind:                string(entry.Kind),
		Identifier:          entry.Identifier,
		GroupRef:            shape.Group(entry.Fields),
		Release:             shape.Release(entry.Fields),
		Fields:              fields,
		FirstSeenUploadID:   entry.FirstSeenUploadID,
		LastUpdatedUploadID: entry.LastUpdatedUploadID,
		LastUpdateReason:    entry.LastUpdateReason,
		CreatedAt:           created.UTC(),
		UpdatedAt:           updated.UTC(),
	}, nil
}

func findMasterRows(db *gorm.DB, kind manifest.Kind, identifiers []string) ([]model.MasterEntry, error) {
	var out []model.MasterEntry
	for start := 0; start < len(identifiers); start += lookupChunkSize {
		end := min(start+lookupChunkSize, len(identifiers))

		var rows []model.MasterEntry
		if err := db.
			Where("kind = ? AND identifier IN ?", string(kind), identifiers[start:end]).
			Find(&rows).Error; err != nil {
			return nil, errs.Wrap(err, "query master entries by identifier")
		}
		out = append(out, rows...)
	}
	return out, nil
}
