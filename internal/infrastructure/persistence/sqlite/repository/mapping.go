package repository

import (
	"encoding/json"

	"gorm.io/datatypes"

	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
	"cargoledger/internal/infrastructure/persistence/sqlite/model"
	"cargoledger/internal/ports"
)

func encodeFields(row manifest.Row) (datatypes.JSON, error) {
	if row == nil {
		row = manifest.Row{}
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodeFields(raw datatypes.JSON) (manifest.Row, error) {
	row := manifest.Row{}
	if len(raw) == 0 {
		return row, nil
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func mapUpload(row model.Upload) manifest.Upload {
	return manifest.Upload{
		ID:         row.ID,
		Kind:       manifest.Kind(row.Kind),
		Filename:   row.Filename,
		RowCount:   row.RowCount,
		UploadDate: row.UploadDate.UTC(),
	}
}

func mapReportRow(row model.ReportRow) (ports.ReportRow, error) {
	fields, err := decodeFields(row.Fields)
	if err != nil {
		return ports.ReportRow{}, errs.Wrapf(err, "decode report row %s", row.ID)
	}
	return ports.ReportRow{
		ID:         row.ID,
		UploadID:   row.UploadID,
		Kind:       manifest.Kind(row.Kind),
		Position:   row.Position,
		Identifier: row.Identifier,
		Fields:     fields,
	}, nil
}

func mapMasterEntry(row model.MasterEntry) (manifest.MasterEntry, error) {
	fields, err := decodeFields(row.Fields)
	if err != nil {
		return manifest.MasterEntry{}, errs.Wrapf(err, "decode master entry %s", row.Identifier)
	}
	return manifest.MasterEntry{
		ID:                  row.ID,
		Kind:                manifest.Kind(row.Kind),
		Identifier:          row.Identifier,
		Fields:              fields,
		FirstSeenUploadID:   row.FirstSeenUploadID,
		LastUpdatedUploadID: row.LastUpdatedUploadID,
		LastUpdateReason:    row.LastUpdateReason,
		CreatedAt:           row.CreatedAt.UTC(),
		UpdatedAt:           row.UpdatedAt.UTC(),
	}, nil
}
