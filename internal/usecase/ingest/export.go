package ingest

import (
	"context"

	"cargoledger/internal/ports"
)

// Sheet is a tabular view ready to be written as CSV or XLSX.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

var masterBookkeepingColumns = []string{"FIRST SEEN UPLOAD", "LAST UPDATED UPLOAD", "LAST UPDATE REASON", "UPDATED AT"}

// MasterSheet renders the master list of kind grouped by its group column.
func (s *Service) MasterSheet(ctx context.Context, input MasterListInput) (Sheet, error) {
	shape, err := s.shapes.For(input.Kind)
	if err != nil {
		return Sheet{}, err
	}
	entries, err := s.MasterList(ctx, input)
	if err != nil {
		return Sheet{}, err
	}

	header := make([]string, 0, len(shape.Columns)+len(masterBookkeepingColumns))
	header = append(header, shape.Columns...)
	header = append(header, masterBookkeepingColumns...)

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		row := make([]string, 0, len(header))
		for _, column := range shape.Columns {
			row = append(row, entry.Fields[column])
		}
		row = append(row,
			deref(entry.FirstSeenUploadID),
			deref(entry.LastUpdatedUploadID),
			entry.LastUpdateReason,
			entry.UpdatedAt.Format("2006-01-02 15:04:05"),
		)
		rows = append(rows, row)
	}

	return Sheet{Name: string(shape.Kind) + " master", Header: header, Rows: rows}, nil
}

// ReportSheet renders the rows of one upload in file order.
func (s *Service) ReportSheet(ctx context.Context, uploadID string, filter ports.RowFilter) (Sheet, error) {
	upload, err := s.GetUpload(ctx, uploadID)
	if err != nil {
		return Sheet{}, err
	}
	shape, err := s.shapes.For(upload.Kind)
	if err != nil {
		return Sheet{}, err
	}
	rows, err := s.ReportRows(ctx, upload.ID, filter)
	if err != nil {
		return Sheet{}, err
	}

	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		values := make([]string, 0, len(shape.Columns))
		for _, column := range shape.Columns {
			values = append(values, row.Fields[column])
		}
		out = append(out, values)
	}
	return Sheet{Name: string(upload.Kind) + " report", Header: append([]string(nil), shape.Columns...), Rows: out}, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
