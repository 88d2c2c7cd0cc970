package model

import "gorm.io/datatypes"

// ReportRow is an immutable line of an upload. Identifier, group and release
// are copied out of Fields so they can be filtered in SQL.
type ReportRow struct {
	ID         string         `gorm:"column:id;type:text;primaryKey"`
	UploadID   string         `gorm:"column:upload_id;type:text;not null;index:idx_report_rows_upload,priority:1"`
	Kind       string         `gorm:"column:kind;type:text;not null"`
	Position   int            `gorm:"column:position;not null;index:idx_report_rows_upload,priority:2"`
	Identifier string         `gorm:"column:identifier;type:text;not null;index"`
	GroupRef   string         `gorm:"column:group_ref;type:text;not null;default:''"`
	Release    string         `gorm:"column:release_date;type:text;not null;default:''"`
	Fields     datatypes.JSON `gorm:"column:fields;type:text;not null"`
}

func (ReportRow) TableName() string {
	return "report_rows"
}
