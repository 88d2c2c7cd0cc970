package model

import "time"

type Upload struct {
	ID         string    `gorm:"column:id;type:text;primaryKey"`
	Kind       string    `gorm:"column:kind;type:text;not null;index:idx_uploads_kind_date,priority:1"`
	Filename   string    `gorm:"column:filename;type:text;not null"`
	RowCount   int       `gorm:"column:row_count;not null;default:0"`
	UploadDate time.Time `gorm:"column:upload_date;not null;index:idx_uploads_kind_date,priority:2"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

func (Upload) TableName() string {
	return "uploads"
}
