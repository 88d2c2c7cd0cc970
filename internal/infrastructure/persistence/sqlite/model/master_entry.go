package model

import (
	"time"

	"gorm.io/datatypes"
)

type MasterEntry struct {
	ID                  string         `gorm:"column:id;type:text;primaryKey"`
	Kind                string         `gorm:"column:kind;type:text;not null;uniqueIndex:idx_master_kind_identifier,priority:1"`
	Identifier          string         `gorm:"column:identifier;type:text;not null;uniqueIndex:idx_master_kind_identifier,priority:2"`
	GroupRef            string         `gorm:"column:group_ref;type:text;not null;default:''"`
	Release             string         `gorm:"column:release_date;type:text;not null;default:''"`
	Fields              datatypes.JSON `gorm:"column:fields;type:text;not null"`
	FirstSeenUploadID   *string        `gorm:"column:first_seen_upload_id;type:text;index"`
	LastUpdatedUploadID *string        `gorm:"column:last_updated_upload_id;type:text;index"`
	LastUpdateReason    string         `gorm:"column:last_update_reason;type:text;not null;default:''"`
	CreatedAt           time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;not null"`
}

func (MasterEntry) TableName() string {
	return "master_entries"
}
