package schema

import "time"

// Version is bumped whenever a migration changes table layout.
const Version = "1"

const VersionKey = "schema_version"

type LedgerMeta struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Key       string    `gorm:"column:key;type:text;uniqueIndex;not null"`
	Value     string    `gorm:"column:value;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (LedgerMeta) TableName() string {
	return "ledger_meta"
}
