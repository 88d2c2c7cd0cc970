package manifest

import (
	"maps"
	"strings"
	"time"
)

// Row is one manifest line keyed by canonical column name.
type Row map[string]string

func (r Row) Get(column string) string {
	return strings.TrimSpace(r[column])
}

func (r Row) Has(column string) bool {
	_, ok := r[column]
	return ok
}

func (r Row) Clone() Row {
	if r == nil {
		return Row{}
	}
	return maps.Clone(r)
}

// Identifier returns the normalized business key of the row.
func (s Shape) Identifier(r Row) string {
	return NormalizeIdentifier(r[s.IdentifierColumn])
}

// Normalized returns a copy of r whose identifier cell holds the
// normalized identifier.
func (s Shape) Normalized(r Row) Row {
	out := r.Clone()
	out[s.IdentifierColumn] = s.Identifier(r)
	return out
}

func (s Shape) Group(r Row) string {
	return r.Get(s.GroupColumn)
}

// Release returns the release date normalized for comparison.
func (s Shape) Release(r Row) string {
	return NormalizeDateForComparison(r[s.ReleaseColumn])
}

type Upload struct {
	ID         string
	Kind       Kind
	Filename   string
	RowCount   int
	UploadDate time.Time
}

type MasterEntry struct {
	ID                  string
	Kind                Kind
	Identifier          string
	Fields              Row
	FirstSeenUploadID   *string
	LastUpdatedUploadID *string
	LastUpdateReason    string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EntryUpdate carries the new domain fields for an existing entry together
// with the bookkeeping of the upload that caused it.
type EntryUpdate struct {
	Identifier string
	Fields     Row
	UploadID   string
	Reasons    []string
	UpdatedAt  time.Time
}

func (u EntryUpdate) Reason() string {
	return strings.Join(u.Reasons, ",")
}

// Apply overwrites the domain fields of entry and records the update.
// Identity and first-seen bookkeeping are left as they are.
func (u EntryUpdate) Apply(entry MasterEntry) MasterEntry {
	uploadID := u.UploadID
	entry.Fields = u.Fields.Clone()
	entry.LastUpdatedUploadID = &uploadID
	entry.LastUpdateReason = u.Reason()
	entry.UpdatedAt = u.UpdatedAt
	return entry
}
