package ports

import (
	"context"
	"errors"

	"cargoledger/internal/domain/manifest"
)

var ErrUploadNotFound = errors.New("upload not found")

// RowFilter selects report rows by presence of a release date.
type RowFilter string

const (
	RowFilterAll            RowFilter = "all"
	RowFilterWithRelease    RowFilter = "with_frl"
	RowFilterWithoutRelease RowFilter = "without_frl"
)

// OrphanPolicy decides what happens to master entries first seen under a
// deleted upload.
type OrphanPolicy string

const (
	// OrphanPolicyNull keeps the entries and clears their first-seen reference.
	OrphanPolicyNull OrphanPolicy = "null"
	// OrphanPolicyDelete removes the entries.
	OrphanPolicyDelete OrphanPolicy = "delete"
)

type ReportRow struct {
	ID         string
	UploadID   string
	Kind       manifest.Kind
	Position   int
	Identifier string
	Fields     manifest.Row
}

type MasterFilter struct {
	Release RowFilter
	Search  string
	Limit   int
	Offset  int
}

type DeleteResult struct {
	RowsDeleted        int64
	EntriesDeleted     int64
	EntriesDetached    int64
	LastUpdatedCleared int64
}

type ManifestReadRepository interface {
	ListUploads(ctx context.Context, kind manifest.Kind) ([]manifest.Upload, error)
	GetUpload(ctx context.Context, uploadID string) (manifest.Upload, error)
	GetReportRows(ctx context.Context, uploadID string, filter RowFilter) ([]ReportRow, error)
	GetMasterEntriesByIdentifiers(ctx context.Context, kind manifest.Kind, identifiers []string) (map[string]manifest.MasterEntry, error)
	ListMasterEntries(ctx context.Context, kind manifest.Kind, filter MasterFilter) ([]manifest.MasterEntry, error)
	CountMasterEntries(ctx context.Context, kind manifest.Kind) (int64, error)
}

type ManifestRepository interface {
	ManifestReadRepository
	CreateUpload(ctx context.Context, upload manifest.Upload, rows []manifest.Row) (manifest.Upload, error)
	// InsertMasterEntries skips identifiers that already exist and returns
	// the number of entries actually inserted.
	InsertMasterEntries(ctx context.Context, entries []manifest.MasterEntry) (int, error)
	UpdateMasterEntries(ctx context.Context, kind manifest.Kind, updates []manifest.EntryUpdate) (int, error)
	DeleteUpload(ctx context.Context, uploadID string, policy OrphanPolicy) (DeleteResult, error)
	ResetMasterList(ctx context.Context, kind manifest.Kind) (int64, error)
}

// ParsedManifest is a decoded upload file with canonical headers.
type ParsedManifest struct {
	Headers []string
	Rows    []manifest.Row
}

// ManifestParser decodes an uploaded file for the given shape.
type ManifestParser interface {
	Parse(fileName string, payload []byte, shape manifest.Shape) (ParsedManifest, error)
}
