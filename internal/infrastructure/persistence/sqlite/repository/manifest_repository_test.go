package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"

	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/infrastructure/persistence/sqlite/model"
	"cargoledger/internal/ports"
)

func setupManifestRepository(t *testing.T) *ManifestRepository {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ledger.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewManifestRepository(db, manifest.DefaultShapes())
}

func createUpload(t *testing.T, repo *ManifestRepository, id string, at time.Time, rows ...manifest.Row) manifest.Upload {
	t.Helper()

	upload, err := repo.CreateUpload(context.Background(), manifest.Upload{
		ID:         id,
		Kind:       manifest.KindOcean,
		Filename:   id + ".csv",
		UploadDate: at,
	}, rows)
	if err != nil {
		t.Fatalf("CreateUpload(%s) error = %v", id, err)
	}
	return upload
}

func strPtr(v string) *string { return &v }

func TestCreateUploadAndListNewestFirst(t *testing.T) {
	repo := setupManifestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	createUpload(t, repo, "u1", base, manifest.Row{"HB": "A"})
	created := createUpload(t, repo, "u2", base.Add(time.Hour), manifest.Row{"HB": "A"}, manifest.Row{"HB": "B"})
	if created.RowCount != 2 {
		t.Fatalf("CreateUpload() row count = %d, want 2", created.RowCount)
	}

	uploads, err := repo.ListUploads(ctx, manifest.KindOcean)
	if err != nil {
		t.Fatalf("ListUploads() error = %v", err)
	}
	got := []string{uploads[0].ID, uploads[1].ID}
	if d := cmp.Diff([]string{"u2", "u1"}, got); d != "" {
		t.Fatalf("ListUploads() order mismatch (-want +got):\n%s", d)
	}

	air, err := repo.ListUploads(ctx, manifest.KindAir)
	if err != nil {
		t.Fatalf("ListUploads(air) error = %v", err)
	}
	if len(air) != 0 {
		t.Fatalf("ListUploads(air) len = %d, want 0", len(air))
	}
}

func TestGetUploadNotFound(t *testing.T) {
	repo := setupManifestRepository(t)

	_, err := repo.GetUpload(context.Background(), "missing")
	if !errors.Is(err, ports.ErrUploadNotFound) {
		t.Fatalf("GetUpload() error = %v, want ErrUploadNotFound", err)
	}
}

func TestGetReportRowsFilter(t *testing.T) {
	repo := setupManifestRepository(t)
	ctx := context.Background()

	createUpload(t, repo, "u1", time.Now(),
		manifest.Row{"HB": "A", "FRL": "45292"},
		manifest.Row{"HB": "B", "FRL": " "},
		manifest.Row{"HB": "1.5E+3", "FRL": "01/05/2026"},
	)

	all, err := repo.GetReportRows(ctx, "u1", ports.RowFilterAll)
	if err != nil {
		t.Fatalf("GetReportRows(all) error = %v", err)
	}
	if len(all) != 3 || all[2].Identifier != "1500" || all[0].Fields["FRL"] != "45292" {
		t.Fatalf("GetReportRows(all) = %+v", all)
	}
	if all[2].Fields["HB"] != "1500" {
		t.Fatalf("stored HB = %q, want normalized 1500", all[2].Fields["HB"])
	}

	with, err := repo.GetReportRows(ctx, "u1", ports.RowFilterWithRelease)
	if err != nil {
		t.Fatalf("GetReportRows(with) error = %v", err)
	}
	if len(with) != 2 {
		t.Fatalf("GetReportRows(with) len = %d, want 2", len(with))
	}

	without, err := repo.GetReportRows(ctx, "u1", ports.RowFilterWithoutRelease)
	if err != nil {
		t.Fatalf("GetReportRows(without) error = %v", err)
	}
	if len(without) != 1 || without[0].Identifier != "B" {
		t.Fatalf("GetReportRows(without) = %+v", without)
	}

	if _, err := repo.GetReportRows(ctx, "u1", "bogus"); !errors.Is(err, manifest.ErrInvalidRowFilter) {
		t.Fatalf("GetReportRows(bogus) error = %v, want ErrInvalidRowFilter", err)
	}
}

func TestInsertMasterEntriesSkipsExistingIdentifiers(t *testing.T) {
	repo := setupManifestRepository(t)
	ctx := context.Background()

	entry := func(id string) manifest.MasterEntry {
		return manifest.MasterEntry{
			Kind:                manifest.KindOcean,
			Identifier:          id,
			Fields:              manifest.Row{"HB": id, "MBL": "M1"},
			FirstSeenUploadID:   strPtr("u1"),
			LastUpdatedUploadID: strPtr("u1"),
		}
	}

	inserted, err := repo.InsertMasterEntries(ctx, []manifest.MasterEntry{entry("A"), entry("B")})
	if err != nil {
		t.Fatalf("InsertMasterEntries() error = %v", err)
	}
	if inserted != 2 {
		t.Fatalf("InsertMasterEntries() inserted = %d, want 2", inserted)
	}

	inserted, err = repo.InsertMasterEntries(ctx, []manifest.MasterEntry{entry("B"), entry("C")})
	if err != nil {
		t.Fatalf("InsertMasterEntries(retry) error = %v", err)
	}
	if inserted != 1 {
		t.Fatalf("InsertMasterEntries(retry) inserted = %d, want 1", inserted)
	}

	count, err := repo.CountMasterEntries(ctx, manifest.KindOcean)
	if err != nil {
		t.Fatalf("CountMasterEntries() error = %v", err)
	}
	if count != 3 {
		t.Fatalf("CountMasterEntries() = %d, want 3", count)
	}
}

func TestUpdateMasterEntriesKeepsFirstSeen(t *testing.T) {
	repo := setupManifestRepository(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := repo.InsertMasterEntries(ctx, []manifest.MasterEntry{{
		Kind:                manifest.KindOcean,
		Identifier:          "A",
		Fields:              manifest.Row{"HB": "A", "FRL": "", "SHIPPER": "OLD"},
		FirstSeenUploadID:   strPtr("u1"),
		LastUpdatedUploadID: strPtr("u1"),
		CreatedAt:           created,
		UpdatedAt:           created,
	}}); err != nil {
		t.Fatalf("InsertMasterEntries() error = %v", err)
	}

	updatedAt := created.Add(24 * time.Hour)
	updated, err := repo.UpdateMasterEntries(ctx, manifest.KindOcean, []manifest.EntryUpdate{
		{Identifier: "A", Fields: manifest.Row{"HB": "A", "FRL": "45292"}, UploadID: "u2", Reasons: []string{"FRL"}, UpdatedAt: updatedAt},
		{Identifier: "missing", Fields: manifest.Row{"HB": "missing"}, UploadID: "u2", Reasons: []string{"TDF"}, UpdatedAt: updatedAt},
	})
	if err != nil {
		t.Fatalf("UpdateMasterEntries() error = %v", err)
	}
	if updated != 1 {
		t.Fatalf("UpdateMasterEntries() updated = %d, want 1", updated)
	}

	entries, err := repo.GetMasterEntriesByIdentifiers(ctx, manifest.KindOcean, []string{"A"})
	if err != nil {
		t.Fatalf("GetMasterEntriesByIdentifiers() error = %v", err)
	}
	got := entries["A"]
	if got.FirstSeenUploadID == nil || *got.FirstSeenUploadID != "u1" {
		t.Fatalf("first seen = %v, want u1", got.FirstSeenUploadID)
	}
	if got.LastUpdatedUploadID == nil || *got.LastUpdatedUploadID != "u2" || got.LastUpdateReason != "FRL" {
		t.Fatalf("bookkeeping = %v/%q", got.LastUpdatedUploadID, got.LastUpdateReason)
	}
	if _, ok := got.Fields["SHIPPER"]; ok {
		t.Fatalf("fields = %v, want full overwrite", got.Fields)
	}
	if !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(updatedAt) {
		t.Fatalf("timestamps = %v/%v", got.CreatedAt, got.UpdatedAt)
	}

	released, err := repo.ListMasterEntries(ctx, manifest.KindOcean, ports.MasterFilter{Release: ports.RowFilterWithRelease})
	if err != nil {
		t.Fatalf("ListMasterEntries() error = %v", err)
	}
	if len(released) != 1 {
		t.Fatalf("ListMasterEntries(with_frl) len = %d, want 1", len(released))
	}
}

func TestDeleteUploadNullPolicy(t *testing.T) {
	repo := setupManifestRepository(t)
	ctx := context.Background()
	base := time.Now().UTC()

	createUpload(t, repo, "u1", base, manifest.Row{"HB": "A"})
	createUpload(t, repo, "u2", base.Add(time.Hour), manifest.Row{"HB": "A"}, manifest.Row{"HB": "B"})
	if _, err := repo.InsertMasterEntries(ctx, []manifest.MasterEntry{
		{Kind: manifest.KindOcean, Identifier: "A", Fields: manifest.Row{"HB": "A"}, FirstSeenUploadID: strPtr("u1"), LastUpdatedUploadID: strPtr("u2")},
		{Kind: manifest.KindOcean, Identifier: "B", Fields: manifest.Row{"HB": "B"}, FirstSeenUploadID: strPtr("u2"), LastUpdatedUploadID: strPtr("u2")},
	}); err != nil {
		t.Fatalf("InsertMasterEntries() error = %v", err)
	}

	result, err := repo.DeleteUpload(ctx, "u2", "")
	if err != nil {
		t.Fatalf("DeleteUpload() error = %v", err)
	}
	want := ports.DeleteResult{RowsDeleted: 2, EntriesDetached: 1, LastUpdatedCleared: 1}
	if d := cmp.Diff(want, result); d != "" {
		t.Fatalf("DeleteUpload() result mismatch (-want +got):\n%s", d)
	}

	entries, err := repo.GetMasterEntriesByIdentifiers(ctx, manifest.KindOcean, []string{"A", "B"})
	if err != nil {
		t.Fatalf("GetMasterEntriesByIdentifiers() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries len = %d, want 2", len(entries))
	}
	// A was first seen under u1 and keeps its bookkeeping.
	if a := entries["A"]; a.FirstSeenUploadID == nil || *a.FirstSeenUploadID != "u1" ||
		a.LastUpdatedUploadID == nil || *a.LastUpdatedUploadID != "u2" {
		t.Fatalf("entry A = %+v", a)
	}
	if b := entries["B"]; b.FirstSeenUploadID != nil || b.LastUpdatedUploadID != nil {
		t.Fatalf("entry B bookkeeping = %v/%v, want nil/nil", b.FirstSeenUploadID, b.LastUpdatedUploadID)
	}

	if _, err := repo.GetUpload(ctx, "u2"); !errors.Is(err, ports.ErrUploadNotFound) {
		t.Fatalf("GetUpload(u2) error = %v, want ErrUploadNotFound", err)
	}
	if _, err := repo.DeleteUpload(ctx, "u2", ports.OrphanPolicyNull); !errors.Is(err, ports.ErrUploadNotFound) {
		t.Fatalf("DeleteUpload(again) error = %v, want ErrUploadNotFound", err)
	}
}

func TestDeleteUploadDeletePolicy(t *testing.T) {
	repo := setupManifestRepository(t)
	ctx := context.Background()

	createUpload(t, repo, "u1", time.Now(), manifest.Row{"HB": "A"})
	if _, err := repo.InsertMasterEntries(ctx, []manifest.MasterEntry{
		{Kind: manifest.KindOcean, Identifier: "A", Fields: manifest.Row{"HB": "A"}, FirstSeenUploadID: strPtr("u1"), LastUpdatedUploadID: strPtr("u1")},
		{Kind: manifest.KindOcean, Identifier: "Z", Fields: manifest.Row{"HB": "Z"}, FirstSeenUploadID: strPtr("u0"), LastUpdatedUploadID: strPtr("u0")},
	}); err != nil {
		t.Fatalf("InsertMasterEntries() error = %v", err)
	}

	result, err := repo.DeleteUpload(ctx, "u1", ports.OrphanPolicyDelete)
	if err != nil {
		t.Fatalf("DeleteUpload() error = %v", err)
	}
	if result.EntriesDeleted != 1 {
		t.Fatalf("DeleteUpload() entries deleted = %d, want 1", result.EntriesDeleted)
	}

	entries, err := repo.ListMasterEntries(ctx, manifest.KindOcean, ports.MasterFilter{})
	if err != nil {
		t.Fatalf("ListMasterEntries() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Identifier != "Z" {
		t.Fatalf("ListMasterEntries() = %+v, want only Z", entries)
	}

	if _, err := repo.DeleteUpload(ctx, "u1", "purge"); !errors.Is(err, manifest.ErrInvalidOrphanPolicy) {
		t.Fatalf("DeleteUpload(purge) error = %v, want ErrInvalidOrphanPolicy", err)
	}
}

func TestResetMasterListOnlyTouchesKind(t *testing.T) {
	repo := setupManifestRepository(t)
	ctx := context.Background()

	if _, err := repo.InsertMasterEntries(ctx, []manifest.MasterEntry{
		{Kind: manifest.KindOcean, Identifier: "A", Fields: manifest.Row{"HB": "A"}},
		{Kind: manifest.KindAir, Identifier: "A", Fields: manifest.Row{"HAWB": "A"}},
	}); err != nil {
		t.Fatalf("InsertMasterEntries() error = %v", err)
	}

	removed, err := repo.ResetMasterList(ctx, manifest.KindOcean)
	if err != nil {
		t.Fatalf("ResetMasterList() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("ResetMasterList() removed = %d, want 1", removed)
	}
	if count, _ := repo.CountMasterEntries(ctx, manifest.KindAir); count != 1 {
		t.Fatalf("CountMasterEntries(air) = %d, want 1", count)
	}
}
