package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cargoledger/internal/domain/manifest"
)

func TestLoadShapesDefaults(t *testing.T) {
	shapes, err := LoadShapes("")
	if err != nil {
		t.Fatalf("LoadShapes() error = %v", err)
	}
	if d := cmp.Diff(manifest.DefaultShapes(), shapes); d != "" {
		t.Fatalf("LoadShapes(\"\") mismatch (-want +got):\n%s", d)
	}
}

func TestLoadShapesOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.toml")
	body := `
version = 1

[shapes.air]
tracked_columns = ["log", "bond no"]

[shapes.air.aliases]
"house bill" = "hawb"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	shapes, err := LoadShapes(path)
	if err != nil {
		t.Fatalf("LoadShapes() error = %v", err)
	}
	air := shapes[manifest.KindAir]
	if d := cmp.Diff([]string{"LOG", "BOND NO"}, air.TrackedColumns); d != "" {
		t.Fatalf("tracked columns mismatch (-want +got):\n%s", d)
	}
	if got := air.CanonicalColumn("House  Bill"); got != "HAWB" {
		t.Fatalf("CanonicalColumn() = %q, want HAWB", got)
	}
	if d := cmp.Diff(manifest.DefaultShapes()[manifest.KindOcean], shapes[manifest.KindOcean]); d != "" {
		t.Fatalf("ocean shape changed (-want +got):\n%s", d)
	}
}

func TestParseShapesRejectsInvalidProfile(t *testing.T) {
	cases := map[string]string{
		"version":        "version = 2\n",
		"unknown kind":   "version = 1\n[shapes.rail]\ncolumns = [\"A\"]\n",
		"missing column": "version = 1\n[shapes.ocean]\ncolumns = [\"HB\", \"MBL\"]\n",
	}
	for name, body := range cases {
		if _, err := ParseShapes([]byte(body)); err == nil {
			t.Fatalf("ParseShapes(%s) expected error", name)
		}
	}
}
