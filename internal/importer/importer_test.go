package importer_test

import (
	"context"
	"strings"
	"testing"

	"fieldbook/internal/dex"
	"fieldbook/internal/importer"
	"fieldbook/internal/species"
	"fieldbook/internal/store"
	"fieldbook/internal/taxonomy"
	"fieldbook/internal/testsupport"
)

func newImporter(t *testing.T) (*importer.Importer, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	index, err := taxonomy.Default()
	if err != nil {
		t.Fatalf("taxonomy.Default: %v", err)
	}
	normalizer := species.NewNormalizer(index, nil)
	reconciler := dex.NewReconciler(st, nil)
	return importer.New(cfg, st, normalizer, reconciler, nil, nil), st
}

const sampleCSV = `species,count,certainty,observed_at,lat,lon,notes
chukar,2,confirmed,2026-05-02T08:00:00Z,40.7608,-111.8910,pair on the ridge
Northern Cardinal,1,possible,2026-05-02T08:20:00Z,40.7608,-111.8910,
chukar,1,confirmed,2026-06-10T07:00:00Z,40.7608,-111.8910,
`

func TestImportGroupsRowsIntoOutings(t *testing.T) {
	imp, st := newImporter(t)
	ctx := context.Background()

	result, err := imp.Import(ctx, strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Imported != 3 || result.Skipped != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	// The two May rows are 20 minutes apart at one spot; June starts fresh.
	if result.Outings != 2 || result.NewOutings != 2 {
		t.Fatalf("expected two outings, got %+v", result)
	}
	if len(result.NewSpecies) != 2 {
		t.Fatalf("expected 2 new species, got %v", result.NewSpecies)
	}

	entry, err := st.GetDexEntry(ctx, "Chukar (Alectoris chukar)")
	if err != nil {
		t.Fatalf("GetDexEntry: %v", err)
	}
	if entry == nil || entry.TotalOutings != 2 || entry.TotalCount != 3 {
		t.Fatalf("unexpected chukar ledger: %+v", entry)
	}

	allOutings, err := st.ListOutings(ctx)
	if err != nil {
		t.Fatalf("ListOutings: %v", err)
	}
	if len(allOutings) != 2 {
		t.Fatalf("expected 2 stored outings, got %d", len(allOutings))
	}
}

func TestImportReimportSkipsEverything(t *testing.T) {
	imp, st := newImporter(t)
	ctx := context.Background()

	if _, err := imp.Import(ctx, strings.NewReader(sampleCSV)); err != nil {
		t.Fatalf("first import: %v", err)
	}
	result, err := imp.Import(ctx, strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if result.Imported != 0 || result.Skipped != 3 {
		t.Fatalf("re-import should skip all rows, got %+v", result)
	}

	entry, err := st.GetDexEntry(ctx, "Chukar (Alectoris chukar)")
	if err != nil {
		t.Fatalf("GetDexEntry: %v", err)
	}
	if entry.TotalCount != 3 {
		t.Fatalf("ledger must not inflate on re-import: %+v", entry)
	}
}

func TestImportNormalizesSpeciesNames(t *testing.T) {
	imp, st := newImporter(t)
	ctx := context.Background()

	csvData := "Alectoris chukar,1,confirmed,2026-05-02T08:00:00Z\n" +
		"chukar,1,confirmed,2026-05-02T08:10:00Z\n"
	result, err := imp.Import(ctx, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.NewSpecies) != 1 {
		t.Fatalf("both rows should converge on one species, got %v", result.NewSpecies)
	}

	entry, err := st.GetDexEntry(ctx, "Chukar (Alectoris chukar)")
	if err != nil {
		t.Fatalf("GetDexEntry: %v", err)
	}
	if entry == nil || entry.TotalCount != 2 {
		t.Fatalf("expected converged ledger, got %+v", entry)
	}
}

func TestParseRowsRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		csv  string
	}{
		{"missing fields", "chukar,1,confirmed\n"},
		{"bad count", "chukar,zero,confirmed,2026-05-02T08:00:00Z\n"},
		{"bad certainty", "chukar,1,definitely,2026-05-02T08:00:00Z\n"},
		{"rejected certainty", "chukar,1,rejected,2026-05-02T08:00:00Z\n"},
		{"bad timestamp", "chukar,1,confirmed,yesterday\n"},
		{"lat without lon", "chukar,1,confirmed,2026-05-02T08:00:00Z,40.76\n"},
		{"empty species", ",1,confirmed,2026-05-02T08:00:00Z\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := importer.ParseRows(strings.NewReader(tc.csv)); err == nil {
				t.Fatalf("expected parse failure for %q", tc.csv)
			}
		})
	}
}

func TestParseRowsDefaultsAndDateOnly(t *testing.T) {
	rows, err := importer.ParseRows(strings.NewReader("chukar,,confirmed,2026-05-02\n"))
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Count != 1 {
		t.Fatalf("blank count should default to 1, got %d", rows[0].Count)
	}
	if rows[0].Location != nil {
		t.Fatalf("expected no location, got %+v", rows[0].Location)
	}
}
