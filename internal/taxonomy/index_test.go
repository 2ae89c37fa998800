package taxonomy_test

import (
	"strings"
	"testing"

	"fieldbook/internal/taxonomy"
)

func testIndex(t *testing.T) *taxonomy.Index {
	t.Helper()
	return taxonomy.NewIndex([]taxonomy.Entry{
		{Common: "Chukar", Scientific: "Alectoris chukar"},
		{Common: "Northern Cardinal", Scientific: "Cardinalis cardinalis"},
		{Common: "Northern Flicker", Scientific: "Colaptes auratus"},
		{Common: "Northern Harrier", Scientific: "Circus hudsonius"},
		{Common: "Common Raven", Scientific: "Corvus corax"},
		{Common: "American Crow", Scientific: "Corvus brachyrhynchos"},
		{Common: "Say's Phoebe", Scientific: "Sayornis saya"},
	})
}

func TestSearchRanksCommonPrefixFirst(t *testing.T) {
	ix := testIndex(t)

	results := ix.Search("Northern", 5)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	// Tier 1 in discovery order.
	if results[0].Common != "Northern Cardinal" || results[2].Common != "Northern Harrier" {
		t.Fatalf("unexpected ordering: %+v", results)
	}
}

func TestSearchScientificPrefixBeatsSubstring(t *testing.T) {
	ix := testIndex(t)

	// "cor" is a scientific prefix for both Corvus species and a substring
	// of nothing else in the fixture commons.
	results := ix.Search("cor", 5)
	if len(results) < 2 {
		t.Fatalf("expected corvids in results, got %+v", results)
	}
	if results[0].Scientific != "Corvus corax" {
		t.Fatalf("expected discovery-order Corvus first, got %+v", results[0])
	}
}

func TestSearchHonorsLimit(t *testing.T) {
	ix := testIndex(t)

	results := ix.Search("Northern", 2)
	if len(results) != 2 {
		t.Fatalf("expected limit to cap results, got %d", len(results))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	ix := testIndex(t)
	if results := ix.Search("   ", 5); results != nil {
		t.Fatalf("expected nil for blank query, got %+v", results)
	}
}

func TestFindBestMatchExactCommonCaseInsensitive(t *testing.T) {
	ix := testIndex(t)

	entry, ok := ix.FindBestMatch("nOrThErN cArDiNaL")
	if !ok || entry.Scientific != "Cardinalis cardinalis" {
		t.Fatalf("unexpected match: %+v ok=%v", entry, ok)
	}
}

func TestFindBestMatchCanonicalFormUsesScientific(t *testing.T) {
	ix := testIndex(t)

	// Misspelled common half still resolves through the scientific half.
	entry, ok := ix.FindBestMatch("Nothern Cardnal (Cardinalis cardinalis)")
	if !ok || entry.Common != "Northern Cardinal" {
		t.Fatalf("unexpected match: %+v ok=%v", entry, ok)
	}
}

func TestFindBestMatchBareScientific(t *testing.T) {
	ix := testIndex(t)

	entry, ok := ix.FindBestMatch("corvus corax")
	if !ok || entry.Common != "Common Raven" {
		t.Fatalf("unexpected match: %+v ok=%v", entry, ok)
	}
}

func TestFindBestMatchFuzzyChukarPartridge(t *testing.T) {
	ix := testIndex(t)

	// "chukar partridge": one of two tokens appears in "chukar alectoris
	// chukar", which meets the half-rounded-up threshold.
	entry, ok := ix.FindBestMatch("chukar partridge")
	if !ok || entry.Common != "Chukar" {
		t.Fatalf("expected fuzzy Chukar match, got %+v ok=%v", entry, ok)
	}
}

func TestFindBestMatchRejectsLowScore(t *testing.T) {
	ix := testIndex(t)

	if entry, ok := ix.FindBestMatch("spotted woodland warbler"); ok {
		t.Fatalf("expected no match, got %+v", entry)
	}
}

func TestFindBestMatchEmpty(t *testing.T) {
	ix := testIndex(t)
	if _, ok := ix.FindBestMatch("  "); ok {
		t.Fatal("expected no match for blank input")
	}
}

func TestDefaultDatasetLoads(t *testing.T) {
	ix, err := taxonomy.Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if ix.Len() < 100 {
		t.Fatalf("expected a substantial reference list, got %d entries", ix.Len())
	}

	entry, ok := ix.FindBestMatch("Chukar partridge")
	if !ok || entry.Canonical() != "Chukar (Alectoris chukar)" {
		t.Fatalf("bundled dataset should resolve Chukar, got %+v ok=%v", entry, ok)
	}
}

func TestParseReferenceSkipsHeaderAndBlanks(t *testing.T) {
	input := "common,scientific\nChukar,Alectoris chukar\n,\nMallard,Anas platyrhynchos\n"
	entries, err := taxonomy.ParseReference(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseReference failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Common != "Mallard" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestMemoizedMatchesIndex(t *testing.T) {
	ix := testIndex(t)
	memo := taxonomy.NewMemoized(ix)

	for i := 0; i < 3; i++ {
		entry, ok := memo.FindBestMatch("chukar partridge")
		if !ok || entry.Common != "Chukar" {
			t.Fatalf("memoized lookup diverged on pass %d: %+v ok=%v", i, entry, ok)
		}
	}

	first := memo.Search("Northern", 2)
	second := memo.Search("Northern", 2)
	if len(first) != 2 || len(second) != 2 || first[0] != second[0] {
		t.Fatalf("memoized search diverged: %+v vs %+v", first, second)
	}
}
