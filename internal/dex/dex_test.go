package dex_test

import (
	"context"
	"testing"
	"time"

	"fieldbook/internal/dex"
	"fieldbook/internal/store"
	"fieldbook/internal/testsupport"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return parsed
}

func TestFoldCreatesEntry(t *testing.T) {
	seen := mustTime(t, "2026-05-02T08:00:00Z")

	entry := dex.Fold(nil, dex.Event{
		SpeciesName:    "Chukar (Alectoris chukar)",
		SeenAt:         seen,
		Count:          2,
		Confirmed:      true,
		FirstForOuting: true,
	})

	if entry.SpeciesName != "Chukar (Alectoris chukar)" {
		t.Fatalf("unexpected species %q", entry.SpeciesName)
	}
	if !entry.FirstSeen.Equal(seen) || !entry.LastSeen.Equal(seen) || !entry.AddedAt.Equal(seen) {
		t.Fatalf("all three dates should sit at the sighting time: %+v", entry)
	}
	if entry.TotalCount != 2 || entry.TotalOutings != 1 {
		t.Fatalf("unexpected totals: %+v", entry)
	}
}

func TestFoldDoesNotMutateInput(t *testing.T) {
	existing := &store.DexEntry{
		SpeciesName: "Chukar (Alectoris chukar)",
		FirstSeen:   mustTime(t, "2026-05-01T08:00:00Z"),
		LastSeen:    mustTime(t, "2026-05-01T09:00:00Z"),
		TotalCount:  3,
	}
	before := *existing

	_ = dex.Fold(existing, dex.Event{
		SpeciesName: existing.SpeciesName,
		SeenAt:      mustTime(t, "2026-05-02T08:00:00Z"),
		Count:       1,
	})

	if *existing != before {
		t.Fatalf("input mutated: %+v", existing)
	}
}

func TestFoldWidensDateRange(t *testing.T) {
	existing := &store.DexEntry{
		SpeciesName: "Chukar (Alectoris chukar)",
		FirstSeen:   mustTime(t, "2026-05-02T08:00:00Z"),
		LastSeen:    mustTime(t, "2026-05-02T09:00:00Z"),
	}

	earlier := dex.Fold(existing, dex.Event{SeenAt: mustTime(t, "2026-04-01T08:00:00Z"), Count: 1})
	if !earlier.FirstSeen.Equal(mustTime(t, "2026-04-01T08:00:00Z")) {
		t.Fatalf("FirstSeen not lowered: %v", earlier.FirstSeen)
	}

	later := dex.Fold(existing, dex.Event{SeenAt: mustTime(t, "2026-06-01T08:00:00Z"), Count: 1})
	if !later.LastSeen.Equal(mustTime(t, "2026-06-01T08:00:00Z")) {
		t.Fatalf("LastSeen not raised: %v", later.LastSeen)
	}
}

func TestFoldPossibleCountsButNoOutingCredit(t *testing.T) {
	entry := dex.Fold(nil, dex.Event{
		SpeciesName:    "Chukar (Alectoris chukar)",
		SeenAt:         mustTime(t, "2026-05-02T08:00:00Z"),
		Count:          4,
		Confirmed:      false,
		FirstForOuting: true,
	})

	if entry.TotalCount != 4 {
		t.Fatalf("possible sightings still count individuals, got %d", entry.TotalCount)
	}
	if entry.TotalOutings != 0 {
		t.Fatalf("possible sightings must not credit an outing, got %d", entry.TotalOutings)
	}
}

func newOutingWith(t *testing.T, st *store.Store, start string) *store.Outing {
	t.Helper()
	return testsupport.NewOuting(t, st, mustTime(t, start), mustTime(t, start).Add(time.Hour))
}

func appendAndReconcile(t *testing.T, st *store.Store, r *dex.Reconciler, outingID string, observations []*store.Observation) []string {
	t.Helper()
	ctx := context.Background()
	for _, obs := range observations {
		obs.OutingID = outingID
	}
	if err := st.AppendObservations(ctx, observations); err != nil {
		t.Fatalf("AppendObservations: %v", err)
	}
	newSpecies, err := r.Reconcile(ctx, outingID, observations)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	return newSpecies
}

func TestReconcileNewSpecies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	r := dex.NewReconciler(st, nil)

	outing := newOutingWith(t, st, "2026-05-02T08:00:00Z")
	species := "Chukar (Alectoris chukar)"

	newSpecies := appendAndReconcile(t, st, r, outing.ID, []*store.Observation{
		{SpeciesName: species, Certainty: store.CertaintyConfirmed, Count: 2},
	})
	if len(newSpecies) != 1 || newSpecies[0] != species {
		t.Fatalf("expected first-ever species, got %v", newSpecies)
	}

	entry, err := st.GetDexEntry(context.Background(), species)
	if err != nil {
		t.Fatalf("GetDexEntry: %v", err)
	}
	if entry.TotalOutings != 1 || entry.TotalCount != 2 {
		t.Fatalf("unexpected ledger: %+v", entry)
	}
}

func TestReconcileNewEntryDatedAtOutingStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	r := dex.NewReconciler(st, nil)

	outing := newOutingWith(t, st, "2026-05-02T08:00:00Z")
	species := "Chukar (Alectoris chukar)"

	appendAndReconcile(t, st, r, outing.ID, []*store.Observation{
		{SpeciesName: species, Certainty: store.CertaintyConfirmed},
	})

	entry, err := st.GetDexEntry(context.Background(), species)
	if err != nil {
		t.Fatalf("GetDexEntry: %v", err)
	}
	// A first-ever sighting dates the whole row at the outing start, not at
	// reconcile time.
	if !entry.AddedAt.Equal(outing.StartTime) {
		t.Fatalf("AddedAt = %v, want outing start %v", entry.AddedAt, outing.StartTime)
	}
	if !entry.FirstSeen.Equal(outing.StartTime) || !entry.LastSeen.Equal(outing.StartTime) {
		t.Fatalf("seen range should sit at outing start: %+v", entry)
	}
}

func TestReconcileOutingCreditedOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	r := dex.NewReconciler(st, nil)

	outing := newOutingWith(t, st, "2026-05-02T08:00:00Z")
	species := "Chukar (Alectoris chukar)"

	// Two confirmed observations in one batch: one outing credit.
	appendAndReconcile(t, st, r, outing.ID, []*store.Observation{
		{SpeciesName: species, Certainty: store.CertaintyConfirmed},
		{SpeciesName: species, Certainty: store.CertaintyConfirmed},
	})
	// A later batch on the same outing: still one credit.
	newSpecies := appendAndReconcile(t, st, r, outing.ID, []*store.Observation{
		{SpeciesName: species, Certainty: store.CertaintyConfirmed},
	})
	if len(newSpecies) != 0 {
		t.Fatalf("species already known, got %v", newSpecies)
	}

	entry, err := st.GetDexEntry(context.Background(), species)
	if err != nil {
		t.Fatalf("GetDexEntry: %v", err)
	}
	if entry.TotalOutings != 1 {
		t.Fatalf("expected one outing credit, got %d", entry.TotalOutings)
	}
	if entry.TotalCount != 3 {
		t.Fatalf("expected 3 individuals, got %d", entry.TotalCount)
	}
}

func TestReconcileSecondOutingAddsCredit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	r := dex.NewReconciler(st, nil)

	species := "Chukar (Alectoris chukar)"
	first := newOutingWith(t, st, "2026-05-02T08:00:00Z")
	second := newOutingWith(t, st, "2026-06-10T07:00:00Z")

	appendAndReconcile(t, st, r, first.ID, []*store.Observation{
		{SpeciesName: species, Certainty: store.CertaintyConfirmed},
	})
	appendAndReconcile(t, st, r, second.ID, []*store.Observation{
		{SpeciesName: species, Certainty: store.CertaintyConfirmed},
	})

	entry, err := st.GetDexEntry(context.Background(), species)
	if err != nil {
		t.Fatalf("GetDexEntry: %v", err)
	}
	if entry.TotalOutings != 2 {
		t.Fatalf("expected two outing credits, got %d", entry.TotalOutings)
	}
	if !entry.FirstSeen.Equal(first.StartTime) || !entry.LastSeen.Equal(second.StartTime) {
		t.Fatalf("date range should span both outings: %+v", entry)
	}
}

func TestReconcileSkipsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	r := dex.NewReconciler(st, nil)

	outing := newOutingWith(t, st, "2026-05-02T08:00:00Z")
	species := "Chukar (Alectoris chukar)"

	newSpecies := appendAndReconcile(t, st, r, outing.ID, []*store.Observation{
		{SpeciesName: species, Certainty: store.CertaintyRejected, Count: 5},
	})
	if len(newSpecies) != 0 {
		t.Fatalf("rejected observation must not create species, got %v", newSpecies)
	}

	entry, err := st.GetDexEntry(context.Background(), species)
	if err != nil {
		t.Fatalf("GetDexEntry: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected no ledger entry, got %+v", entry)
	}
}

func TestReconcileMissingOutingFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	r := dex.NewReconciler(st, nil)

	_, err := r.Reconcile(context.Background(), "missing", []*store.Observation{
		{SpeciesName: "Chukar (Alectoris chukar)", Certainty: store.CertaintyConfirmed},
	})
	if err == nil {
		t.Fatal("expected error for missing outing")
	}
}

func TestReconcileConvergesAcrossPartitions(t *testing.T) {
	// The same sightings split differently across batches must end at the
	// same ledger row.
	species := "Chukar (Alectoris chukar)"
	run := func(t *testing.T, batches [][]*store.Observation) *store.DexEntry {
		cfg := testsupport.NewConfig(t)
		st := testsupport.MustOpenStore(t, cfg)
		r := dex.NewReconciler(st, nil)
		outing := newOutingWith(t, st, "2026-05-02T08:00:00Z")
		for _, batch := range batches {
			appendAndReconcile(t, st, r, outing.ID, batch)
		}
		entry, err := st.GetDexEntry(context.Background(), species)
		if err != nil {
			t.Fatalf("GetDexEntry: %v", err)
		}
		return entry
	}

	oneBatch := run(t, [][]*store.Observation{{
		{SpeciesName: species, Certainty: store.CertaintyConfirmed, Count: 1},
		{SpeciesName: species, Certainty: store.CertaintyConfirmed, Count: 2},
		{SpeciesName: species, Certainty: store.CertaintyPossible, Count: 1},
	}})
	split := run(t, [][]*store.Observation{
		{{SpeciesName: species, Certainty: store.CertaintyConfirmed, Count: 1}},
		{{SpeciesName: species, Certainty: store.CertaintyConfirmed, Count: 2}},
		{{SpeciesName: species, Certainty: store.CertaintyPossible, Count: 1}},
	})

	if oneBatch.TotalOutings != split.TotalOutings || oneBatch.TotalCount != split.TotalCount {
		t.Fatalf("ledger diverged: %+v vs %+v", oneBatch, split)
	}
	if oneBatch.TotalOutings != 1 || oneBatch.TotalCount != 4 {
		t.Fatalf("unexpected converged totals: %+v", oneBatch)
	}
}
