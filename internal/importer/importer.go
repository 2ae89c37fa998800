package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"fieldbook/internal/capture"
	"fieldbook/internal/cluster"
	"fieldbook/internal/config"
	"fieldbook/internal/dex"
	"fieldbook/internal/geo"
	"fieldbook/internal/logging"
	"fieldbook/internal/notifications"
	"fieldbook/internal/outings"
	"fieldbook/internal/services"
	"fieldbook/internal/species"
	"fieldbook/internal/store"
)

// Row is one parsed sighting line from a CSV export.
type Row struct {
	SpeciesName string
	Count       int
	Certainty   store.Certainty
	ObservedAt  time.Time
	Location    *geo.Point
	Notes       string
	line        int
}

// Result summarizes an import run.
type Result struct {
	Imported   int
	Skipped    int
	Outings    int
	NewOutings int
	NewSpecies []string
}

// Importer ingests CSV sighting logs from other tools into the same
// outing/ledger pipeline the photo workflow uses.
type Importer struct {
	cfg        *config.Config
	store      *store.Store
	normalizer *species.Normalizer
	reconciler *dex.Reconciler
	notifier   notifications.Service
	logger     *slog.Logger
}

// New wires an importer.
func New(
	cfg *config.Config,
	st *store.Store,
	normalizer *species.Normalizer,
	reconciler *dex.Reconciler,
	notifier notifications.Service,
	logger *slog.Logger,
) *Importer {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Importer{
		cfg:        cfg,
		store:      st,
		normalizer: normalizer,
		reconciler: reconciler,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "importer"),
	}
}

// Import reads CSV rows, resolves each to an outing, appends observations,
// and reconciles the ledger once per touched outing. Duplicate rows seen
// in earlier runs are skipped.
func (imp *Importer) Import(ctx context.Context, reader io.Reader) (*Result, error) {
	rows, err := ParseRows(reader)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	matchParams := outings.Params{Buffer: imp.cfg.MatchBuffer(), RadiusKM: imp.cfg.Clustering.RadiusKM}
	perOuting := make(map[string][]*store.Observation)

	existing, err := imp.store.ListOutings(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "importer", "import", "list outings", err)
	}

	for _, row := range rows {
		hash := rowHash(row)
		observedAt := row.ObservedAt
		dup, err := imp.store.FindStoredItem(ctx, hash, &observedAt)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "importer", "import", "duplicate lookup", err)
		}
		if dup != nil {
			result.Skipped++
			imp.logger.Debug("skipping previously imported row", logging.Int("line", row.line))
			continue
		}

		outing, created, err := imp.resolveOuting(ctx, row, existing, matchParams)
		if err != nil {
			return nil, err
		}
		if created {
			existing = append(existing, outing)
			result.NewOutings++
		}

		name := imp.normalizer.Normalize(row.SpeciesName)
		obs := &store.Observation{
			OutingID:    outing.ID,
			SpeciesName: name,
			Count:       row.Count,
			Certainty:   row.Certainty,
			Notes:       row.Notes,
		}
		if err := imp.store.AppendObservations(ctx, []*store.Observation{obs}); err != nil {
			return nil, services.Wrap(services.ErrTransient, "importer", "import", "append observation", err)
		}
		if _, err := imp.store.RecordStoredItem(ctx, hash, &observedAt); err != nil {
			return nil, services.Wrap(services.ErrTransient, "importer", "import", "record imported row", err)
		}

		perOuting[outing.ID] = append(perOuting[outing.ID], obs)
		result.Imported++
	}

	for outingID, batch := range perOuting {
		fresh, err := imp.reconciler.Reconcile(ctx, outingID, batch)
		if err != nil {
			return nil, err
		}
		result.NewSpecies = append(result.NewSpecies, fresh...)
	}
	result.Outings = len(perOuting)

	if len(result.NewSpecies) > 0 {
		if err := imp.notifier.NotifyNewSpecies(ctx, result.NewSpecies); err != nil {
			imp.logger.Warn("new species notification failed", logging.Error(err))
		}
	}
	if err := imp.notifier.NotifyImportCompleted(ctx, result.Imported, result.Skipped); err != nil {
		imp.logger.Warn("import notification failed", logging.Error(err))
	}

	imp.logger.Info("import complete",
		logging.Int("imported", result.Imported),
		logging.Int("skipped", result.Skipped),
		logging.Int("outings", result.Outings),
		logging.Int("new_species", len(result.NewSpecies)),
	)
	return result, nil
}

func (imp *Importer) resolveOuting(ctx context.Context, row Row, existing []*store.Outing, params outings.Params) (*store.Outing, bool, error) {
	// Each row is a zero-width cluster at its timestamp. Consecutive rows
	// from the same trip merge through the regular matcher, including into
	// outings created earlier in this run.
	c := cluster.Cluster{
		StartTime: row.ObservedAt,
		EndTime:   row.ObservedAt,
		Centroid:  row.Location,
		Items:     []capture.Item{{CapturedAt: &row.ObservedAt, Location: row.Location}},
	}
	if match := outings.FindMatch(c, existing, params); match != nil {
		start, end := outings.Widened(c, match)
		if err := imp.store.WidenOutingWindow(ctx, match.ID, start, end); err != nil {
			return nil, false, services.Wrap(services.ErrTransient, "importer", "import", "widen outing window", err)
		}
		match.StartTime = start
		match.EndTime = end
		return match, false, nil
	}

	created, err := imp.store.CreateOuting(ctx, &store.Outing{
		StartTime: row.ObservedAt,
		EndTime:   row.ObservedAt,
		Location:  row.Location,
	})
	if err != nil {
		return nil, false, services.Wrap(services.ErrTransient, "importer", "import", "create outing", err)
	}
	return created, true, nil
}

// ParseRows decodes the CSV format: species, count, certainty, observed_at,
// lat, lon, notes. A header line is recognized and skipped. Lat and lon
// must be both present or both blank.
func ParseRows(reader io.Reader) ([]Row, error) {
	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []Row
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "importer", "parse", "malformed csv", err)
		}
		line++
		if line == 1 && looksLikeHeader(record) {
			continue
		}
		row, err := parseRow(record, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func looksLikeHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "species")
}

func parseRow(record []string, line int) (Row, error) {
	fail := func(message string, err error) (Row, error) {
		return Row{}, services.Wrap(services.ErrValidation, "importer", "parse",
			fmt.Sprintf("line %d: %s", line, message), err)
	}

	if len(record) < 4 {
		return fail("expected at least species, count, certainty, observed_at", nil)
	}

	row := Row{line: line}
	row.SpeciesName = strings.TrimSpace(record[0])
	if row.SpeciesName == "" {
		return fail("species is empty", nil)
	}

	countText := strings.TrimSpace(record[1])
	if countText == "" {
		row.Count = 1
	} else {
		count, err := strconv.Atoi(countText)
		if err != nil || count <= 0 {
			return fail("count must be a positive integer", err)
		}
		row.Count = count
	}

	certainty, ok := store.ParseCertainty(record[2])
	if !ok || certainty == store.CertaintyRejected {
		return fail("certainty must be confirmed or possible", nil)
	}
	row.Certainty = certainty

	observedAt, err := parseObservedAt(record[3])
	if err != nil {
		return fail("observed_at is not a recognized timestamp", err)
	}
	row.ObservedAt = observedAt

	latText, lonText := "", ""
	if len(record) > 4 {
		latText = strings.TrimSpace(record[4])
	}
	if len(record) > 5 {
		lonText = strings.TrimSpace(record[5])
	}
	if (latText == "") != (lonText == "") {
		return fail("lat and lon must be both present or both blank", nil)
	}
	if latText != "" {
		lat, err := strconv.ParseFloat(latText, 64)
		if err != nil {
			return fail("lat is not a number", err)
		}
		lon, err := strconv.ParseFloat(lonText, 64)
		if err != nil {
			return fail("lon is not a number", err)
		}
		row.Location = &geo.Point{Lat: lat, Lon: lon}
	}

	if len(record) > 6 {
		row.Notes = strings.TrimSpace(record[6])
	}
	return row, nil
}

func parseObservedAt(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// rowHash fingerprints a row's identifying content so re-importing the same
// file is a no-op.
func rowHash(row Row) string {
	key := strings.Join([]string{
		strings.ToLower(row.SpeciesName),
		strconv.Itoa(row.Count),
		string(row.Certainty),
		row.ObservedAt.UTC().Format(time.RFC3339),
	}, "|")
	return capture.ContentHash([]byte(key))
}
