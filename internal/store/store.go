package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fieldbook/internal/config"
	"fieldbook/internal/geo"
)

// Store manages sighting persistence backed by SQLite. A file lock taken at
// open time enforces a single writer per data directory, which is what keeps
// the ledger's read-modify-write reconciliation serialized.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// ErrLocked indicates another fieldbook process holds the data directory.
var ErrLocked = errors.New("data directory is locked by another fieldbook process")

// Open initializes or connects to the sightings database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "fieldbook.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire data lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "fieldbook.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, lock: lock}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection and releases the directory lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	return err
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// CreateOuting persists a new outing, assigning id and created_at when
// unset, and returns the stored record.
func (s *Store) CreateOuting(ctx context.Context, outing *Outing) (*Outing, error) {
	if outing == nil {
		return nil, errors.New("outing is nil")
	}
	if outing.ID == "" {
		outing.ID = uuid.NewString()
	}
	if outing.CreatedAt.IsZero() {
		outing.CreatedAt = time.Now().UTC()
	}

	var lat, lon any
	if outing.Location != nil {
		lat = outing.Location.Lat
		lon = outing.Location.Lon
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO outings (
            id, start_time, end_time, location_name, editable_location_name,
            lat, lon, notes, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		outing.ID,
		formatTime(outing.StartTime),
		formatTime(outing.EndTime),
		nullableString(outing.LocationName),
		nullableString(outing.EditableLocationName),
		lat,
		lon,
		nullableString(outing.Notes),
		formatTime(outing.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert outing: %w", err)
	}
	return s.GetOuting(ctx, outing.ID)
}

// GetOuting fetches an outing by identifier. Returns nil when absent.
func (s *Store) GetOuting(ctx context.Context, id string) (*Outing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+outingColumns+` FROM outings WHERE id = ?`, id)
	outing, err := scanOuting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get outing: %w", err)
	}
	return outing, nil
}

// ListOutings returns all outings ordered by start time.
func (s *Store) ListOutings(ctx context.Context) ([]*Outing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+outingColumns+` FROM outings ORDER BY start_time, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list outings: %w", err)
	}
	defer rows.Close()

	var outings []*Outing
	for rows.Next() {
		outing, err := scanOuting(rows)
		if err != nil {
			return nil, err
		}
		outings = append(outings, outing)
	}
	return outings, rows.Err()
}

// WidenOutingWindow extends an outing's stored window to the union of the
// old and new windows. The window never shrinks and no other field changes.
func (s *Store) WidenOutingWindow(ctx context.Context, id string, start, end time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin widen tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT start_time, end_time FROM outings WHERE id = ?`, id)
	var startRaw, endRaw string
	if err := row.Scan(&startRaw, &endRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("widen outing window: outing %s not found", id)
		}
		return fmt.Errorf("read outing window: %w", err)
	}

	current := timeWindow(startRaw, endRaw)
	if !start.IsZero() && (current.start.IsZero() || start.Before(current.start)) {
		current.start = start
	}
	if !end.IsZero() && (current.end.IsZero() || end.After(current.end)) {
		current.end = end
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE outings SET start_time = ?, end_time = ? WHERE id = ?`,
		formatTime(current.start),
		formatTime(current.end),
		id,
	); err != nil {
		return fmt.Errorf("widen outing window: %w", err)
	}
	return tx.Commit()
}

// UpdateOutingDetails changes display fields only: the editable location
// name and notes. Identity and window are untouched.
func (s *Store) UpdateOutingDetails(ctx context.Context, id, editableLocationName, notes string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE outings SET editable_location_name = ?, notes = ? WHERE id = ?`,
		nullableString(editableLocationName),
		nullableString(notes),
		id,
	)
	if err != nil {
		return fmt.Errorf("update outing details: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update outing details: outing %s not found", id)
	}
	return nil
}

// AppendObservations persists a batch of observations, assigning ids and
// created_at where unset.
func (s *Store) AppendObservations(ctx context.Context, observations []*Observation) error {
	if len(observations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, obs := range observations {
		if obs == nil {
			return errors.New("observation is nil")
		}
		if obs.ID == "" {
			obs.ID = uuid.NewString()
		}
		if obs.CreatedAt.IsZero() {
			obs.CreatedAt = time.Now().UTC()
		}
		if obs.Count <= 0 {
			obs.Count = 1
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO observations (
                id, outing_id, species_name, count, certainty, notes, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			obs.ID,
			obs.OutingID,
			obs.SpeciesName,
			obs.Count,
			string(obs.Certainty),
			nullableString(obs.Notes),
			formatTime(obs.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteObservation removes an observation by identifier. Used only by
// workflow back-navigation; user-facing rejection goes through certainty.
func (s *Store) DeleteObservation(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM observations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete observation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkObservationRejected soft-deletes an observation, preserving it for
// audit history.
func (s *Store) MarkObservationRejected(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE observations SET certainty = ? WHERE id = ?`,
		string(CertaintyRejected),
		id,
	)
	if err != nil {
		return fmt.Errorf("reject observation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("reject observation: observation %s not found", id)
	}
	return nil
}

// ObservationsForOuting returns an outing's observations in creation order.
func (s *Store) ObservationsForOuting(ctx context.Context, outingID string) ([]*Observation, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+observationColumns+` FROM observations WHERE outing_id = ? ORDER BY created_at, id`,
		outingID,
	)
	if err != nil {
		return nil, fmt.Errorf("observations for outing: %w", err)
	}
	defer rows.Close()

	var observations []*Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// ObservationsForSpecies returns every observation of a canonical species
// name across all outings, newest first.
func (s *Store) ObservationsForSpecies(ctx context.Context, speciesName string) ([]*Observation, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+observationColumns+` FROM observations WHERE species_name = ? ORDER BY created_at DESC, id`,
		speciesName,
	)
	if err != nil {
		return nil, fmt.Errorf("observations for species: %w", err)
	}
	defer rows.Close()

	var observations []*Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// CountConfirmedObservations returns how many confirmed observations of a
// species are stored for an outing.
func (s *Store) CountConfirmedObservations(ctx context.Context, outingID, speciesName string) (int, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM observations WHERE outing_id = ? AND species_name = ? AND certainty = ?`,
		outingID,
		speciesName,
		string(CertaintyConfirmed),
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count confirmed observations: %w", err)
	}
	return count, nil
}

// GetDexEntry fetches a ledger row by canonical species name. Returns nil
// when the species has never been recorded.
func (s *Store) GetDexEntry(ctx context.Context, speciesName string) (*DexEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+dexColumns+` FROM dex_entries WHERE species_name = ?`, speciesName)
	entry, err := scanDexEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dex entry: %w", err)
	}
	return entry, nil
}

// UpsertDexEntry writes a ledger row, replacing any prior value for the
// species.
func (s *Store) UpsertDexEntry(ctx context.Context, entry *DexEntry) error {
	if entry == nil {
		return errors.New("dex entry is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO dex_entries (
            species_name, first_seen, last_seen, added_at, total_outings, total_count, notes
        ) VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(species_name) DO UPDATE SET
            first_seen = excluded.first_seen,
            last_seen = excluded.last_seen,
            total_outings = excluded.total_outings,
            total_count = excluded.total_count,
            notes = excluded.notes`,
		entry.SpeciesName,
		formatTime(entry.FirstSeen),
		formatTime(entry.LastSeen),
		formatTime(entry.AddedAt),
		entry.TotalOutings,
		entry.TotalCount,
		nullableString(entry.Notes),
	)
	if err != nil {
		return fmt.Errorf("upsert dex entry: %w", err)
	}
	return nil
}

// ListDexEntries returns the full ledger ordered by species name.
func (s *Store) ListDexEntries(ctx context.Context) ([]*DexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+dexColumns+` FROM dex_entries ORDER BY species_name`)
	if err != nil {
		return nil, fmt.Errorf("list dex entries: %w", err)
	}
	defer rows.Close()

	var entries []*DexEntry
	for rows.Next() {
		entry, err := scanDexEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// FindStoredItem returns a previously ingested item with the same content
// hash and capture time, or nil. Consulted once per captured item before
// clustering to suppress duplicate uploads.
func (s *Store) FindStoredItem(ctx context.Context, hash string, capturedAt *time.Time) (*StoredItem, error) {
	var (
		row *sql.Row
	)
	if capturedAt == nil {
		row = s.db.QueryRowContext(
			ctx,
			`SELECT id, content_hash, captured_at, created_at FROM stored_items
             WHERE content_hash = ? AND captured_at IS NULL LIMIT 1`,
			hash,
		)
	} else {
		row = s.db.QueryRowContext(
			ctx,
			`SELECT id, content_hash, captured_at, created_at FROM stored_items
             WHERE content_hash = ? AND captured_at = ? LIMIT 1`,
			hash,
			formatTime(capturedAt.UTC()),
		)
	}

	item, err := scanStoredItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find stored item: %w", err)
	}
	return item, nil
}

// RecordStoredItem remembers an ingested capture for future duplicate
// checks.
func (s *Store) RecordStoredItem(ctx context.Context, hash string, capturedAt *time.Time) (*StoredItem, error) {
	item := &StoredItem{
		ID:        uuid.NewString(),
		Hash:      hash,
		CreatedAt: time.Now().UTC(),
	}
	var capturedRaw any
	if capturedAt != nil {
		at := capturedAt.UTC()
		item.CapturedAt = &at
		capturedRaw = formatTime(at)
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO stored_items (id, content_hash, captured_at, created_at) VALUES (?, ?, ?, ?)`,
		item.ID,
		item.Hash,
		capturedRaw,
		formatTime(item.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("record stored item: %w", err)
	}
	return item, nil
}

const outingColumns = "id, start_time, end_time, location_name, editable_location_name, lat, lon, notes, created_at"

const observationColumns = "id, outing_id, species_name, count, certainty, notes, created_at"

const dexColumns = "species_name, first_seen, last_seen, added_at, total_outings, total_count, notes"

type window struct {
	start time.Time
	end   time.Time
}

func timeWindow(startRaw, endRaw string) window {
	var w window
	if t, err := parseTimeString(startRaw); err == nil {
		w.start = t
	}
	if t, err := parseTimeString(endRaw); err == nil {
		w.end = t
	}
	return w
}

func scanOuting(scanner interface{ Scan(dest ...any) error }) (*Outing, error) {
	var (
		id           string
		startRaw     sql.NullString
		endRaw       sql.NullString
		locationName sql.NullString
		editableName sql.NullString
		lat          sql.NullFloat64
		lon          sql.NullFloat64
		notes        sql.NullString
		createdRaw   sql.NullString
	)

	if err := scanner.Scan(&id, &startRaw, &endRaw, &locationName, &editableName, &lat, &lon, &notes, &createdRaw); err != nil {
		return nil, err
	}

	outing := &Outing{
		ID:                   id,
		LocationName:         locationName.String,
		EditableLocationName: editableName.String,
		Notes:                notes.String,
	}
	if lat.Valid && lon.Valid {
		outing.Location = &geo.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	if t, err := parseTimeString(startRaw.String); err == nil {
		outing.StartTime = t
	}
	if t, err := parseTimeString(endRaw.String); err == nil {
		outing.EndTime = t
	}
	if t, err := parseTimeString(createdRaw.String); err == nil {
		outing.CreatedAt = t
	}
	return outing, nil
}

func scanObservation(scanner interface{ Scan(dest ...any) error }) (*Observation, error) {
	var (
		id         string
		outingID   string
		species    string
		count      int
		certainty  string
		notes      sql.NullString
		createdRaw sql.NullString
	)

	if err := scanner.Scan(&id, &outingID, &species, &count, &certainty, &notes, &createdRaw); err != nil {
		return nil, err
	}

	obs := &Observation{
		ID:          id,
		OutingID:    outingID,
		SpeciesName: species,
		Count:       count,
		Certainty:   Certainty(certainty),
		Notes:       notes.String,
	}
	if t, err := parseTimeString(createdRaw.String); err == nil {
		obs.CreatedAt = t
	}
	return obs, nil
}

func scanDexEntry(scanner interface{ Scan(dest ...any) error }) (*DexEntry, error) {
	var (
		species      string
		firstRaw     sql.NullString
		lastRaw      sql.NullString
		addedRaw     sql.NullString
		totalOutings int
		totalCount   int
		notes        sql.NullString
	)

	if err := scanner.Scan(&species, &firstRaw, &lastRaw, &addedRaw, &totalOutings, &totalCount, &notes); err != nil {
		return nil, err
	}

	entry := &DexEntry{
		SpeciesName:  species,
		TotalOutings: totalOutings,
		TotalCount:   totalCount,
		Notes:        notes.String,
	}
	if t, err := parseTimeString(firstRaw.String); err == nil {
		entry.FirstSeen = t
	}
	if t, err := parseTimeString(lastRaw.String); err == nil {
		entry.LastSeen = t
	}
	if t, err := parseTimeString(addedRaw.String); err == nil {
		entry.AddedAt = t
	}
	return entry, nil
}

func scanStoredItem(scanner interface{ Scan(dest ...any) error }) (*StoredItem, error) {
	var (
		id          string
		hash        string
		capturedRaw sql.NullString
		createdRaw  sql.NullString
	)

	if err := scanner.Scan(&id, &hash, &capturedRaw, &createdRaw); err != nil {
		return nil, err
	}

	item := &StoredItem{ID: id, Hash: hash}
	if capturedRaw.Valid {
		if t, err := parseTimeString(capturedRaw.String); err == nil {
			item.CapturedAt = &t
		}
	}
	if t, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = t
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
