package workflow

import (
	"context"
	"log/slog"
	"time"

	"fieldbook/internal/capture"
	"fieldbook/internal/cluster"
	"fieldbook/internal/config"
	"fieldbook/internal/dex"
	"fieldbook/internal/geo"
	"fieldbook/internal/identify"
	"fieldbook/internal/logging"
	"fieldbook/internal/notifications"
	"fieldbook/internal/outings"
	"fieldbook/internal/services"
	"fieldbook/internal/species"
	"fieldbook/internal/store"
)

// Phase names the stage a batch session is in.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseClusterReview Phase = "cluster_review"
	PhaseReviewing     Phase = "reviewing"
	PhaseReconciling   Phase = "reconciling"
	PhaseComplete      Phase = "complete"
	PhaseClosed        Phase = "closed"
)

// Photo is one uploaded file entering a batch. Meta carries sidecar
// metadata when the caller already has it; otherwise the extractor runs.
type Photo struct {
	Name string
	Data []byte
	Meta *capture.Metadata
}

// ClusterProposal presents a pending cluster's window and location for
// confirmation before any outing is created or widened.
type ClusterProposal struct {
	Index     int
	Total     int
	Items     int
	StartTime time.Time
	EndTime   time.Time
	Centroid  *geo.Point
	// Match is the stored outing the cluster would merge into as proposed;
	// nil means confirming would create a new outing.
	Match *store.Outing
}

// ClusterEdit overrides parts of the pending cluster's proposal. Zero
// fields keep the proposed values.
type ClusterEdit struct {
	StartTime time.Time
	EndTime   time.Time
	Location  *geo.Point
}

// ReviewItem is what the reviewer sees for the current photo. Index and
// Total are scoped to the confirmed cluster.
type ReviewItem struct {
	Item   capture.Item
	Outing *store.Outing
	Index  int
	Total  int
}

// Summary reports what a finished batch did.
type Summary struct {
	Photos       int
	Duplicates   int
	Outings      int
	NewOutings   int
	Observations int
	NewSpecies   []string
	Elapsed      time.Duration
}

type reviewUnit struct {
	item   capture.Item
	outing *store.Outing
}

// Session drives one photo batch through cluster confirmation, per-photo
// review, and ledger reconciliation. It is single-goroutine by design;
// the CLI calls it from an interactive loop.
type Session struct {
	cfg        *config.Config
	store      *store.Store
	extractor  capture.Extractor
	identifier identify.Identifier
	normalizer *species.Normalizer
	reconciler *dex.Reconciler
	notifier   notifications.Service
	logger     *slog.Logger

	phase       Phase
	clusters    []cluster.Cluster
	clusterIdx  int
	existing    []*store.Outing
	matchParams outings.Params
	units       []reviewUnit
	cursor      int
	outing      *store.Outing
	photoData   map[string][]byte
	responses   map[string]*identify.Response
	committed   []*store.Observation
	perOuting   map[string][]*store.Observation
	pendingObs  []*store.Observation
	recordedAt  map[int]*store.Observation
	newSpecies  []string
	notified    bool
	newOutings  int
	duplicates  int
	started     time.Time
}

// NewSession wires a batch session. Extractor and identifier may be nil
// when the caller supplies sidecar metadata and reviews manually.
func NewSession(
	cfg *config.Config,
	st *store.Store,
	extractor capture.Extractor,
	identifier identify.Identifier,
	normalizer *species.Normalizer,
	reconciler *dex.Reconciler,
	notifier notifications.Service,
	logger *slog.Logger,
) *Session {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Session{
		cfg:        cfg,
		store:      st,
		extractor:  extractor,
		identifier: identifier,
		normalizer: normalizer,
		reconciler: reconciler,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "workflow"),
		phase:      PhaseIdle,
		photoData:  make(map[string][]byte),
		responses:  make(map[string]*identify.Response),
		perOuting:  make(map[string][]*store.Observation),
		recordedAt: make(map[int]*store.Observation),
	}
}

// Phase returns the session's current stage.
func (s *Session) Phase() Phase { return s.phase }

// DuplicateCount reports how many uploads were suppressed as re-uploads.
func (s *Session) DuplicateCount() int { return s.duplicates }

// HighConfidence returns the auto-advance threshold for candidate
// confidence.
func (s *Session) HighConfidence() float64 { return s.cfg.Identify.HighConfidence }

// Begin ingests the batch: extracts metadata, drops duplicate uploads,
// and clusters the remainder. No outing is created or widened yet; each
// cluster waits for confirmation via CurrentCluster/ConfirmCluster.
func (s *Session) Begin(ctx context.Context, photos []Photo) error {
	if s.phase != PhaseIdle {
		return services.Wrap(services.ErrValidation, "workflow", "begin", "session already started", nil)
	}
	if len(photos) == 0 {
		return services.Wrap(services.ErrValidation, "workflow", "begin", "no photos in batch", nil)
	}
	s.started = time.Now()

	items, err := s.ingest(ctx, photos)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		// Whole batch was re-uploads. Nothing to review.
		s.phase = PhaseComplete
		s.logger.Info("batch contained only duplicates", logging.Int("photos", len(photos)))
		return nil
	}

	params := cluster.Params{MaxGap: s.cfg.MaxGap(), RadiusKM: s.cfg.Clustering.RadiusKM}
	s.clusters = cluster.Group(items, params)

	existing, err := s.store.ListOutings(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "begin", "list outings", err)
	}
	s.existing = existing
	s.matchParams = outings.Params{Buffer: s.cfg.MatchBuffer(), RadiusKM: s.cfg.Clustering.RadiusKM}

	s.phase = PhaseClusterReview
	s.logger.Info("batch clustered",
		logging.Int("photos", len(photos)),
		logging.Int("duplicates", s.duplicates),
		logging.Int("clusters", len(s.clusters)),
	)
	return nil
}

func (s *Session) ingest(ctx context.Context, photos []Photo) ([]capture.Item, error) {
	var items []capture.Item
	for _, photo := range photos {
		meta := capture.Metadata{}
		if photo.Meta != nil {
			meta = *photo.Meta
		} else if s.extractor != nil {
			extracted, err := s.extractor.Extract(ctx, photo.Data)
			if err != nil {
				// Metadata loss degrades clustering, it does not abort the
				// batch.
				s.logger.Warn("metadata extraction failed",
					logging.String("photo", photo.Name),
					logging.Error(err))
			} else {
				meta = extracted
			}
		}

		hash := capture.ContentHash(photo.Data)
		dup, err := s.store.FindStoredItem(ctx, hash, meta.CapturedAt)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "workflow", "ingest", "duplicate lookup", err)
		}
		if dup != nil {
			s.duplicates++
			s.logger.Debug("skipping duplicate upload", logging.String("photo", photo.Name))
			continue
		}

		stored, err := s.store.RecordStoredItem(ctx, hash, meta.CapturedAt)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "workflow", "ingest", "record stored item", err)
		}

		item := capture.Item{
			ID:         stored.ID,
			Name:       photo.Name,
			Hash:       hash,
			CapturedAt: meta.CapturedAt,
			Location:   meta.Location,
		}
		s.photoData[item.ID] = photo.Data
		items = append(items, item)
	}
	return items, nil
}

// CurrentCluster returns the pending cluster's proposal, or false when no
// cluster is awaiting confirmation.
func (s *Session) CurrentCluster() (ClusterProposal, bool) {
	if s.phase != PhaseClusterReview || s.clusterIdx >= len(s.clusters) {
		return ClusterProposal{}, false
	}
	c := s.clusters[s.clusterIdx]
	return ClusterProposal{
		Index:     s.clusterIdx,
		Total:     len(s.clusters),
		Items:     len(c.Items),
		StartTime: c.StartTime,
		EndTime:   c.EndTime,
		Centroid:  c.Centroid,
		Match:     outings.FindMatch(c, s.existing, s.matchParams),
	}, true
}

// EditCluster overrides the pending cluster's proposed window or location
// before confirmation. The next CurrentCluster reflects the edit,
// including a changed merge target.
func (s *Session) EditCluster(edit ClusterEdit) error {
	if s.phase != PhaseClusterReview {
		return services.Wrap(services.ErrValidation, "workflow", "edit cluster", "no cluster awaiting confirmation", nil)
	}
	c := s.clusters[s.clusterIdx]
	if !edit.StartTime.IsZero() {
		c.StartTime = edit.StartTime
	}
	if !edit.EndTime.IsZero() {
		c.EndTime = edit.EndTime
	}
	if edit.Location != nil {
		loc := *edit.Location
		c.Centroid = &loc
	}
	if c.HasTime() && c.EndTime.Before(c.StartTime) {
		return services.Wrap(services.ErrValidation, "workflow", "edit cluster", "window end precedes start", nil)
	}
	s.clusters[s.clusterIdx] = c
	return nil
}

// ConfirmCluster accepts the pending cluster as proposed (or as edited)
// and only then resolves its outing: a match widens the stored window, no
// match creates a new outing. The session moves to per-photo review of
// the cluster's items.
func (s *Session) ConfirmCluster(ctx context.Context) error {
	if s.phase != PhaseClusterReview {
		return services.Wrap(services.ErrValidation, "workflow", "confirm cluster", "no cluster awaiting confirmation", nil)
	}
	c := s.clusters[s.clusterIdx]
	outing, err := s.resolveOuting(ctx, c)
	if err != nil {
		return err
	}

	s.outing = outing
	s.units = s.units[:0]
	for _, item := range c.Items {
		s.units = append(s.units, reviewUnit{item: item, outing: outing})
	}
	s.cursor = 0
	s.recordedAt = make(map[int]*store.Observation)
	s.phase = PhaseReviewing
	return nil
}

func (s *Session) resolveOuting(ctx context.Context, c cluster.Cluster) (*store.Outing, error) {
	if match := outings.FindMatch(c, s.existing, s.matchParams); match != nil {
		start, end := outings.Widened(c, match)
		if err := s.store.WidenOutingWindow(ctx, match.ID, start, end); err != nil {
			return nil, services.Wrap(services.ErrTransient, "workflow", "confirm cluster", "widen outing window", err)
		}
		match.StartTime = start
		match.EndTime = end
		s.logger.Debug("cluster merged into outing", logging.String("outing_id", match.ID))
		return match, nil
	}

	outing := &store.Outing{
		StartTime: c.StartTime,
		EndTime:   c.EndTime,
		Location:  c.Centroid,
	}
	created, err := s.store.CreateOuting(ctx, outing)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "workflow", "confirm cluster", "create outing", err)
	}
	s.newOutings++
	// Later clusters in the batch may merge into this one.
	s.existing = append(s.existing, created)
	s.logger.Debug("created outing for cluster", logging.String("outing_id", created.ID))
	return created, nil
}

// Current returns the item under review, or false when the session is not
// reviewing or the cluster's items are exhausted.
func (s *Session) Current() (ReviewItem, bool) {
	if s.phase != PhaseReviewing || s.cursor >= len(s.units) {
		return ReviewItem{}, false
	}
	unit := s.units[s.cursor]
	return ReviewItem{
		Item:   unit.item,
		Outing: unit.outing,
		Index:  s.cursor,
		Total:  len(s.units),
	}, true
}

// Identify fetches ranked candidates for the current photo. Responses are
// memoized per item so re-displaying a photo never re-bills the service.
func (s *Session) Identify(ctx context.Context) (*identify.Response, error) {
	unit, err := s.currentUnit()
	if err != nil {
		return nil, err
	}
	if cached, ok := s.responses[unit.item.ID]; ok {
		return cached, nil
	}
	resp, err := s.requestIdentification(ctx, unit, nil)
	if err != nil {
		return nil, err
	}
	s.responses[unit.item.ID] = resp
	return resp, nil
}

// IdentifyCropped re-runs identification on a crop of the current photo,
// replacing the memoized candidates. Used when the full frame confused the
// service.
func (s *Session) IdentifyCropped(ctx context.Context, box identify.Box) (*identify.Response, error) {
	unit, err := s.currentUnit()
	if err != nil {
		return nil, err
	}
	resp, err := s.requestIdentification(ctx, unit, &box)
	if err != nil {
		return nil, err
	}
	s.responses[unit.item.ID] = resp
	return resp, nil
}

func (s *Session) requestIdentification(ctx context.Context, unit reviewUnit, box *identify.Box) (*identify.Response, error) {
	if s.identifier == nil {
		return &identify.Response{}, nil
	}
	data, ok := s.photoData[unit.item.ID]
	if !ok {
		return &identify.Response{}, nil
	}
	resp, err := s.identifier.Identify(ctx, data, box)
	if err != nil {
		if services.Retryable(err) {
			// Service trouble falls back to manual entry for this photo.
			s.logger.Warn("identification unavailable",
				logging.String("photo", unit.item.Name),
				logging.Error(err))
			return &identify.Response{}, nil
		}
		return nil, err
	}
	return resp, nil
}

// AutoAdvance reports whether the top candidate is confident enough to
// confirm without prompting.
func (s *Session) AutoAdvance(resp *identify.Response) (identify.Candidate, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return identify.Candidate{}, false
	}
	top := resp.Candidates[0]
	threshold := s.cfg.Identify.HighConfidence
	if threshold <= 0 || top.Confidence < threshold {
		return identify.Candidate{}, false
	}
	return top, true
}

// Record commits a sighting for the current photo and advances. The raw
// species name is normalized to its canonical ledger form first.
func (s *Session) Record(ctx context.Context, rawSpecies string, count int, certainty store.Certainty, notes string) error {
	unit, err := s.currentUnit()
	if err != nil {
		return err
	}
	name := rawSpecies
	if s.normalizer != nil {
		name = s.normalizer.Normalize(rawSpecies)
	}
	if name == "" {
		return services.Wrap(services.ErrValidation, "workflow", "record", "species name is empty", nil)
	}
	if certainty != store.CertaintyConfirmed && certainty != store.CertaintyPossible {
		return services.Wrap(services.ErrValidation, "workflow", "record", "certainty must be confirmed or possible", nil)
	}
	if count <= 0 {
		count = 1
	}

	obs := &store.Observation{
		OutingID:    unit.outing.ID,
		SpeciesName: name,
		Count:       count,
		Certainty:   certainty,
		Notes:       notes,
	}
	if err := s.store.AppendObservations(ctx, []*store.Observation{obs}); err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "record", "append observation", err)
	}

	s.committed = append(s.committed, obs)
	s.perOuting[unit.outing.ID] = append(s.perOuting[unit.outing.ID], obs)
	s.pendingObs = append(s.pendingObs, obs)
	s.recordedAt[s.cursor] = obs
	s.cursor++
	s.logger.Debug("observation recorded",
		logging.String("species", name),
		logging.String("certainty", string(certainty)),
		logging.Int("count", count),
	)
	return nil
}

// Skip advances past the current photo without recording anything.
func (s *Session) Skip() error {
	if _, err := s.currentUnit(); err != nil {
		return err
	}
	s.cursor++
	return nil
}

// Back steps to the previous photo of the cluster, physically deleting
// the most recently recorded observation if the previous photo produced
// one. Review undo is last-in-first-out; earlier clusters are already
// reconciled and out of reach.
func (s *Session) Back(ctx context.Context) error {
	if s.phase != PhaseReviewing {
		return services.Wrap(services.ErrValidation, "workflow", "back", "session is not reviewing", nil)
	}
	if s.cursor == 0 {
		return services.Wrap(services.ErrValidation, "workflow", "back", "already at the cluster's first photo", nil)
	}
	s.cursor--

	undone := s.recordedAt[s.cursor]
	if undone == nil {
		// The previous photo was skipped; nothing to undo.
		return nil
	}

	if _, err := s.store.DeleteObservation(ctx, undone.ID); err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "back", "delete observation", err)
	}
	delete(s.recordedAt, s.cursor)
	if n := len(s.committed); n > 0 && s.committed[n-1].ID == undone.ID {
		s.committed = s.committed[:n-1]
	}
	if n := len(s.pendingObs); n > 0 && s.pendingObs[n-1].ID == undone.ID {
		s.pendingObs = s.pendingObs[:n-1]
	}
	batch := s.perOuting[undone.OutingID]
	if n := len(batch); n > 0 && batch[n-1].ID == undone.ID {
		s.perOuting[undone.OutingID] = batch[:n-1]
	}
	s.logger.Debug("observation undone", logging.String("species", undone.SpeciesName))
	return nil
}

// ClusterDone reports whether the current cluster's photos are exhausted.
func (s *Session) ClusterDone() bool {
	return s.phase == PhaseReviewing && s.cursor >= len(s.units)
}

// FinishCluster reconciles the cluster's recorded observations into the
// ledger, then advances to the next cluster's confirmation, or marks the
// batch complete after the last one. Reconciling at each cluster boundary
// keeps already-reviewed clusters' ledger state current even if a later
// cluster never finishes.
func (s *Session) FinishCluster(ctx context.Context) error {
	if !s.ClusterDone() {
		return services.Wrap(services.ErrValidation, "workflow", "finish cluster", "cluster review is not complete", nil)
	}
	s.phase = PhaseReconciling
	if err := s.reconcilePending(ctx); err != nil {
		return err
	}
	s.clusterIdx++
	if s.clusterIdx < len(s.clusters) {
		s.phase = PhaseClusterReview
	} else {
		s.phase = PhaseComplete
	}
	return nil
}

func (s *Session) reconcilePending(ctx context.Context) error {
	if len(s.pendingObs) == 0 {
		return nil
	}
	fresh, err := s.reconciler.Reconcile(ctx, s.outing.ID, s.pendingObs)
	if err != nil {
		s.notifyError(err, "ledger reconciliation")
		return err
	}
	s.newSpecies = append(s.newSpecies, fresh...)
	s.pendingObs = nil
	return nil
}

// Finish completes the batch after the last cluster, sending batch
// notifications and returning the summary.
func (s *Session) Finish(ctx context.Context) (*Summary, error) {
	if s.phase != PhaseComplete {
		return nil, services.Wrap(services.ErrValidation, "workflow", "finish", "batch is not complete", nil)
	}
	if len(s.clusters) > 0 {
		s.notify(ctx)
	}
	return s.summary(), nil
}

// Close ends the session at whatever state it is in. Observations already
// recorded are kept; the current cluster's unreconciled ones are folded
// into the ledger first, and unreviewed photos are abandoned.
func (s *Session) Close(ctx context.Context) (*Summary, error) {
	switch s.phase {
	case PhaseIdle, PhaseComplete, PhaseClosed:
		s.phase = PhaseClosed
		return s.summary(), nil
	}
	if err := s.reconcilePending(ctx); err != nil {
		return nil, err
	}
	if len(s.committed) > 0 {
		s.notify(ctx)
	}
	s.phase = PhaseClosed
	s.logger.Info("batch closed early",
		logging.Int("observations", len(s.committed)),
		logging.Int("clusters_reviewed", s.clusterIdx),
	)
	return s.summary(), nil
}

func (s *Session) notify(ctx context.Context) {
	if s.notified {
		return
	}
	s.notified = true

	summary := s.summary()
	if len(s.newSpecies) > 0 {
		if err := s.notifier.NotifyNewSpecies(ctx, s.newSpecies); err != nil {
			s.logger.Warn("new species notification failed", logging.Error(err))
		}
	}
	if err := s.notifier.NotifyBatchCompleted(ctx, summary.Outings, summary.Observations, len(s.newSpecies), summary.Elapsed); err != nil {
		s.logger.Warn("batch notification failed", logging.Error(err))
	}

	s.logger.Info("batch complete",
		logging.Int("observations", summary.Observations),
		logging.Int("outings", summary.Outings),
		logging.Int("new_species", len(summary.NewSpecies)),
		logging.Duration("elapsed", summary.Elapsed),
	)
}

func (s *Session) summary() *Summary {
	outingsTouched := 0
	photos := s.duplicates
	for _, c := range s.clusters {
		photos += len(c.Items)
	}
	for _, batch := range s.perOuting {
		if len(batch) > 0 {
			outingsTouched++
		}
	}
	elapsed := time.Duration(0)
	if !s.started.IsZero() {
		elapsed = time.Since(s.started)
	}
	return &Summary{
		Photos:       photos,
		Duplicates:   s.duplicates,
		Outings:      outingsTouched,
		NewOutings:   s.newOutings,
		Observations: len(s.committed),
		NewSpecies:   s.newSpecies,
		Elapsed:      elapsed,
	}
}

func (s *Session) currentUnit() (reviewUnit, error) {
	if s.phase != PhaseReviewing {
		return reviewUnit{}, services.Wrap(services.ErrValidation, "workflow", "review", "session is not reviewing", nil)
	}
	if s.cursor >= len(s.units) {
		return reviewUnit{}, services.Wrap(services.ErrValidation, "workflow", "review", "cluster review is complete", nil)
	}
	return s.units[s.cursor], nil
}

func (s *Session) notifyError(err error, label string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if notifyErr := s.notifier.NotifyError(ctx, err, label); notifyErr != nil {
		s.logger.Warn("error notification failed", logging.Error(notifyErr))
	}
}
