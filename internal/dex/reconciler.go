package dex

import (
	"context"
	"log/slog"
	"sort"

	"fieldbook/internal/logging"
	"fieldbook/internal/services"
	"fieldbook/internal/store"
)

// Reconciler folds freshly appended observations into the persistent
// species ledger.
type Reconciler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewReconciler wires a reconciler to the store.
func NewReconciler(st *store.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{
		store:  st,
		logger: logging.NewComponentLogger(logger, "dex"),
	}
}

// Reconcile applies a batch of observations that were just appended to the
// named outing and returns the canonical names of species recorded for the
// first time ever. Rejected observations are skipped. The fold is
// idempotent at the outing level: a species' TotalOutings rises only when
// the outing previously held no confirmed observation of it.
func (r *Reconciler) Reconcile(ctx context.Context, outingID string, observations []*store.Observation) ([]string, error) {
	outing, err := r.store.GetOuting(ctx, outingID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "dex", "reconcile", "load outing", err)
	}
	if outing == nil {
		return nil, services.Wrap(services.ErrNotFound, "dex", "reconcile", "outing "+outingID+" does not exist", nil)
	}

	type speciesBatch struct {
		events         []Event
		batchConfirmed int
	}
	batches := make(map[string]*speciesBatch)
	var order []string
	for _, obs := range observations {
		if obs == nil || obs.Certainty == store.CertaintyRejected {
			continue
		}
		batch := batches[obs.SpeciesName]
		if batch == nil {
			batch = &speciesBatch{}
			batches[obs.SpeciesName] = batch
			order = append(order, obs.SpeciesName)
		}
		count := obs.Count
		if count <= 0 {
			count = 1
		}
		confirmed := obs.Certainty == store.CertaintyConfirmed
		if confirmed {
			batch.batchConfirmed++
		}
		batch.events = append(batch.events, Event{
			SpeciesName: obs.SpeciesName,
			SeenAt:      outing.StartTime,
			Count:       count,
			Confirmed:   confirmed,
		})
	}
	sort.Strings(order)

	var newSpecies []string
	for _, name := range order {
		batch := batches[name]

		storedConfirmed, err := r.store.CountConfirmedObservations(ctx, outingID, name)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "dex", "reconcile", "count confirmed observations", err)
		}
		// Observations are appended before reconciliation runs, so the
		// stored count already includes this batch. Subtract it to learn
		// whether the outing had the species confirmed beforehand.
		priorConfirmed := storedConfirmed - batch.batchConfirmed
		if priorConfirmed < 0 {
			priorConfirmed = 0
		}

		entry, err := r.store.GetDexEntry(ctx, name)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "dex", "reconcile", "load dex entry", err)
		}
		if entry == nil {
			newSpecies = append(newSpecies, name)
		}

		creditOuting := priorConfirmed == 0
		for _, event := range batch.events {
			if event.Confirmed && creditOuting {
				event.FirstForOuting = true
				creditOuting = false
			}
			next := Fold(entry, event)
			entry = &next
		}

		if entry != nil {
			if err := r.store.UpsertDexEntry(ctx, entry); err != nil {
				return nil, services.Wrap(services.ErrTransient, "dex", "reconcile", "persist dex entry", err)
			}
			r.logger.Debug("ledger updated",
				logging.String("species", name),
				logging.Int("total_count", entry.TotalCount),
				logging.Int("total_outings", entry.TotalOutings),
			)
		}
	}

	if len(newSpecies) > 0 {
		r.logger.Info("new species recorded",
			logging.Int("count", len(newSpecies)),
			logging.Any("species", newSpecies),
		)
	}
	return newSpecies, nil
}
