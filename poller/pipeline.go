package poller

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/plantpulse/pulse_backend/config"
	"github.com/plantpulse/pulse_backend/models"
	"github.com/plantpulse/pulse_backend/utils"
	"github.com/sirupsen/logrus"
)

// Pipeline runs one full poll cycle: fetch a trailing window from the
// historian, transform it into snapshots, detect safety incidents, persist,
// then purge expired snapshots. Each run carries a fresh run id so every log
// line of one cycle can be correlated.
type Pipeline struct {
	Fetcher     *Fetcher
	Transformer *Transformer
	Detector    *Detector
	Store       *Store
	Logger      *logrus.Logger

	Window       time.Duration
	FetchTimeout time.Duration

	// InvalidateSummary drops today's cached narrative after new snapshots
	// land. Optional; nil means no cache to invalidate.
	InvalidateSummary func(ctx context.Context) error
}

// RunReport is what one completed (or failed) cycle hands back to the
// scheduler for the status surface.
type RunReport struct {
	RunId         string
	Snapshots     int
	SafetyEvents  int
	PurgedRows    int64
	PersistResult PersistResult
}

// Run executes one cycle. A transient fetch failure aborts the cycle cleanly
// with nothing written; the next natural tick retries. Persistence and
// cleanup failures are reported but never abort each other.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{RunId: uuid.New().String()}
	ctx = utils.SetRunIdInContext(ctx, report.RunId)

	log := p.Logger.WithFields(logrus.Fields{
		"field":  "Pipeline",
		"run_id": report.RunId,
	})

	assets, err := models.GetActiveAssets(ctx)
	if err != nil {
		log.Error("failed to load asset registry: " + err.Error())
		return report, err
	}
	assetsByCode := make(map[string]models.Asset, len(assets))
	for _, a := range assets {
		assetsByCode[a.Code] = a
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.FetchTimeout)
	defer cancel()
	batch, err := p.Fetcher.Fetch(fetchCtx, p.Window, AllCategories())
	if err != nil {
		if errors.Is(err, utils.ErrorTransientFetch) {
			log.Warn("transient fetch failure, skipping cycle: " + err.Error())
		} else {
			log.Error("fetch failed: " + err.Error())
		}
		return report, err
	}

	snapshots := p.Transformer.Transform(batch, assetsByCode)
	report.Snapshots = len(snapshots)

	created, err := p.Detector.Detect(ctx, batch.Downtime, assetsByCode)
	if err != nil {
		// Detection trouble must not block snapshot persistence.
		log.Error("safety detection failed: " + err.Error())
	}
	report.SafetyEvents = created

	report.PersistResult = p.Store.SaveSnapshots(ctx, snapshots)

	purged, err := p.Store.Cleanup(ctx)
	if err == nil {
		report.PurgedRows = purged
	}

	if report.PersistResult.Outcome != PersistExhausted && p.InvalidateSummary != nil {
		if err := p.InvalidateSummary(ctx); err != nil {
			log.Warn("failed to invalidate summary cache: " + err.Error())
		}
	}

	log.WithFields(logrus.Fields{
		"snapshots":       report.Snapshots,
		"safety_events":   report.SafetyEvents,
		"purged_rows":     report.PurgedRows,
		"persist_outcome": string(report.PersistResult.Outcome),
		"window_start":    batch.WindowStart.Format(time.RFC3339),
		"window_end":      batch.WindowEnd.Format(time.RFC3339),
	}).Info("poll cycle complete")

	if report.PersistResult.Outcome == PersistExhausted {
		return report, report.PersistResult.Err
	}
	return report, nil
}

// NewPipeline wires the default production pipeline on the shared
// connections.
func NewPipeline(logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		Fetcher:      NewFetcher(config.GetHistorianDB(), logger),
		Transformer:  NewTransformer(logger),
		Detector:     NewDetector(config.GetDB(), logger),
		Store:        NewStore(config.GetDB(), logger, config.SnapshotRetention()),
		Logger:       logger,
		Window:       config.RollingWindow(),
		FetchTimeout: config.PollTimeout(),
	}
}
