// daily-rollup aggregates one calendar day of historian rows into
// daily_summaries, one row per asset. The upsert converges on the composite
// key (summary_date, asset_id), so re-running a day is safe. After writing it
// drops that day's cached narrative so the next summary request rebuilds from
// fresh figures.
//
// Usage:
//
//	go run ./cmd/daily-rollup -date 2026-08-23
//
// Without -date the rollup covers yesterday (UTC), matching a
// just-after-midnight cron slot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/plantpulse/pulse_backend/config"
	"github.com/plantpulse/pulse_backend/insights"
	"github.com/plantpulse/pulse_backend/models"
	"github.com/plantpulse/pulse_backend/poller"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type dayTotals struct {
	downtimeMinutes decimal.Decimal
	totalOutput     decimal.Decimal
	targetOutput    decimal.Decimal
	goodUnits       decimal.Decimal
	totalUnits      decimal.Decimal

	plannedMinutes  decimal.Decimal
	oeeDowntime     decimal.Decimal
	oeeTotalUnits   decimal.Decimal
	oeeGoodUnits    decimal.Decimal
	idealRatePerMin decimal.Decimal
	oeeRows         int
}

func main() {
	dateFlag := flag.String("date", "", "Day to roll up (YYYY-MM-DD). Defaults to yesterday UTC.")
	flag.Parse()

	logger := config.GetLogger()

	day := time.Now().UTC().Truncate(24 * time.Hour).Add(-24 * time.Hour)
	if *dateFlag != "" {
		parsed, err := time.Parse("2006-01-02", *dateFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -date %q: %v\n", *dateFlag, err)
			os.Exit(2)
		}
		day = parsed.UTC()
	}
	start := day
	end := start.Add(24 * time.Hour)

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectHistorianWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil || config.GetHistorianDB() == nil {
		fmt.Fprintln(os.Stderr, "databases not initialized; set DB_* and HISTORIAN_* env vars")
		os.Exit(1)
	}
	models.MigrateTable()

	summaries, err := rollupDay(ctx, logger, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rollup failed: %v\n", err)
		os.Exit(1)
	}

	if err := models.UpsertDailySummaries(ctx, summaries); err != nil {
		fmt.Fprintf(os.Stderr, "failed to upsert daily summaries: %v\n", err)
		os.Exit(1)
	}
	if err := insights.InvalidateDailySummaryCache(ctx, start); err != nil {
		logger.WithFields(logrus.Fields{
			"field": "daily-rollup",
			"date":  start.Format("2006-01-02"),
		}).Warn("failed to invalidate narrative cache: " + err.Error())
	}

	logger.WithFields(logrus.Fields{
		"field":  "daily-rollup",
		"date":   start.Format("2006-01-02"),
		"assets": len(summaries),
	}).Info("daily rollup complete")
	fmt.Printf("Rolled up %d asset(s) for %s\n", len(summaries), start.Format("2006-01-02"))
}

func rollupDay(ctx context.Context, logger *logrus.Logger, start, end time.Time) ([]models.DailySummary, error) {
	historian := config.GetHistorianDB()

	var outputRows []poller.OutputRow
	if err := historian.WithContext(ctx).
		Where("recorded_at >= ? AND recorded_at < ?", start, end).
		Find(&outputRows).Error; err != nil {
		return nil, fmt.Errorf("fetch output rows: %w", err)
	}
	var downtimeRows []poller.DowntimeRow
	if err := historian.WithContext(ctx).
		Where("started_at >= ? AND started_at < ?", start, end).
		Find(&downtimeRows).Error; err != nil {
		return nil, fmt.Errorf("fetch downtime rows: %w", err)
	}
	var oeeRows []poller.OEERow
	if err := historian.WithContext(ctx).
		Where("recorded_at >= ? AND recorded_at < ?", start, end).
		Find(&oeeRows).Error; err != nil {
		return nil, fmt.Errorf("fetch oee rows: %w", err)
	}
	var qualityRows []poller.QualityRow
	if err := historian.WithContext(ctx).
		Where("recorded_at >= ? AND recorded_at < ?", start, end).
		Find(&qualityRows).Error; err != nil {
		return nil, fmt.Errorf("fetch quality rows: %w", err)
	}

	assets, err := models.GetActiveAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load asset registry: %w", err)
	}
	assetsByCode := make(map[string]models.Asset, len(assets))
	for _, a := range assets {
		assetsByCode[a.Code] = a
	}

	totals := make(map[string]*dayTotals)
	get := func(code string) *dayTotals {
		t, ok := totals[code]
		if !ok {
			t = &dayTotals{}
			totals[code] = t
		}
		return t
	}

	for _, row := range outputRows {
		t := get(row.AssetCode)
		t.totalOutput = t.totalOutput.Add(row.ActualOutput)
		t.targetOutput = t.targetOutput.Add(row.TargetOutput)
	}
	for _, row := range downtimeRows {
		get(row.AssetCode).downtimeMinutes = get(row.AssetCode).downtimeMinutes.Add(row.Minutes)
	}
	for _, row := range qualityRows {
		t := get(row.AssetCode)
		t.goodUnits = t.goodUnits.Add(row.GoodUnits)
		t.totalUnits = t.totalUnits.Add(row.TotalUnits)
	}
	for _, row := range oeeRows {
		t := get(row.AssetCode)
		t.plannedMinutes = t.plannedMinutes.Add(row.PlannedMinutes)
		t.oeeDowntime = t.oeeDowntime.Add(row.DowntimeMinutes)
		t.oeeTotalUnits = t.oeeTotalUnits.Add(row.TotalUnits)
		t.oeeGoodUnits = t.oeeGoodUnits.Add(row.GoodUnits)
		t.idealRatePerMin = t.idealRatePerMin.Add(row.IdealRatePerMinute)
		t.oeeRows++
	}

	summaries := make([]models.DailySummary, 0, len(totals))
	for code, t := range totals {
		asset, ok := assetsByCode[code]
		if !ok {
			logger.WithFields(logrus.Fields{
				"field":      "daily-rollup",
				"asset_code": code,
			}).Warn("skipping rows for unregistered asset")
			continue
		}

		runtime := t.plannedMinutes.Sub(t.oeeDowntime)
		availability := poller.ComputeAvailability(t.plannedMinutes, t.oeeDowntime)

		// Rates arrive per interval row; average them before scaling by the
		// day's runtime.
		var performance, quality, oee decimal.NullDecimal
		if t.oeeRows > 0 {
			avgRate := t.idealRatePerMin.Div(decimal.NewFromInt(int64(t.oeeRows)))
			performance = poller.ComputePerformance(t.oeeTotalUnits, avgRate, runtime)
			quality = poller.ComputeQuality(t.oeeGoodUnits, t.oeeTotalUnits)
			oee = poller.ComputeOEE(availability, performance, quality)
		}

		rate, estimated, err := models.HourlyRateForAsset(ctx, asset.ID)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field":      "daily-rollup",
				"asset_code": code,
			}).Warn("cost center lookup failed, using default rate: " + err.Error())
		}
		loss := poller.ComputeFinancialLoss(t.downtimeMinutes, rate)

		summaries = append(summaries, models.DailySummary{
			SummaryDate:     start,
			AssetID:         asset.ID,
			AssetCode:       asset.Code,
			RuntimeMinutes:  runtime,
			DowntimeMinutes: t.downtimeMinutes,
			TotalOutput:     t.totalOutput,
			GoodOutput:      t.goodUnits,
			TargetOutput:    t.targetOutput,
			Availability:    availability,
			Performance:     performance,
			Quality:         quality,
			OEE:             oee,
			FinancialLoss:   loss,
			IsEstimated:     estimated,
		})
	}
	return summaries, nil
}
