package insights

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/plantpulse/pulse_backend/config"
	"github.com/plantpulse/pulse_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Action category ranks. Safety always outranks everything; productivity and
// financial items share a rank and order among themselves by money at stake.
const (
	rankSafety    = 0
	rankOEE       = 1
	rankFinancial = 1
)

// Engine derives the prioritized daily action list. Items are recomputed on
// every request from stored rows; nothing here persists.
type Engine struct {
	Logger *logrus.Logger

	// FinancialThreshold is the daily loss above which an asset earns a
	// financial action item.
	FinancialThreshold decimal.Decimal
}

func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{
		Logger:             logger,
		FinancialThreshold: config.FinancialActionThreshold(),
	}
}

// DailyActions builds the action list for one calendar day: unresolved safety
// events first, then below-target OEE and costly downtime from that day's
// rollup. An empty list is a valid answer for a plant running clean.
func (e *Engine) DailyActions(ctx context.Context, day time.Time) ([]models.ActionItem, error) {
	events, err := models.UnresolvedSafetyEvents(ctx)
	if err != nil {
		return nil, err
	}
	summaries, err := models.DailySummariesOn(ctx, day)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(events)+len(summaries))
	for _, ev := range events {
		ids = append(ids, ev.AssetID)
	}
	for _, s := range summaries {
		ids = append(ids, s.AssetID)
	}
	assets, err := models.AssetsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := BuildActionItems(events, summaries, assets, e.FinancialThreshold)

	if e.Logger != nil {
		e.Logger.WithFields(logrus.Fields{
			"field": "Engine",
			"day":   day.Format("2006-01-02"),
			"items": len(items),
		}).Info("daily actions computed")
	}
	return items, nil
}

// BuildActionItems merges the three candidate sets and sorts them. Pure:
// same inputs, same list.
//
// Ordering is rank ascending, then financial impact descending, then asset
// code for a stable tie-break. An item that cannot cite at least one stored
// row is dropped rather than emitted unevidenced.
func BuildActionItems(events []models.SafetyEvent, summaries []models.DailySummary, assets map[int]models.Asset, financialThreshold decimal.Decimal) []models.ActionItem {
	items := make([]models.ActionItem, 0)

	emit := func(item models.ActionItem) {
		if len(item.Evidence) == 0 {
			return
		}
		items = append(items, item)
	}

	for _, ev := range events {
		emit(models.ActionItem{
			Category:  models.ActionCategorySafety,
			Rank:      rankSafety,
			AssetID:   ev.AssetID,
			AssetCode: ev.AssetCode,
			Title:     fmt.Sprintf("Investigate safety incident on %s", ev.AssetCode),
			Detail: fmt.Sprintf("%s at %s: %s",
				ev.ReasonCode, ev.EventTimestamp.Format(time.RFC3339), ev.Detail),
			FinancialImpact: decimal.Zero,
			Evidence: []models.EvidenceRef{{
				Table:    "safety_events",
				Column:   "reason_code",
				Value:    ev.ReasonCode,
				RecordID: strconv.Itoa(ev.ID),
			}},
		})
	}

	for _, s := range summaries {
		summaryRecordID := s.SummaryDate.Format("2006-01-02") + "/" + strconv.Itoa(s.AssetID)

		asset, registered := assets[s.AssetID]
		if registered && s.OEE.Valid && s.OEE.Decimal.LessThan(asset.TargetOEE) {
			emit(models.ActionItem{
				Category:  models.ActionCategoryOEE,
				Rank:      rankOEE,
				AssetID:   s.AssetID,
				AssetCode: s.AssetCode,
				Title:     fmt.Sprintf("Raise OEE on %s", s.AssetCode),
				Detail: fmt.Sprintf("OEE %s%% against a target of %s%%",
					s.OEE.Decimal.Round(1).String(), asset.TargetOEE.Round(1).String()),
				FinancialImpact: s.FinancialLoss,
				IsEstimated:     s.IsEstimated,
				Evidence: []models.EvidenceRef{{
					Table:    "daily_summaries",
					Column:   "oee",
					Value:    s.OEE.Decimal.String(),
					RecordID: summaryRecordID,
				}},
			})
		}

		if s.FinancialLoss.GreaterThan(financialThreshold) {
			emit(models.ActionItem{
				Category:  models.ActionCategoryFinancial,
				Rank:      rankFinancial,
				AssetID:   s.AssetID,
				AssetCode: s.AssetCode,
				Title:     fmt.Sprintf("Review downtime cost on %s", s.AssetCode),
				Detail: fmt.Sprintf("%s minutes of downtime cost %s",
					s.DowntimeMinutes.Round(0).String(), s.FinancialLoss.Round(2).String()),
				FinancialImpact: s.FinancialLoss,
				IsEstimated:     s.IsEstimated,
				Evidence: []models.EvidenceRef{{
					Table:    "daily_summaries",
					Column:   "financial_loss",
					Value:    s.FinancialLoss.String(),
					RecordID: summaryRecordID,
				}},
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Rank != items[j].Rank {
			return items[i].Rank < items[j].Rank
		}
		if !items[i].FinancialImpact.Equal(items[j].FinancialImpact) {
			return items[i].FinancialImpact.GreaterThan(items[j].FinancialImpact)
		}
		return items[i].AssetCode < items[j].AssetCode
	})
	return items
}
