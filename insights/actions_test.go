package insights

import (
	"testing"
	"time"

	"github.com/plantpulse/pulse_backend/models"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func nd(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

var testDay = time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

func TestBuildActionItems_Ordering(t *testing.T) {
	events := []models.SafetyEvent{
		{ID: 11, AssetID: 3, AssetCode: "PRESS-02", EventTimestamp: testDay.Add(9 * time.Hour), ReasonCode: models.SafetyReasonCode, Detail: "guard door open"},
	}
	summaries := []models.DailySummary{
		// Below-target OEE, modest loss.
		{SummaryDate: testDay, AssetID: 7, AssetCode: "CNC-01", OEE: nd("62.4"), DowntimeMinutes: dec("45"), FinancialLoss: dec("750")},
		// Big loss, OEE fine.
		{SummaryDate: testDay, AssetID: 9, AssetCode: "WELD-04", OEE: nd("92"), DowntimeMinutes: dec("120"), FinancialLoss: dec("5000")},
	}
	assets := map[int]models.Asset{
		3: {ID: 3, Code: "PRESS-02", TargetOEE: dec("85")},
		7: {ID: 7, Code: "CNC-01", TargetOEE: dec("85")},
		9: {ID: 9, Code: "WELD-04", TargetOEE: dec("85")},
	}

	items := BuildActionItems(events, summaries, assets, dec("1000"))
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d: %+v", len(items), items)
	}

	// Safety outranks everything regardless of money.
	if items[0].Category != models.ActionCategorySafety || items[0].AssetCode != "PRESS-02" {
		t.Fatalf("expected safety item first, got %+v", items[0])
	}
	// Among rank-1 items the larger financial impact wins.
	if items[1].Category != models.ActionCategoryFinancial || items[1].AssetCode != "WELD-04" {
		t.Fatalf("expected financial item second, got %+v", items[1])
	}
	if items[2].Category != models.ActionCategoryOEE || items[2].AssetCode != "CNC-01" {
		t.Fatalf("expected oee item third, got %+v", items[2])
	}
}

func TestBuildActionItems_EveryItemCarriesEvidence(t *testing.T) {
	events := []models.SafetyEvent{
		{ID: 11, AssetID: 3, AssetCode: "PRESS-02", EventTimestamp: testDay, ReasonCode: models.SafetyReasonCode},
	}
	summaries := []models.DailySummary{
		{SummaryDate: testDay, AssetID: 7, AssetCode: "CNC-01", OEE: nd("40"), FinancialLoss: dec("2000")},
	}
	assets := map[int]models.Asset{
		3: {ID: 3, Code: "PRESS-02", TargetOEE: dec("85")},
		7: {ID: 7, Code: "CNC-01", TargetOEE: dec("85")},
	}

	for _, item := range BuildActionItems(events, summaries, assets, dec("1000")) {
		if len(item.Evidence) == 0 {
			t.Fatalf("item without evidence emitted: %+v", item)
		}
		for _, ref := range item.Evidence {
			if ref.Table == "" || ref.Column == "" || ref.RecordID == "" {
				t.Fatalf("incomplete evidence ref: %+v", ref)
			}
		}
	}
}

func TestBuildActionItems_ThresholdIsExclusive(t *testing.T) {
	summaries := []models.DailySummary{
		{SummaryDate: testDay, AssetID: 7, AssetCode: "CNC-01", OEE: nd("95"), FinancialLoss: dec("1000")},
	}
	assets := map[int]models.Asset{7: {ID: 7, Code: "CNC-01", TargetOEE: dec("85")}}

	if items := BuildActionItems(nil, summaries, assets, dec("1000")); len(items) != 0 {
		t.Fatalf("loss equal to threshold must not emit an item, got %+v", items)
	}
}

func TestBuildActionItems_NullOEENeverFlagged(t *testing.T) {
	summaries := []models.DailySummary{
		{SummaryDate: testDay, AssetID: 7, AssetCode: "CNC-01", OEE: decimal.NullDecimal{}, FinancialLoss: dec("0")},
	}
	assets := map[int]models.Asset{7: {ID: 7, Code: "CNC-01", TargetOEE: dec("85")}}

	if items := BuildActionItems(nil, summaries, assets, dec("1000")); len(items) != 0 {
		t.Fatalf("null OEE must not produce an oee item, got %+v", items)
	}
}

func TestBuildActionItems_EstimatedFlagPropagates(t *testing.T) {
	summaries := []models.DailySummary{
		{SummaryDate: testDay, AssetID: 7, AssetCode: "CNC-01", OEE: nd("95"), FinancialLoss: dec("3000"), IsEstimated: true},
	}
	assets := map[int]models.Asset{7: {ID: 7, Code: "CNC-01", TargetOEE: dec("85")}}

	items := BuildActionItems(nil, summaries, assets, dec("1000"))
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if !items[0].IsEstimated {
		t.Fatal("expected estimated flag on item computed with default rate")
	}
}

func TestBuildActionItems_EmptyInputsEmptyList(t *testing.T) {
	items := BuildActionItems(nil, nil, nil, dec("1000"))
	if items == nil {
		t.Fatal("expected empty slice, not nil")
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestBuildActionItems_Rank1TieBreaksOnAssetCode(t *testing.T) {
	summaries := []models.DailySummary{
		{SummaryDate: testDay, AssetID: 9, AssetCode: "WELD-04", OEE: nd("95"), FinancialLoss: dec("2000")},
		{SummaryDate: testDay, AssetID: 7, AssetCode: "CNC-01", OEE: nd("95"), FinancialLoss: dec("2000")},
	}
	assets := map[int]models.Asset{
		7: {ID: 7, Code: "CNC-01", TargetOEE: dec("85")},
		9: {ID: 9, Code: "WELD-04", TargetOEE: dec("85")},
	}

	items := BuildActionItems(nil, summaries, assets, dec("1000"))
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].AssetCode != "CNC-01" || items[1].AssetCode != "WELD-04" {
		t.Fatalf("expected asset-code tie-break, got %s then %s", items[0].AssetCode, items[1].AssetCode)
	}
}
