package insights

import (
	"strings"
	"testing"
	"time"

	"github.com/plantpulse/pulse_backend/models"
)

func TestBuildFallbackSummary_NoData(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	got := BuildFallbackSummary(day, nil, nil, nil)
	want := "No production data was recorded for 2026-08-24."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestBuildFallbackSummary_IncidentBranchLeadsWithSafety(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	events := []models.SafetyEvent{
		{ID: 1, AssetID: 3, AssetCode: "PRESS-02", EventTimestamp: day.Add(9 * time.Hour), ReasonCode: models.SafetyReasonCode, Detail: "guard door open"},
	}
	summaries := []models.DailySummary{
		{SummaryDate: day, AssetID: 3, AssetCode: "PRESS-02", DowntimeMinutes: dec("90"), FinancialLoss: dec("375")},
	}

	actions := BuildActionItems(events, summaries, nil, dec("1000"))

	got := BuildFallbackSummary(day, summaries, events, actions)
	if !strings.HasPrefix(got, "1 safety incident(s) were recorded on 2026-08-24 (PRESS-02)") {
		t.Fatalf("expected incident-first narrative, got %q", got)
	}
	if !strings.Contains(got, "combined downtime loss of 375") {
		t.Fatalf("expected loss figure carried through, got %q", got)
	}
	if !strings.Contains(got, "Recommended actions, in priority order: Investigate safety incident on PRESS-02") {
		t.Fatalf("expected safety action recommended first, got %q", got)
	}
}

func TestBuildFallbackSummary_CleanDayBranch(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	summaries := []models.DailySummary{
		{SummaryDate: day, AssetID: 7, AssetCode: "CNC-01", DowntimeMinutes: dec("10"), FinancialLoss: dec("41.67")},
		{SummaryDate: day, AssetID: 9, AssetCode: "WELD-04", DowntimeMinutes: dec("120"), FinancialLoss: dec("500")},
	}

	got := BuildFallbackSummary(day, summaries, nil, nil)
	if !strings.HasPrefix(got, "No safety incidents were recorded on 2026-08-24.") {
		t.Fatalf("expected clean-day opening, got %q", got)
	}
	if !strings.Contains(got, "2 asset(s) reported production data") {
		t.Fatalf("expected asset count, got %q", got)
	}
	if !strings.Contains(got, "largest single loss was 500 on WELD-04") {
		t.Fatalf("expected worst-loss callout, got %q", got)
	}
}

func TestBuildFallbackSummary_Deterministic(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	summaries := []models.DailySummary{
		{SummaryDate: day, AssetID: 7, AssetCode: "CNC-01", FinancialLoss: dec("1200"), IsEstimated: true},
	}
	actions := BuildActionItems(nil, summaries, nil, dec("1000"))
	first := BuildFallbackSummary(day, summaries, nil, actions)
	for i := 0; i < 5; i++ {
		if got := BuildFallbackSummary(day, summaries, nil, actions); got != first {
			t.Fatalf("fallback not deterministic: %q vs %q", first, got)
		}
	}
	if !strings.Contains(first, "estimated hourly rate") {
		t.Fatalf("expected estimated-rate disclosure, got %q", first)
	}
	if !strings.Contains(first, "Review downtime cost on CNC-01") {
		t.Fatalf("expected financial action recommended, got %q", first)
	}
}

func TestBuildSummaryPrompt_CarriesSameFigures(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	summaries := []models.DailySummary{
		{SummaryDate: day, AssetID: 7, AssetCode: "CNC-01", TotalOutput: dec("480"), TargetOutput: dec("500"), OEE: nd("78.5"), DowntimeMinutes: dec("45"), FinancialLoss: dec("187.5")},
	}
	events := []models.SafetyEvent{
		{ID: 1, AssetID: 3, AssetCode: "PRESS-02", EventTimestamp: day.Add(9 * time.Hour), ReasonCode: models.SafetyReasonCode, Detail: "guard door open"},
	}

	actions := BuildActionItems(events, summaries, nil, dec("1000"))
	prompt := buildSummaryPrompt(day, summaries, events, actions)
	for _, want := range []string{"2026-08-24", "PRESS-02", "guard door open", "CNC-01", "78.5%", "187.5", "do not invent numbers"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if !strings.Contains(prompt, "Prioritized action items") {
		t.Fatalf("prompt missing action section:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Investigate safety incident on PRESS-02") {
		t.Fatalf("prompt missing safety action:\n%s", prompt)
	}
}

func TestSummaryCacheKey(t *testing.T) {
	day := time.Date(2026, 8, 24, 15, 30, 0, 0, time.UTC)
	if got := summaryCacheKey(day); got != "Summary:2026-08-24" {
		t.Fatalf("expected Summary:2026-08-24, got %q", got)
	}
}
