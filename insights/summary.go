package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/plantpulse/pulse_backend/config"
	"github.com/plantpulse/pulse_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const (
	summaryCachePrefix = "Summary:"
	summaryCacheTTL    = 24 * time.Hour

	SummarySourceModel    = "model"
	SummarySourceFallback = "fallback"
)

// ErrNoSourceData means the requested day has neither rollup rows nor safety
// events, so there is nothing to narrate.
var ErrNoSourceData = errors.New("no source data for requested day")

// SummaryResult is the daily narrative plus its provenance. Source tells the
// dashboard whether a model or the deterministic template wrote the text; the
// figures underneath are identical either way.
type SummaryResult struct {
	Date        string    `json:"date"`
	Narrative   string    `json:"narrative"`
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Generator produces the daily plant narrative: model-written when Gemini is
// reachable, template-written otherwise. Results cache in redis per day.
type Generator struct {
	Logger  *logrus.Logger
	Timeout time.Duration
}

func NewGenerator(logger *logrus.Logger) *Generator {
	return &Generator{
		Logger:  logger,
		Timeout: config.SummaryTimeout(),
	}
}

func summaryCacheKey(day time.Time) string {
	return summaryCachePrefix + day.UTC().Format("2006-01-02")
}

// InvalidateDailySummaryCache drops the cached narrative for the given day.
// The poller calls this after new snapshots land so a stale story never
// outlives the data under it.
func InvalidateDailySummaryCache(ctx context.Context, day time.Time) error {
	return config.RemoveRedisKey(summaryCacheKey(day))
}

// DailySummary returns the narrative for one calendar day. regenerate skips
// the cache read and overwrites the entry.
func (g *Generator) DailySummary(ctx context.Context, day time.Time, regenerate bool) (*SummaryResult, error) {
	key := summaryCacheKey(day)

	if !regenerate {
		var cached SummaryResult
		found, err := config.GetRedisObject(key, &cached)
		if err != nil && g.Logger != nil {
			g.Logger.WithFields(logrus.Fields{
				"field": "Generator",
				"key":   key,
			}).Warn("summary cache read failed: " + err.Error())
		}
		if found {
			return &cached, nil
		}
	}

	summaries, err := models.DailySummariesOn(ctx, day)
	if err != nil {
		return nil, err
	}
	events, err := models.SafetyEventsOn(ctx, day)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 && len(events) == 0 {
		return nil, ErrNoSourceData
	}

	// The narrative recommends the same prioritized items the actions
	// endpoint serves, built from the same rows.
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
	actions := BuildActionItems(events, summaries, assets, config.FinancialActionThreshold())

	result := &SummaryResult{
		Date:        day.UTC().Format("2006-01-02"),
		GeneratedAt: time.Now().UTC(),
	}

	narrative, err := g.generateWithModel(ctx, day, summaries, events, actions)
	if err != nil {
		if g.Logger != nil {
			g.Logger.WithFields(logrus.Fields{
				"field": "Generator",
				"date":  result.Date,
			}).Warn("model summary unavailable, using fallback: " + err.Error())
		}
		result.Narrative = BuildFallbackSummary(day, summaries, events, actions)
		result.Source = SummarySourceFallback
	} else {
		result.Narrative = narrative
		result.Source = SummarySourceModel
	}

	if err := config.SetRedisObject(key, result, summaryCacheTTL); err != nil && g.Logger != nil {
		g.Logger.WithFields(logrus.Fields{
			"field": "Generator",
			"key":   key,
		}).Warn("summary cache write failed: " + err.Error())
	}
	return result, nil
}

// generateWithModel asks Gemini to narrate the day from the same figures the
// fallback uses. The call is bounded by the generator timeout; any failure
// degrades to the template, never to an error page.
func (g *Generator) generateWithModel(ctx context.Context, day time.Time, summaries []models.DailySummary, events []models.SafetyEvent, actions []models.ActionItem) (string, error) {
	client, err := config.GetGenAI(ctx)
	if err != nil {
		return "", err
	}

	genCtx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	prompt := buildSummaryPrompt(day, summaries, events, actions)
	resp, err := client.Models.GenerateContent(genCtx, config.GeminiModel(), []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, nil)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned empty narrative")
	}
	return text, nil
}

// buildSummaryPrompt assembles the day's figures into a grounded prompt. Every
// number in it comes from a stored row; the model is told to add nothing.
func buildSummaryPrompt(day time.Time, summaries []models.DailySummary, events []models.SafetyEvent, actions []models.ActionItem) string {
	var b strings.Builder
	b.WriteString("You are writing the daily production summary for a manufacturing plant.\n")
	b.WriteString("Write 3 to 5 plain sentences for a plant manager. Use only the figures below; do not invent numbers.\n\n")
	b.WriteString("Date: " + day.UTC().Format("2006-01-02") + "\n\n")

	if len(events) > 0 {
		b.WriteString(fmt.Sprintf("Safety incidents (%d): mention these first.\n", len(events)))
		for _, ev := range events {
			b.WriteString(fmt.Sprintf("- %s at %s: %s\n", ev.AssetCode, ev.EventTimestamp.Format("15:04"), ev.Detail))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Safety incidents: none.\n\n")
	}

	if len(actions) > 0 {
		b.WriteString("Prioritized action items, highest priority first. Recommend these in this order:\n")
		for _, a := range actions {
			b.WriteString(fmt.Sprintf("- [%s] %s. %s\n", a.Category, a.Title, a.Detail))
		}
		b.WriteString("\n")
	}

	if len(summaries) == 0 {
		b.WriteString("No production aggregates were recorded for this day.\n")
		return b.String()
	}

	b.WriteString("Per-asset aggregates:\n")
	for _, s := range summaries {
		oee := "n/a"
		if s.OEE.Valid {
			oee = s.OEE.Decimal.Round(1).String() + "%"
		}
		estimated := ""
		if s.IsEstimated {
			estimated = " (estimated rate)"
		}
		b.WriteString(fmt.Sprintf("- %s: output %s of %s target, OEE %s, downtime %s min, loss %s%s\n",
			s.AssetCode,
			s.TotalOutput.Round(0).String(), s.TargetOutput.Round(0).String(),
			oee,
			s.DowntimeMinutes.Round(0).String(),
			s.FinancialLoss.Round(2).String(), estimated))
	}
	return b.String()
}

// BuildFallbackSummary writes the narrative without a model. Deterministic:
// same rows, same text. Two shapes only, with and without incidents; the
// closing sentence names the top prioritized actions in order.
func BuildFallbackSummary(day time.Time, summaries []models.DailySummary, events []models.SafetyEvent, actions []models.ActionItem) string {
	date := day.UTC().Format("2006-01-02")

	if len(summaries) == 0 && len(events) == 0 {
		return fmt.Sprintf("No production data was recorded for %s.", date)
	}

	totalLoss := decimal.Zero
	estimated := false
	worst := ""
	worstLoss := decimal.Zero
	for _, s := range summaries {
		totalLoss = totalLoss.Add(s.FinancialLoss)
		if s.IsEstimated {
			estimated = true
		}
		if s.FinancialLoss.GreaterThan(worstLoss) {
			worstLoss = s.FinancialLoss
			worst = s.AssetCode
		}
	}

	var b strings.Builder
	if len(events) > 0 {
		codes := make([]string, 0, len(events))
		seen := map[string]bool{}
		for _, ev := range events {
			if !seen[ev.AssetCode] {
				seen[ev.AssetCode] = true
				codes = append(codes, ev.AssetCode)
			}
		}
		b.WriteString(fmt.Sprintf("%d safety incident(s) were recorded on %s (%s); these require review before anything else.",
			len(events), date, strings.Join(codes, ", ")))
	} else {
		b.WriteString(fmt.Sprintf("No safety incidents were recorded on %s.", date))
	}

	if len(summaries) > 0 {
		b.WriteString(fmt.Sprintf(" %d asset(s) reported production data with a combined downtime loss of %s.",
			len(summaries), totalLoss.Round(2).String()))
		if worst != "" && worstLoss.GreaterThan(decimal.Zero) {
			b.WriteString(fmt.Sprintf(" The largest single loss was %s on %s.", worstLoss.Round(2).String(), worst))
		}
		if estimated {
			b.WriteString(" Some figures use an estimated hourly rate because no cost center is configured.")
		}
	}

	if len(actions) > 0 {
		top := actions
		if len(top) > 3 {
			top = top[:3]
		}
		titles := make([]string, 0, len(top))
		for _, a := range top {
			titles = append(titles, a.Title)
		}
		b.WriteString(fmt.Sprintf(" Recommended actions, in priority order: %s.", strings.Join(titles, "; ")))
	}
	return b.String()
}
