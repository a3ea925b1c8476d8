package models

import (
	"github.com/shopspring/decimal"
)

// EvidenceRef points a derived claim back to the stored row that justifies it.
// Every action item carries at least one; an item with none is invalid and is
// never emitted. The summary generator inherits the same discipline, so
// nothing user-facing can make a claim the database cannot back.
type EvidenceRef struct {
	Table    string `json:"table"`
	Column   string `json:"column"`
	Value    string `json:"value"`
	RecordID string `json:"record_id"`
}

// ActionItem is a derived record regenerated on each request; it is never
// persisted and has no lifecycle of its own.
type ActionItem struct {
	Category  ActionCategory `json:"category"`
	Rank      int            `json:"rank"`
	AssetID   int            `json:"asset_id"`
	AssetCode string         `json:"asset_code"`
	Title     string         `json:"title"`
	Detail    string         `json:"detail"`

	FinancialImpact decimal.Decimal `json:"financial_impact"`
	// IsEstimated marks figures computed with the default hourly rate.
	IsEstimated bool `json:"is_estimated"`

	Evidence []EvidenceRef `json:"evidence"`
}
