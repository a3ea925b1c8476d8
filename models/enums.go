package models

// SnapshotStatus classifies a snapshot's variance against the ±5% band.
// Unknown means the target was missing or zero and no variance exists.
type SnapshotStatus string

const (
	SnapshotStatusOnTarget    SnapshotStatus = "on_target"
	SnapshotStatusBelowTarget SnapshotStatus = "below_target"
	SnapshotStatusAboveTarget SnapshotStatus = "above_target"
	SnapshotStatusUnknown     SnapshotStatus = "unknown"
)

// ActionCategory orders the daily action list: safety always ranks first.
type ActionCategory string

const (
	ActionCategorySafety    ActionCategory = "safety"
	ActionCategoryOEE       ActionCategory = "oee"
	ActionCategoryFinancial ActionCategory = "financial"
)

// SafetyReasonCode is the sentinel the detector matches exactly. It is the
// literal reason string operators select in the downtime terminal, so it is
// compared verbatim, never case-folded.
const SafetyReasonCode = "Safety Issue"

type UserRole string

const (
	UserRoleAdmin    UserRole = "A"
	UserRoleOperator UserRole = "O"
	UserRoleViewer   UserRole = "V"
)

func (r UserRole) DisplayName() string {
	switch r {
	case UserRoleAdmin:
		return "Admin"
	case UserRoleOperator:
		return "Operator"
	default:
		return "Viewer"
	}
}
