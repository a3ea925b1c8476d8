package config

import (
	"errors"

	"gorm.io/gorm"
)

// ReadOnlyGuardPlugin rejects any write statement issued through the historian
// handle. The DSN already uses a read-only credential; this catches programming
// mistakes before they reach the wire.
//
// NOTE: Raw SQL still goes through the Raw/Row callbacks as queries, so a
// hand-written UPDATE inside Raw() is not caught here. Don't do that.
type ReadOnlyGuardPlugin struct{}

func NewReadOnlyGuardPlugin() *ReadOnlyGuardPlugin { return &ReadOnlyGuardPlugin{} }

func (p *ReadOnlyGuardPlugin) Name() string { return "readonly_guard" }

var ErrHistorianReadOnly = errors.New("historian connection is read-only")

func (p *ReadOnlyGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("readonly_guard:create", rejectWrite); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("readonly_guard:update", rejectWrite); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("readonly_guard:delete", rejectWrite); err != nil {
		return err
	}
	return nil
}

func rejectWrite(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	_ = db.AddError(ErrHistorianReadOnly)
}
