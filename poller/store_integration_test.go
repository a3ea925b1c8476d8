package poller

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/plantpulse/pulse_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Test rows use a dedicated asset id so repeated runs against a shared
// database never collide with real data.
const integrationAssetID = 990001

func openIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 and DATABASE_URL to run database tests")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&models.Snapshot{}); err != nil {
		t.Fatalf("failed to migrate snapshots: %v", err)
	}
	if err := db.Where("asset_id = ?", integrationAssetID).Delete(&models.Snapshot{}).Error; err != nil {
		t.Fatalf("failed to clear previous test rows: %v", err)
	}
	return db
}

func integrationSnapshot(capturedAt time.Time) models.Snapshot {
	return models.Snapshot{
		AssetID:      integrationAssetID,
		AssetCode:    fmt.Sprintf("IT-%d", integrationAssetID),
		CapturedAt:   capturedAt,
		ActualOutput: decimal.NewFromInt(100),
		TargetOutput: decimal.NewFromInt(100),
		Status:       models.SnapshotStatusOnTarget,
	}
}

func TestStoreIntegration_CleanupKeepsRetentionWindow(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()
	store := NewStore(db, testLogger(), 24*time.Hour)

	// Rows spread across 30 hours; only the two inside the 24h window
	// may survive cleanup.
	now := time.Now().UTC().Truncate(time.Second)
	snapshots := []models.Snapshot{
		integrationSnapshot(now.Add(-30 * time.Hour)),
		integrationSnapshot(now.Add(-25 * time.Hour)),
		integrationSnapshot(now.Add(-23 * time.Hour)),
		integrationSnapshot(now.Add(-1 * time.Hour)),
	}
	if res := store.SaveSnapshots(ctx, snapshots); res.Outcome != PersistSuccess {
		t.Fatalf("expected clean write, got %s (%v)", res.Outcome, res.Err)
	}

	purged, err := store.Cleanup(ctx)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if purged < 2 {
		t.Fatalf("expected at least 2 purged rows, got %d", purged)
	}

	var remaining []models.Snapshot
	if err := db.Where("asset_id = ?", integrationAssetID).Find(&remaining).Error; err != nil {
		t.Fatalf("failed to load remaining rows: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 rows inside the retention window, got %d", len(remaining))
	}
	cutoff := RetentionCutoff(time.Now().UTC(), store.Retention)
	for _, s := range remaining {
		if s.CapturedAt.Before(cutoff) {
			t.Fatalf("row at %s survived past cutoff %s", s.CapturedAt, cutoff)
		}
	}
}

func TestStoreIntegration_CleanupFailureLeavesWrites(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()
	store := NewStore(db, testLogger(), 24*time.Hour)

	now := time.Now().UTC().Truncate(time.Second)
	snapshots := []models.Snapshot{
		integrationSnapshot(now.Add(-2 * time.Hour)),
		integrationSnapshot(now.Add(-1 * time.Hour)),
	}
	if res := store.SaveSnapshots(ctx, snapshots); res.Outcome != PersistSuccess {
		t.Fatalf("expected clean write, got %s (%v)", res.Outcome, res.Err)
	}

	// Cleanup runs on its own statement; a failed cleanup must not touch
	// rows a prior write committed.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := store.Cleanup(cancelled); err == nil {
		t.Fatal("expected error from cancelled cleanup")
	}

	var count int64
	if err := db.Model(&models.Snapshot{}).Where("asset_id = ?", integrationAssetID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected both written rows to survive the failed cleanup, got %d", count)
	}
}

func TestStoreIntegration_ConflictingRowsDropped(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()
	store := NewStore(db, testLogger(), 24*time.Hour)

	capturedAt := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	first := integrationSnapshot(capturedAt)
	if res := store.SaveSnapshots(ctx, []models.Snapshot{first}); res.Outcome != PersistSuccess {
		t.Fatalf("expected clean write, got %s (%v)", res.Outcome, res.Err)
	}

	// Re-polling an overlapping window replays the same grain; the stored
	// row must win.
	replay := integrationSnapshot(capturedAt)
	replay.ActualOutput = decimal.NewFromInt(999)
	if res := store.SaveSnapshots(ctx, []models.Snapshot{replay}); res.Outcome != PersistSuccess {
		t.Fatalf("expected conflicting write to succeed silently, got %s (%v)", res.Outcome, res.Err)
	}

	var stored models.Snapshot
	if err := db.Where("asset_id = ? AND captured_at = ?", integrationAssetID, capturedAt).Take(&stored).Error; err != nil {
		t.Fatalf("failed to load stored row: %v", err)
	}
	if !stored.ActualOutput.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected original row retained, got actual_output=%s", stored.ActualOutput)
	}
}
