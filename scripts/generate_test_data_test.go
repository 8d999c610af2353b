package main

import (
	"testing"

	"github.com/packflow/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const expectedBriefSeedCount = 3

func setupSeedTestDB(t *testing.T) func() {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:pack-seed?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := gdb.AutoMigrate(&db.Brief{}, &db.ContentPack{}, &db.DerivativeVersion{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestSeedCreatesPackPerBrief(t *testing.T) {
	cleanup := setupSeedTestDB(t)
	defer cleanup()

	createTestBriefs()
	createTestPacks()

	var briefs []db.Brief
	if err := db.DB.Find(&briefs).Error; err != nil {
		t.Fatalf("failed to list briefs: %v", err)
	}
	if len(briefs) != expectedBriefSeedCount {
		t.Fatalf("expected %d briefs, got %d", expectedBriefSeedCount, len(briefs))
	}

	var packs []db.ContentPack
	if err := db.DB.Find(&packs).Error; err != nil {
		t.Fatalf("failed to list packs: %v", err)
	}
	if len(packs) != len(briefs) {
		t.Fatalf("expected one pack per brief, got %d packs for %d briefs", len(packs), len(briefs))
	}

	for _, pack := range packs {
		if pack.Status != db.PackStatusDraft {
			t.Fatalf("expected pack %d to start as draft, got %q", pack.ID, pack.Status)
		}
		var version db.DerivativeVersion
		err := db.DB.Where("pack_id = ? AND kind = ? AND is_active = ?", pack.ID, db.KindDraft, true).
			First(&version).Error
		if err != nil {
			t.Fatalf("expected active draft version for pack %d: %v", pack.ID, err)
		}
		if version.VersionNumber != 1 {
			t.Fatalf("expected first draft version for pack %d, got %d", pack.ID, version.VersionNumber)
		}
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	cleanup := setupSeedTestDB(t)
	defer cleanup()

	createTestBriefs()
	createTestPacks()
	createTestBriefs()
	createTestPacks()

	var briefCount, packCount int64
	db.DB.Model(&db.Brief{}).Count(&briefCount)
	db.DB.Model(&db.ContentPack{}).Count(&packCount)

	if briefCount != expectedBriefSeedCount {
		t.Fatalf("expected %d briefs after rerun, got %d", expectedBriefSeedCount, briefCount)
	}
	if packCount != expectedBriefSeedCount {
		t.Fatalf("expected %d packs after rerun, got %d", expectedBriefSeedCount, packCount)
	}
}
