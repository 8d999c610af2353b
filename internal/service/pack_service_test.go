package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/packflow/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPackServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:pack-service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.Brief{}, &db.ContentPack{}, &db.DerivativeVersion{}, &db.PublishRecord{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

func createTestBrief(t *testing.T, gdb *gorm.DB) db.Brief {
	t.Helper()
	brief := db.Brief{
		Topic:    "测试主题",
		Audience: "测试受众",
		Keywords: "keyword-a, keyword-b",
	}
	if err := gdb.Create(&brief).Error; err != nil {
		t.Fatalf("create brief: %v", err)
	}
	return brief
}

func TestPackService_CreateFromBrief(t *testing.T) {
	gdb := setupPackServiceTestDB(t)
	svc := NewPackService(gdb)
	brief := createTestBrief(t, gdb)

	pack, err := svc.CreateFromBrief(brief.ID, "# 标题\n\n正文内容。", "editor-1")
	if err != nil {
		t.Fatalf("create pack: %v", err)
	}
	if pack.Status != db.PackStatusDraft {
		t.Fatalf("expected draft status, got %q", pack.Status)
	}
	if pack.LastEditorID != "editor-1" {
		t.Fatalf("expected editor id to be recorded, got %q", pack.LastEditorID)
	}

	var version db.DerivativeVersion
	err = gdb.Where("pack_id = ? AND kind = ?", pack.ID, db.KindDraft).First(&version).Error
	if err != nil {
		t.Fatalf("expected initial draft version: %v", err)
	}
	if version.VersionNumber != 1 || !version.IsActive {
		t.Fatalf("expected active version 1, got number=%d active=%v", version.VersionNumber, version.IsActive)
	}
}

func TestPackService_CreateFromBriefRejectsDuplicate(t *testing.T) {
	gdb := setupPackServiceTestDB(t)
	svc := NewPackService(gdb)
	brief := createTestBrief(t, gdb)

	if _, err := svc.CreateFromBrief(brief.ID, "第一份草稿", ""); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := svc.CreateFromBrief(brief.ID, "第二份草稿", "")
	if !errors.Is(err, ErrDuplicatePack) {
		t.Fatalf("expected ErrDuplicatePack, got %v", err)
	}

	var count int64
	gdb.Model(&db.ContentPack{}).Where("brief_id = ?", brief.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one pack, got %d", count)
	}
}

func TestPackService_CreateFromBriefValidation(t *testing.T) {
	gdb := setupPackServiceTestDB(t)
	svc := NewPackService(gdb)

	if _, err := svc.CreateFromBrief(99, "正文", ""); !errors.Is(err, ErrBriefNotFound) {
		t.Fatalf("expected ErrBriefNotFound, got %v", err)
	}

	brief := createTestBrief(t, gdb)
	if _, err := svc.CreateFromBrief(brief.ID, "   ", ""); !errors.Is(err, ErrDraftEmpty) {
		t.Fatalf("expected ErrDraftEmpty for blank draft, got %v", err)
	}
}

func TestPackService_UpdateDraftAppendsVersion(t *testing.T) {
	gdb := setupPackServiceTestDB(t)
	svc := NewPackService(gdb)
	brief := createTestBrief(t, gdb)

	pack, err := svc.CreateFromBrief(brief.ID, "初稿内容", "editor-1")
	if err != nil {
		t.Fatalf("create pack: %v", err)
	}

	updated, err := svc.UpdateDraft(pack.ID, "改写后的草稿，包含 English words too", "editor-2")
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if updated.LastEditorID != "editor-2" {
		t.Fatalf("expected last editor to follow latest write, got %q", updated.LastEditorID)
	}
	if updated.WordCount == pack.WordCount {
		t.Fatalf("expected word count to be recomputed")
	}

	var versions []db.DerivativeVersion
	err = gdb.Where("pack_id = ? AND kind = ?", pack.ID, db.KindDraft).
		Order("version_number asc").Find(&versions).Error
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 draft versions, got %d", len(versions))
	}
	if versions[0].IsActive || !versions[1].IsActive {
		t.Fatalf("expected only latest version active")
	}
}

func TestPackService_SetStatus(t *testing.T) {
	gdb := setupPackServiceTestDB(t)
	svc := NewPackService(gdb)
	brief := createTestBrief(t, gdb)

	pack, err := svc.CreateFromBrief(brief.ID, "草稿正文", "")
	if err != nil {
		t.Fatalf("create pack: %v", err)
	}

	// draft 不能直接 approved
	if _, err := svc.SetStatus(pack.ID, db.PackStatusApproved); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	var reloaded db.ContentPack
	if err := gdb.First(&reloaded, pack.ID).Error; err != nil {
		t.Fatalf("reload pack: %v", err)
	}
	if reloaded.Status != db.PackStatusDraft {
		t.Fatalf("expected status unchanged after rejected transition, got %q", reloaded.Status)
	}

	for _, target := range []string{db.PackStatusReview, db.PackStatusApproved, db.PackStatusPublished} {
		updated, err := svc.SetStatus(pack.ID, target)
		if err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
		if updated.Status != target {
			t.Fatalf("expected status %q, got %q", target, updated.Status)
		}
	}

	// published 可以退回 approved 再退回 review
	if _, err := svc.SetStatus(pack.ID, db.PackStatusApproved); err != nil {
		t.Fatalf("rollback to approved: %v", err)
	}
	if _, err := svc.SetStatus(pack.ID, db.PackStatusReview); err != nil {
		t.Fatalf("rollback to review: %v", err)
	}

	if _, err := svc.SetStatus(99, db.PackStatusReview); !errors.Is(err, ErrPackNotFound) {
		t.Fatalf("expected ErrPackNotFound, got %v", err)
	}
}

func TestPackService_DeleteCascades(t *testing.T) {
	gdb := setupPackServiceTestDB(t)
	svc := NewPackService(gdb)
	brief := createTestBrief(t, gdb)

	pack, err := svc.CreateFromBrief(brief.ID, "草稿正文", "")
	if err != nil {
		t.Fatalf("create pack: %v", err)
	}

	versionSvc := NewVersionService(gdb)
	if _, err := versionSvc.Append(pack.ID, db.KindLinkedIn, "LinkedIn 内容"); err != nil {
		t.Fatalf("append version: %v", err)
	}
	record := db.PublishRecord{PackID: pack.ID, Platform: "mailchimp", AttemptID: "a-1", Outcome: db.PublishOutcomeSuccess, AttemptedAt: time.Now()}
	if err := gdb.Create(&record).Error; err != nil {
		t.Fatalf("create publish record: %v", err)
	}

	if err := svc.Delete(pack.ID); err != nil {
		t.Fatalf("delete pack: %v", err)
	}

	var versionCount, recordCount, packCount int64
	gdb.Model(&db.DerivativeVersion{}).Where("pack_id = ?", pack.ID).Count(&versionCount)
	gdb.Model(&db.PublishRecord{}).Where("pack_id = ?", pack.ID).Count(&recordCount)
	gdb.Model(&db.ContentPack{}).Where("id = ?", pack.ID).Count(&packCount)
	if versionCount != 0 || recordCount != 0 || packCount != 0 {
		t.Fatalf("expected cascade delete, got versions=%d records=%d packs=%d", versionCount, recordCount, packCount)
	}

	// 幂等删除
	if err := svc.Delete(pack.ID); err != nil {
		t.Fatalf("expected repeated delete to succeed, got %v", err)
	}
}

func TestPackService_ListFilters(t *testing.T) {
	gdb := setupPackServiceTestDB(t)
	svc := NewPackService(gdb)

	for i := 0; i < 3; i++ {
		brief := createTestBrief(t, gdb)
		body := fmt.Sprintf("第 %d 篇草稿正文", i+1)
		if i == 0 {
			body = "包含特殊关键词 graceful 的草稿"
		}
		pack, err := svc.CreateFromBrief(brief.ID, body, "")
		if err != nil {
			t.Fatalf("create pack %d: %v", i, err)
		}
		if i == 2 {
			if _, err := svc.SetStatus(pack.ID, db.PackStatusReview); err != nil {
				t.Fatalf("move pack to review: %v", err)
			}
		}
	}

	byStatus, err := svc.List(PackFilter{Status: db.PackStatusReview})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if byStatus.Total != 1 {
		t.Fatalf("expected 1 review pack, got %d", byStatus.Total)
	}

	bySearch, err := svc.List(PackFilter{Search: "graceful"})
	if err != nil {
		t.Fatalf("list by search: %v", err)
	}
	if bySearch.Total != 1 {
		t.Fatalf("expected 1 search hit, got %d", bySearch.Total)
	}

	paged, err := svc.List(PackFilter{Page: 1, PerPage: 2})
	if err != nil {
		t.Fatalf("list paged: %v", err)
	}
	if len(paged.Packs) != 2 || paged.TotalPages != 2 {
		t.Fatalf("expected 2 packs on first of 2 pages, got %d packs, %d pages", len(paged.Packs), paged.TotalPages)
	}
}

func TestCountWords(t *testing.T) {
	cases := []struct {
		body string
		want int
	}{
		{"", 0},
		{"hello world", 2},
		{"你好世界", 4},
		{"Go 语言很好", 5},
		{"  spaced   out  ", 2},
	}
	for _, tc := range cases {
		if got := countWords(tc.body); got != tc.want {
			t.Errorf("countWords(%q) = %d, want %d", tc.body, got, tc.want)
		}
	}
}
