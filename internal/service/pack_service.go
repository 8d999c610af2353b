package service

import (
	"errors"
	"strings"
	"unicode"

	"github.com/packflow/internal/db"
	"gorm.io/gorm"
)

var (
	ErrPackNotFound  = errors.New("content pack not found")
	ErrBriefNotFound = errors.New("brief not found")
	ErrDuplicatePack = errors.New("brief already has a content pack")
	ErrDraftEmpty    = errors.New("draft body is required")
)

// PackService wraps content pack related database operations.
type PackService struct {
	db       *gorm.DB
	versions *VersionService
}

// PackFilter describes filters for listing content packs.
type PackFilter struct {
	Status  string
	Search  string
	Page    int
	PerPage int
}

// PackListResult aggregates paginated list data and counters.
type PackListResult struct {
	Packs      []db.ContentPack
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// NewPackService creates a PackService instance.
func NewPackService(gdb *gorm.DB) *PackService {
	return &PackService{db: gdb, versions: NewVersionService(gdb)}
}

// CreateFromBrief 基于简报创建内容包并记录草稿的第一个版本。
// 一份简报最多对应一个内容包，重复创建返回 ErrDuplicatePack。
func (s *PackService) CreateFromBrief(briefID uint, draftBody, editorID string) (*db.ContentPack, error) {
	body := strings.TrimSpace(draftBody)
	if body == "" {
		return nil, ErrDraftEmpty
	}

	var brief db.Brief
	if err := s.db.First(&brief, briefID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBriefNotFound
		}
		return nil, err
	}

	pack := db.ContentPack{
		BriefID:      briefID,
		DraftBody:    body,
		WordCount:    countWords(body),
		Status:       db.PackStatusDraft,
		LastEditorID: strings.TrimSpace(editorID),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing db.ContentPack
		if err := tx.Where("brief_id = ?", briefID).First(&existing).Error; err == nil {
			return ErrDuplicatePack
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(&pack).Error; err != nil {
			return err
		}

		_, err := appendVersionTx(tx, pack.ID, db.KindDraft, body)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &pack, nil
}

// Get fetches a content pack by id with its brief preloaded.
func (s *PackService) Get(id uint) (*db.ContentPack, error) {
	var pack db.ContentPack
	if err := s.db.Preload("Brief").First(&pack, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackNotFound
		}
		return nil, err
	}
	return &pack, nil
}

// UpdateDraft 重写草稿正文并重新计算字数，同时在同一事务内
// 追加一个 draft 版本。编辑不受生命周期状态限制，正常流程中
// 由调用方决定是否把状态拉回 review。
func (s *PackService) UpdateDraft(packID uint, newBody, editorID string) (*db.ContentPack, error) {
	body := strings.TrimSpace(newBody)
	if body == "" {
		return nil, ErrDraftEmpty
	}

	var pack db.ContentPack
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&pack, packID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPackNotFound
			}
			return err
		}

		pack.DraftBody = body
		pack.WordCount = countWords(body)
		pack.LastEditorID = strings.TrimSpace(editorID)

		if err := tx.Save(&pack).Error; err != nil {
			return err
		}

		_, err := appendVersionTx(tx, pack.ID, db.KindDraft, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &pack, nil
}

// SetStatus 经过流转校验后持久化新的生命周期状态。
// 非法流转返回 ErrInvalidTransition，记录保持不变。
func (s *PackService) SetStatus(packID uint, target string) (*db.ContentPack, error) {
	var pack db.ContentPack
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&pack, packID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPackNotFound
			}
			return err
		}

		if err := CheckTransition(pack.Status, target); err != nil {
			return err
		}

		pack.Status = target
		return tx.Save(&pack).Error
	})
	if err != nil {
		return nil, err
	}
	return &pack, nil
}

// Delete 删除内容包并级联清理其全部版本与发布记录。
// 幂等：重复删除同一 id 不报错。
func (s *PackService) Delete(packID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pack_id = ?", packID).Delete(&db.DerivativeVersion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("pack_id = ?", packID).Delete(&db.PublishRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.ContentPack{}, packID).Error
	})
}

// List provides paginated content packs based on filters.
func (s *PackService) List(filter PackFilter) (*PackListResult, error) {
	result := &PackListResult{Page: filter.Page, PerPage: filter.PerPage}
	if result.Page <= 0 {
		result.Page = 1
	}
	if result.PerPage <= 0 {
		result.PerPage = 10
	}

	query := s.db.Model(&db.ContentPack{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		query = query.Where("draft_body LIKE ?", search)
	}

	if err := query.Count(&result.Total).Error; err != nil {
		return nil, err
	}

	offset := (result.Page - 1) * result.PerPage

	var packs []db.ContentPack
	if err := query.Preload("Brief").
		Order("created_at desc, id desc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&packs).Error; err != nil {
		return nil, err
	}

	if result.Total == 0 {
		result.TotalPages = 1
	} else {
		result.TotalPages = int((result.Total + int64(result.PerPage) - 1) / int64(result.PerPage))
	}

	result.Packs = packs
	return result, nil
}

// countWords 统计草稿字数：CJK 字符按单字计，其余文本按空白分词计。
func countWords(body string) int {
	count := 0
	inWord := false
	for _, r := range body {
		switch {
		case unicode.Is(unicode.Han, r):
			count++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		default:
			if !inWord {
				count++
				inWord = true
			}
		}
	}
	return count
}
