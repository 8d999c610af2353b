package service

import (
	"errors"
	"fmt"

	"github.com/packflow/internal/db"
	"gorm.io/gorm"
)

var (
	ErrVersionNotFound = errors.New("derivative version not found")
	ErrUnknownKind     = errors.New("unknown version kind")
)

// VersionService 维护草稿与衍生稿的不可变版本账本。
// Append 是唯一的写入路径，历史版本永不更新或删除，
// IsActive 指针是唯一允许移动的状态。
type VersionService struct {
	db *gorm.DB
}

// NewVersionService creates a VersionService instance.
func NewVersionService(gdb *gorm.DB) *VersionService {
	return &VersionService{db: gdb}
}

// Append 为 (packID, kind) 写入下一个版本并将其置为生效版本，
// 旧的生效版本在同一事务内降级。版本号从 1 开始严格递增。
func (s *VersionService) Append(packID uint, kind, content string) (*db.DerivativeVersion, error) {
	if !db.IsValidKind(kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	var created db.DerivativeVersion
	err := s.db.Transaction(func(tx *gorm.DB) error {
		version, err := appendVersionTx(tx, packID, kind, content)
		if err != nil {
			return err
		}
		created = *version
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// appendVersionTx 在既有事务内完成版本号分配、旧版本降级与新版本写入。
// 版本号在事务内读取自增，依赖事务序列化避免并发写出现重号。
func appendVersionTx(tx *gorm.DB, packID uint, kind, content string) (*db.DerivativeVersion, error) {
	var current int
	if err := tx.Model(&db.DerivativeVersion{}).
		Where("pack_id = ? AND kind = ?", packID, kind).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&current).Error; err != nil {
		return nil, err
	}

	if err := tx.Model(&db.DerivativeVersion{}).
		Where("pack_id = ? AND kind = ? AND is_active = ?", packID, kind, true).
		Update("is_active", false).Error; err != nil {
		return nil, err
	}

	version := db.DerivativeVersion{
		PackID:        packID,
		Kind:          kind,
		Content:       content,
		VersionNumber: current + 1,
		IsActive:      true,
	}
	if err := tx.Create(&version).Error; err != nil {
		return nil, err
	}
	return &version, nil
}

// ListVersions 按版本号升序返回指定内容包的版本历史，
// kind 为空时返回全部类型。
func (s *VersionService) ListVersions(packID uint, kind string) ([]db.DerivativeVersion, error) {
	if kind != "" && !db.IsValidKind(kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	query := s.db.Where("pack_id = ?", packID)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var versions []db.DerivativeVersion
	if err := query.Order("kind asc, version_number asc").Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

// SetActive 将生效指针移动到指定版本。该操作只移动指针，
// 不产生新版本，是无副本回滚的基础。重复调用是幂等的。
func (s *VersionService) SetActive(packID uint, kind string, versionNumber int) (*db.DerivativeVersion, error) {
	if !db.IsValidKind(kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	var target db.DerivativeVersion
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pack_id = ? AND kind = ? AND version_number = ?", packID, kind, versionNumber).
			First(&target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVersionNotFound
			}
			return err
		}

		if target.IsActive {
			// 指针已指向目标版本，无需移动
			return nil
		}

		if err := tx.Model(&db.DerivativeVersion{}).
			Where("pack_id = ? AND kind = ? AND is_active = ?", packID, kind, true).
			Update("is_active", false).Error; err != nil {
			return err
		}

		if err := tx.Model(&db.DerivativeVersion{}).
			Where("id = ?", target.ID).
			Update("is_active", true).Error; err != nil {
			return err
		}
		target.IsActive = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &target, nil
}

// ActiveVersion 返回 (packID, kind) 当前生效的版本。
func (s *VersionService) ActiveVersion(packID uint, kind string) (*db.DerivativeVersion, error) {
	var version db.DerivativeVersion
	if err := s.db.Where("pack_id = ? AND kind = ? AND is_active = ?", packID, kind, true).
		First(&version).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	return &version, nil
}
