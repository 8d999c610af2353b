package db

import "gorm.io/gorm"

// 内容包生命周期状态。状态变更只允许经过 service 层的流转校验。
const (
	PackStatusDraft     = "draft"
	PackStatusReview    = "review"
	PackStatusApproved  = "approved"
	PackStatusPublished = "published"
)

// ContentPack 定义了内容包模型，一份简报最多对应一个内容包。
// WordCount 始终由 DraftBody 重新计算得出，不单独维护。
type ContentPack struct {
	gorm.Model
	BriefID      uint  `gorm:"uniqueIndex;not null"`
	Brief        Brief `gorm:"foreignKey:BriefID"`
	DraftBody    string `gorm:"type:text"`
	WordCount    int
	Status       string `gorm:"size:20;not null;default:'draft'"`
	LastEditorID string `gorm:"size:64"`
}

// TableName 指定自定义表名。
func (ContentPack) TableName() string {
	return "content_packs"
}
