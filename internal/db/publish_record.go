package db

import (
	"time"

	"gorm.io/gorm"
)

// 发布结果的两种终态。
const (
	PublishOutcomeSuccess = "success"
	PublishOutcomeFailure = "failure"
)

// PublishRecord 记录一次向外部平台推送内容包的尝试结果。
// 记录只追加不覆盖，重试会产生新的记录，由 AttemptID 区分。
type PublishRecord struct {
	gorm.Model
	PackID      uint   `gorm:"index;not null"`
	Platform    string `gorm:"size:32;not null"`
	AttemptID   string `gorm:"size:64;not null"`
	ExternalRef string
	Outcome     string `gorm:"size:16;not null"`
	ErrorDetail string `gorm:"type:text"`
	AttemptedAt time.Time
}

// TableName 指定自定义表名。
func (PublishRecord) TableName() string {
	return "publish_records"
}
