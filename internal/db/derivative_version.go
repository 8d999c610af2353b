package db

import "gorm.io/gorm"

// 版本快照的内容类型，draft 表示正文草稿，其余为各平台衍生稿。
const (
	KindDraft          = "draft"
	KindTwitterThread  = "twitter_thread"
	KindLinkedIn       = "linkedin"
	KindEmail          = "email"
	KindBlogSummary    = "blog_summary"
	KindSEODescription = "seo_description"
)

// DerivativeKinds 按导出时的固定顺序列出五种衍生稿类型。
var DerivativeKinds = []string{
	KindTwitterThread,
	KindLinkedIn,
	KindEmail,
	KindBlogSummary,
	KindSEODescription,
}

// IsValidKind 判断给定类型是否为合法的版本类型。
func IsValidKind(kind string) bool {
	if kind == KindDraft {
		return true
	}
	for _, k := range DerivativeKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// DerivativeVersion 记录草稿或某一衍生稿的历史版本快照。
// 版本一经写入不再修改，IsActive 是唯一可变字段。
// Twitter 串以 JSON 数组形式存入 Content，其余类型存纯文本。
type DerivativeVersion struct {
	gorm.Model
	PackID        uint   `gorm:"index:idx_versions_pack_kind;not null"`
	Kind          string `gorm:"index:idx_versions_pack_kind;size:32;not null"`
	Content       string `gorm:"type:text"`
	VersionNumber int    `gorm:"not null"`
	IsActive      bool   `gorm:"not null;default:false"`
}

// TableName 指定自定义表名。
func (DerivativeVersion) TableName() string {
	return "derivative_versions"
}
