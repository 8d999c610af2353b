package db

import "gorm.io/gorm"

// Brief 定义了选题简报模型。简报由上游的创意生成环节产出，
// 这里只作为内容包的引用来源存储。
type Brief struct {
	gorm.Model
	Topic    string `gorm:"not null"`
	Audience string
	Keywords string `gorm:"type:text"`
	Angle    string `gorm:"type:text"`
	Style    string
}

// TableName 指定自定义表名。
func (Brief) TableName() string {
	return "briefs"
}
