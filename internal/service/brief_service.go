package service

import (
	"errors"
	"strings"

	"github.com/packflow/internal/db"
	"gorm.io/gorm"
)

// ErrBriefTopicRequired 表示简报缺少主题。
var ErrBriefTopicRequired = errors.New("brief topic is required")

// BriefInput represents fields accepted when registering a brief.
type BriefInput struct {
	Topic    string
	Audience string
	Keywords string
	Angle    string
	Style    string
}

// BriefService 登记上游产出的选题简报。简报的生成属于上游能力，
// 这里只负责存取。
type BriefService struct {
	db *gorm.DB
}

// NewBriefService creates a BriefService instance.
func NewBriefService(gdb *gorm.DB) *BriefService {
	return &BriefService{db: gdb}
}

// Create 登记一份简报。
func (s *BriefService) Create(input BriefInput) (*db.Brief, error) {
	topic := strings.TrimSpace(input.Topic)
	if topic == "" {
		return nil, ErrBriefTopicRequired
	}

	brief := db.Brief{
		Topic:    topic,
		Audience: strings.TrimSpace(input.Audience),
		Keywords: strings.TrimSpace(input.Keywords),
		Angle:    strings.TrimSpace(input.Angle),
		Style:    strings.TrimSpace(input.Style),
	}
	if err := s.db.Create(&brief).Error; err != nil {
		return nil, err
	}
	return &brief, nil
}

// Get fetches a brief by id.
func (s *BriefService) Get(id uint) (*db.Brief, error) {
	var brief db.Brief
	if err := s.db.First(&brief, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBriefNotFound
		}
		return nil, err
	}
	return &brief, nil
}

// ListAll returns all briefs ordered by created time descending.
func (s *BriefService) ListAll() ([]db.Brief, error) {
	var briefs []db.Brief
	if err := s.db.Order("created_at desc").Find(&briefs).Error; err != nil {
		return nil, err
	}
	return briefs, nil
}
