package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/packflow/internal/db"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrGenerationInProgress = errors.New("generation already in progress for this pack")
	ErrGenerationIncomplete = errors.New("generation ended before completion")
	ErrNoDerivatives        = errors.New("no active derivative set available")
)

// DerivativeSet 汇总一个内容包当前生效的五种衍生稿。
type DerivativeSet struct {
	TwitterThread  []string `json:"twitter_thread"`
	LinkedIn       string   `json:"linkedin"`
	Email          string   `json:"email"`
	BlogSummary    string   `json:"blog_summary"`
	SEODescription string   `json:"seo_description"`
}

// DerivativeService 负责衍生稿的生成编排：全量生成、单项重生成、
// 流式重生成，以及生效衍生稿集合的读取。同一内容包的生成操作
// 互斥，跨内容包完全并行。
type DerivativeService struct {
	db        *gorm.DB
	versions  *VersionService
	generator DerivativeGenerator
	locks     *packLockManager
}

// NewDerivativeService creates a DerivativeService instance.
func NewDerivativeService(gdb *gorm.DB, generator DerivativeGenerator) *DerivativeService {
	return &DerivativeService{
		db:        gdb,
		versions:  NewVersionService(gdb),
		generator: generator,
		locks:     newPackLockManager(),
	}
}

// GenerateAll 读取草稿正文，为五种平台各生成一份衍生稿。
// 五路生成并发进行，任意一路失败则整体失败，不落任何版本；
// 全部成功后在同一事务内各写入一个新的生效版本。
// 同一内容包并发调用时，后到者收到 ErrGenerationInProgress。
func (s *DerivativeService) GenerateAll(ctx context.Context, packID uint) (*DerivativeSet, error) {
	release, ok := s.locks.TryAcquire(packID)
	if !ok {
		return nil, ErrGenerationInProgress
	}
	defer release()

	pack, err := s.loadPack(packID)
	if err != nil {
		return nil, err
	}

	contents := make([]string, len(db.DerivativeKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range db.DerivativeKinds {
		g.Go(func() error {
			result, err := s.generator.GenerateDerivative(gctx, DerivativeInput{
				Kind:      kind,
				DraftBody: pack.DraftBody,
			})
			if err != nil {
				return fmt.Errorf("generate %s: %w", kind, err)
			}
			contents[i] = result.Content
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrGenerationIncomplete, err)
		}
		return nil, err
	}

	set := &DerivativeSet{}
	stored := make([]string, len(db.DerivativeKinds))
	for i, kind := range db.DerivativeKinds {
		stored[i] = s.encodeContent(kind, contents[i], set)
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		for i, kind := range db.DerivativeKinds {
			if _, err := appendVersionTx(tx, packID, kind, stored[i]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return set, nil
}

// RegenerateOne 只重新生成指定类型的衍生稿，不触碰其他类型的
// 生效版本；该类型的版本号在原有基础上递增。
func (s *DerivativeService) RegenerateOne(ctx context.Context, packID uint, kind string) (*db.DerivativeVersion, error) {
	if !isDerivativeKind(kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	release, ok := s.locks.TryAcquire(packID)
	if !ok {
		return nil, ErrGenerationInProgress
	}
	defer release()

	pack, err := s.loadPack(packID)
	if err != nil {
		return nil, err
	}

	result, err := s.generator.GenerateDerivative(ctx, DerivativeInput{
		Kind:      kind,
		DraftBody: pack.DraftBody,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrGenerationIncomplete, err)
		}
		return nil, err
	}

	return s.versions.Append(packID, kind, s.encodeContent(kind, result.Content, nil))
}

// StreamRegenerate 以流式方式重新生成指定类型的衍生稿。
// 增量文本通过 onDelta 转发给调用方；版本只在流发出完成信号后
// 一次性写入，中断或取消的流不会留下任何持久化痕迹。
func (s *DerivativeService) StreamRegenerate(ctx context.Context, packID uint, kind string, onDelta func(string)) (*db.DerivativeVersion, error) {
	if !isDerivativeKind(kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	release, ok := s.locks.TryAcquire(packID)
	if !ok {
		return nil, ErrGenerationInProgress
	}
	defer release()

	pack, err := s.loadPack(packID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.generator.StreamDerivative(ctx, DerivativeInput{
		Kind:      kind,
		DraftBody: pack.DraftBody,
	})
	if err != nil {
		return nil, err
	}

	session := newGenerationSession(kind)
	if err := session.Consume(ctx, chunks, onDelta); err != nil {
		return nil, err
	}

	content, err := session.Text()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrDerivativeEmpty
	}

	return s.versions.Append(packID, kind, s.encodeContent(kind, content, nil))
}

// ActiveSet 读取当前生效的完整衍生稿集合。集合要么完整存在，
// 要么视为从未生成过；缺少任一类型都返回 ErrNoDerivatives。
func (s *DerivativeService) ActiveSet(packID uint) (*DerivativeSet, error) {
	var versions []db.DerivativeVersion
	if err := s.db.Where("pack_id = ? AND is_active = ? AND kind <> ?", packID, true, db.KindDraft).
		Find(&versions).Error; err != nil {
		return nil, err
	}

	byKind := make(map[string]string, len(versions))
	for _, v := range versions {
		byKind[v.Kind] = v.Content
	}

	set := &DerivativeSet{}
	for _, kind := range db.DerivativeKinds {
		content, ok := byKind[kind]
		if !ok {
			return nil, ErrNoDerivatives
		}
		s.decodeContent(kind, content, set)
	}
	return set, nil
}

// Versions 暴露底层版本账本，供回滚与历史查询路径复用。
func (s *DerivativeService) Versions() *VersionService {
	return s.versions
}

func (s *DerivativeService) loadPack(packID uint) (*db.ContentPack, error) {
	var pack db.ContentPack
	if err := s.db.First(&pack, packID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackNotFound
		}
		return nil, err
	}
	return &pack, nil
}

// encodeContent 将生成结果转为存储格式，并在给定 set 时同步填充。
// Twitter 串按行拆分为推文后以 JSON 数组存储，其余类型存原文。
func (s *DerivativeService) encodeContent(kind, content string, set *DerivativeSet) string {
	if kind == db.KindTwitterThread {
		tweets := splitThread(content)
		if set != nil {
			set.TwitterThread = tweets
		}
		encoded, err := json.Marshal(tweets)
		if err != nil {
			// []string 序列化不会失败，保险起见退回原文
			return content
		}
		return string(encoded)
	}

	if set != nil {
		switch kind {
		case db.KindLinkedIn:
			set.LinkedIn = content
		case db.KindEmail:
			set.Email = content
		case db.KindBlogSummary:
			set.BlogSummary = content
		case db.KindSEODescription:
			set.SEODescription = content
		}
	}
	return content
}

func (s *DerivativeService) decodeContent(kind, stored string, set *DerivativeSet) {
	switch kind {
	case db.KindTwitterThread:
		var tweets []string
		if err := json.Unmarshal([]byte(stored), &tweets); err != nil {
			tweets = splitThread(stored)
		}
		set.TwitterThread = tweets
	case db.KindLinkedIn:
		set.LinkedIn = stored
	case db.KindEmail:
		set.Email = stored
	case db.KindBlogSummary:
		set.BlogSummary = stored
	case db.KindSEODescription:
		set.SEODescription = stored
	}
}

// splitThread 将逐行输出的推文串拆分为独立推文，忽略空行。
func splitThread(content string) []string {
	lines := strings.Split(content, "\n")
	tweets := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		tweets = append(tweets, trimmed)
	}
	return tweets
}

func isDerivativeKind(kind string) bool {
	for _, k := range db.DerivativeKinds {
		if k == kind {
			return true
		}
	}
	return false
}
