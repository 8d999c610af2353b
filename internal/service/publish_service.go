package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/packflow/internal/db"
	"github.com/packflow/internal/platform"
	"gorm.io/gorm"
)

const (
	// maxPublishAttempts 是单平台单次发布的尝试上限（含首次）。
	maxPublishAttempts = 3
	// defaultPublishCallTimeout 约束单次平台调用的墙钟时间。
	defaultPublishCallTimeout = 30 * time.Second
)

// ErrNoPlatformsRequested 表示发布请求未指定任何渠道。
var ErrNoPlatformsRequested = errors.New("no platforms requested")

// PublishService 负责把生效的衍生稿推送到外部平台。
// 各平台并发、相互独立地尝试，任何一个平台的失败不会阻塞、
// 延迟或回滚其他平台；每次尝试都落一条只追加的审计记录。
type PublishService struct {
	db          *gorm.DB
	derivatives *DerivativeService
	publishers  map[string]platform.Publisher
	callTimeout time.Duration
	backoff     func(attempt int) time.Duration
}

// NewPublishService creates a PublishService instance.
func NewPublishService(gdb *gorm.DB, derivatives *DerivativeService, publishers map[string]platform.Publisher) *PublishService {
	return &PublishService{
		db:          gdb,
		derivatives: derivatives,
		publishers:  publishers,
		callTimeout: defaultPublishCallTimeout,
		backoff: func(attempt int) time.Duration {
			return time.Duration(math.Pow(2, float64(attempt))) * time.Second
		},
	}
}

// SetCallTimeout 覆盖单次平台调用的超时时间，主要用于测试。
func (s *PublishService) SetCallTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.callTimeout = timeout
	}
}

// SetBackoff 覆盖重试退避策略，主要用于测试。
func (s *PublishService) SetBackoff(backoff func(attempt int) time.Duration) {
	if backoff != nil {
		s.backoff = backoff
	}
}

// Publish 将内容包的生效衍生稿推送到指定渠道，返回按渠道聚合的
// 最终记录。前置条件只有一个：生效衍生稿集合必须完整存在，
// 否则在发起任何网络调用之前整体失败。生命周期状态的校验
// 属于调用方工作流，由流转校验在更早的环节完成。
func (s *PublishService) Publish(ctx context.Context, packID uint, platforms []string) (map[string]db.PublishRecord, error) {
	if len(platforms) == 0 {
		return nil, ErrNoPlatformsRequested
	}

	set, err := s.derivatives.ActiveSet(packID)
	if err != nil {
		return nil, err
	}

	pack, err := s.derivatives.loadPack(packID)
	if err != nil {
		return nil, err
	}

	payload := buildPayload(pack, set)

	results := make(map[string]db.PublishRecord, len(platforms))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range platforms {
		name := strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}

		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			var record db.PublishRecord
			publisher, ok := s.publishers[name]
			if !ok {
				record = s.recordAttempt(packID, name, "", fmt.Errorf("%w: %s", platform.ErrNotConfigured, name))
			} else {
				record = s.attemptWithRetry(ctx, packID, name, publisher, payload)
			}

			mu.Lock()
			results[name] = record
			mu.Unlock()
		}(name)
	}

	wg.Wait()
	return results, nil
}

// ListRecords 按时间倒序返回内容包的发布审计记录。
func (s *PublishService) ListRecords(packID uint) ([]db.PublishRecord, error) {
	var records []db.PublishRecord
	if err := s.db.Where("pack_id = ?", packID).
		Order("attempted_at desc, id desc").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// attemptWithRetry 对单个平台执行带退避的重试。瞬时失败
// （网络、超时、5xx）最多重试到尝试上限；鉴权或请求体错误
// 记录一次后立即放弃。每次尝试产生一条独立记录。
func (s *PublishService) attemptWithRetry(ctx context.Context, packID uint, name string, publisher platform.Publisher, payload platform.Payload) db.PublishRecord {
	var record db.PublishRecord

	for attempt := 1; attempt <= maxPublishAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		externalRef, err := publisher.Publish(callCtx, payload)
		cancel()

		record = s.recordAttempt(packID, name, externalRef, err)
		if err == nil {
			return record
		}
		if !platform.IsTransient(err) {
			return record
		}
		if attempt == maxPublishAttempts {
			return record
		}

		select {
		case <-time.After(s.backoff(attempt)):
		case <-ctx.Done():
			// 调用方取消只影响本平台后续的重试，已写入的记录保持不变
			return record
		}
	}

	return record
}

// recordAttempt 为一次尝试写入审计记录。记录只追加，写库失败
// 不影响返回给调用方的结果，只记日志。
func (s *PublishService) recordAttempt(packID uint, name, externalRef string, attemptErr error) db.PublishRecord {
	record := db.PublishRecord{
		PackID:      packID,
		Platform:    name,
		AttemptID:   uuid.NewString(),
		ExternalRef: externalRef,
		Outcome:     db.PublishOutcomeSuccess,
		AttemptedAt: time.Now(),
	}
	if attemptErr != nil {
		record.Outcome = db.PublishOutcomeFailure
		record.ErrorDetail = attemptErr.Error()
		record.ExternalRef = ""
	}

	if err := s.db.Create(&record).Error; err != nil {
		log.Printf("[publish] 写入发布记录失败 pack=%d platform=%s: %v", packID, name, err)
	}
	return record
}

// buildPayload 将生效衍生稿组装为平台无关的发布内容。
func buildPayload(pack *db.ContentPack, set *DerivativeSet) platform.Payload {
	subject, body := splitEmailSubject(set.Email)
	return platform.Payload{
		Title:          deriveTitle(pack.DraftBody),
		EmailSubject:   subject,
		EmailBody:      body,
		BlogMarkdown:   pack.DraftBody,
		BlogSummary:    set.BlogSummary,
		SEODescription: set.SEODescription,
		TwitterThread:  set.TwitterThread,
	}
}

// splitEmailSubject 从邮件衍生稿中拆出主题行。约定首行以
// "Subject:" 开头；不符合约定时回退为正文首行。
func splitEmailSubject(email string) (string, string) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", ""
	}

	lines := strings.SplitN(trimmed, "\n", 2)
	first := strings.TrimSpace(lines[0])
	rest := ""
	if len(lines) > 1 {
		rest = strings.TrimSpace(lines[1])
	}

	for _, prefix := range []string{"Subject:", "subject:", "主题：", "主题:"} {
		if strings.HasPrefix(first, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(first, prefix)), rest
		}
	}
	return first, rest
}

// deriveTitle 从草稿首行推导标题，去掉 Markdown 标题前缀。
func deriveTitle(draftBody string) string {
	trimmed := strings.TrimSpace(draftBody)
	if trimmed == "" {
		return ""
	}
	first := trimmed
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		first = trimmed[:idx]
	}
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(first), "#"))
}
