package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/packflow/internal/db"
)

const (
	defaultOpenAIDraftModel   = "gpt-4o-mini"
	defaultDeepSeekDraftModel = "deepseek-chat"
	defaultDraftMaxTokens     = 4096
	defaultDraftTemperature   = 0.6
	defaultDraftWordCount     = 1200
	maxRetrievalSnippets      = 5
)

// ErrDraftGenerationEmpty 表示模型未返回可用草稿。
var ErrDraftGenerationEmpty = errors.New("ai draft returned empty content")

// DraftOptions 描述从简报起草正文时的可选参数。
type DraftOptions struct {
	WordCount int
	Style     string
	UseRAG    bool
}

// DraftComposer 定义从简报起草正文的能力，便于在业务层注入不同实现。
type DraftComposer interface {
	ComposeDraft(ctx context.Context, brief db.Brief, opts DraftOptions) (string, error)
}

// AIDraftService 基于大模型接口从简报起草长文正文，
// 可选地通过检索能力注入带出处的参考片段。
type AIDraftService struct {
	client    *aiChatClient
	retrieval RetrievalProvider
}

// NewAIDraftService 构造默认的 AIDraftService。
func NewAIDraftService(settings *SystemSettingService, retrieval RetrievalProvider) *AIDraftService {
	if retrieval == nil {
		retrieval = NewNoopRetrievalProvider()
	}
	return &AIDraftService{
		client:    newAIChatClient(settings, defaultOpenAIDraftModel, defaultDeepSeekDraftModel),
		retrieval: retrieval,
	}
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (s *AIDraftService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetOpenAIBaseURL 覆盖默认的 OpenAI API 地址。
func (s *AIDraftService) SetOpenAIBaseURL(base string) {
	s.client.SetOpenAIBaseURL(base)
}

// SetDeepSeekBaseURL 覆盖默认的 DeepSeek API 地址。
func (s *AIDraftService) SetDeepSeekBaseURL(base string) {
	s.client.SetDeepSeekBaseURL(base)
}

// ComposeDraft 根据简报生成 Markdown 草稿正文。
func (s *AIDraftService) ComposeDraft(ctx context.Context, brief db.Brief, opts DraftOptions) (string, error) {
	wordCount := opts.WordCount
	if wordCount <= 0 {
		wordCount = defaultDraftWordCount
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "主题：%s\n", strings.TrimSpace(brief.Topic))
	if strings.TrimSpace(brief.Audience) != "" {
		fmt.Fprintf(&builder, "目标读者：%s\n", strings.TrimSpace(brief.Audience))
	}
	if strings.TrimSpace(brief.Keywords) != "" {
		fmt.Fprintf(&builder, "关键词：%s\n", strings.TrimSpace(brief.Keywords))
	}
	if strings.TrimSpace(brief.Angle) != "" {
		fmt.Fprintf(&builder, "切入角度：%s\n", strings.TrimSpace(brief.Angle))
	}

	style := strings.TrimSpace(opts.Style)
	if style == "" {
		style = strings.TrimSpace(brief.Style)
	}
	if style != "" {
		fmt.Fprintf(&builder, "写作风格：%s\n", style)
	}
	fmt.Fprintf(&builder, "目标字数：约 %d 字\n", wordCount)

	if opts.UseRAG {
		snippets, err := s.retrieval.Retrieve(ctx, brief.Topic, maxRetrievalSnippets)
		if err != nil {
			return "", fmt.Errorf("检索参考资料失败: %w", err)
		}
		if len(snippets) > 0 {
			builder.WriteString("\n参考资料（引用时注明出处）：\n")
			for i, snippet := range snippets {
				fmt.Fprintf(&builder, "[%d] %s\n来源：%s\n", i+1, strings.TrimSpace(snippet.Text), snippet.Source)
			}
		}
	}

	userPrompt := builder.String()
	logAIExchange("DRAFT", "prompt", userPrompt)

	result, err := s.client.call(ctx, aiChatRequest{
		SystemPrompt: "你是一名资深内容营销作者。请根据给定的简报撰写一篇结构完整的长文：\n1. 输出 Markdown，包含一个一级标题与若干二级标题。\n2. 观点清晰，段落精炼，避免口水话。\n3. 如提供了参考资料，引用处需标注对应出处编号。\n4. 只输出正文，不要附加任何说明。",
		UserPrompt:   userPrompt,
		MaxTokens:    defaultDraftMaxTokens,
		Temperature:  defaultDraftTemperature,
	})
	if err != nil {
		return "", err
	}

	draft := strings.TrimSpace(result.Content)
	logAIExchange("DRAFT", "response", draft)

	if draft == "" {
		return "", ErrDraftGenerationEmpty
	}
	return draft, nil
}
