package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/packflow/internal/db"
)

const (
	defaultOpenAIDerivativeModel   = "gpt-4o-mini"
	defaultDeepSeekDerivativeModel = "deepseek-chat"
	defaultDerivativeMaxTokens     = 1200
	defaultDerivativeTemperature   = 0.4
	maxDerivativeDraftRuneCount    = 12000
)

// ErrDerivativeEmpty 表示模型未返回可用内容。
var ErrDerivativeEmpty = errors.New("ai derivative returned empty content")

// DerivativeInput 描述生成单个衍生稿所需的上下文。
type DerivativeInput struct {
	Kind      string
	DraftBody string
	// MaxTokens 控制模型输出上限，0 表示使用默认值。
	MaxTokens int
}

// DerivativeResult 返回模型生成的衍生稿及用量信息。
type DerivativeResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// DerivativeGenerator 定义衍生稿生成能力，便于在业务层注入不同实现。
type DerivativeGenerator interface {
	GenerateDerivative(ctx context.Context, input DerivativeInput) (DerivativeResult, error)
	StreamDerivative(ctx context.Context, input DerivativeInput) (<-chan StreamChunk, error)
}

// derivativeSystemPrompts 按衍生稿类型给出各自的写作指令。
// 长度要求（单条推文 280 字符、SEO 描述 150–160 字符）只是
// 建议值，越界产物照常接受，由预览与导出环节提示。
var derivativeSystemPrompts = map[string]string{
	db.KindTwitterThread: "你是一名社交媒体运营专家。请将给定的长文改写为一条 Twitter 串：\n1. 每条推文独立成行，不要编号之外的前缀。\n2. 单条推文建议不超过 280 个字符。\n3. 第一条要有钩子，最后一条给出行动号召。\n4. 只输出推文内容，每条一行，不要附加说明。",
	db.KindLinkedIn:      "你是一名 LinkedIn 内容策略师。请将给定的长文改写为一篇适合 LinkedIn 的帖子：语气专业但不失温度，分段简短，结尾附带开放式问题引导讨论。只输出帖子正文。",
	db.KindEmail:         "你是一名邮件营销文案。请将给定的长文改写为一封营销邮件：第一行以 Subject: 开头给出主题行，空一行后是正文；正文口吻亲切直接，包含一个明确的行动号召。只输出邮件内容。",
	db.KindBlogSummary:   "你是一名博客编辑。请为给定的长文撰写一段导读式摘要，两到三个自然段，概述核心观点并给出阅读理由。只输出摘要正文。",
	db.KindSEODescription: "你是一名 SEO 专家。请为给定的长文撰写一段搜索引擎描述，建议长度 150 到 160 个字符，包含核心关键词，语句完整。只输出描述文本。",
}

// AIDerivativeService 基于大模型接口生成各平台衍生稿。
type AIDerivativeService struct {
	client *aiChatClient
}

// NewAIDerivativeService 构造默认的 AIDerivativeService。
func NewAIDerivativeService(settings *SystemSettingService) *AIDerivativeService {
	return &AIDerivativeService{
		client: newAIChatClient(settings, defaultOpenAIDerivativeModel, defaultDeepSeekDerivativeModel),
	}
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (s *AIDerivativeService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetOpenAIBaseURL 覆盖默认的 OpenAI API 地址。
func (s *AIDerivativeService) SetOpenAIBaseURL(base string) {
	s.client.SetOpenAIBaseURL(base)
}

// SetDeepSeekBaseURL 覆盖默认的 DeepSeek API 地址。
func (s *AIDerivativeService) SetDeepSeekBaseURL(base string) {
	s.client.SetDeepSeekBaseURL(base)
}

// SetOpenAIModel 指定 OpenAI 衍生稿生成所使用的模型名称。
func (s *AIDerivativeService) SetOpenAIModel(model string) {
	s.client.SetOpenAIModel(model)
}

// SetDeepSeekModel 指定 DeepSeek 衍生稿生成所使用的模型名称。
func (s *AIDerivativeService) SetDeepSeekModel(model string) {
	s.client.SetDeepSeekModel(model)
}

// GenerateDerivative 调用当前配置的 AI 平台生成单个衍生稿。
func (s *AIDerivativeService) GenerateDerivative(ctx context.Context, input DerivativeInput) (DerivativeResult, error) {
	req, err := s.buildRequest(input)
	if err != nil {
		return DerivativeResult{}, err
	}

	logAIExchange(strings.ToUpper(input.Kind), "prompt", req.UserPrompt)

	result, err := s.client.call(ctx, req)
	if err != nil {
		return DerivativeResult{}, err
	}

	content := strings.TrimSpace(result.Content)
	logAIExchange(strings.ToUpper(input.Kind), "response", content)

	if content == "" {
		return DerivativeResult{}, ErrDerivativeEmpty
	}

	return DerivativeResult{
		Content:          content,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}, nil
}

// StreamDerivative 以流式方式生成单个衍生稿，返回增量块通道。
func (s *AIDerivativeService) StreamDerivative(ctx context.Context, input DerivativeInput) (<-chan StreamChunk, error) {
	req, err := s.buildRequest(input)
	if err != nil {
		return nil, err
	}

	logAIExchange(strings.ToUpper(input.Kind), "stream-prompt", req.UserPrompt)
	return s.client.stream(ctx, req)
}

func (s *AIDerivativeService) buildRequest(input DerivativeInput) (aiChatRequest, error) {
	systemPrompt, ok := derivativeSystemPrompts[input.Kind]
	if !ok {
		return aiChatRequest{}, fmt.Errorf("%w: %s", ErrUnknownKind, input.Kind)
	}

	draft := strings.TrimSpace(input.DraftBody)
	if draft == "" {
		return aiChatRequest{}, ErrDraftEmpty
	}

	maxTokens := input.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultDerivativeMaxTokens
	}

	sanitized, _ := compressMarkdownImageURLs(draft)
	snippet := truncateRunes(sanitized, maxDerivativeDraftRuneCount)

	var builder strings.Builder
	builder.WriteString("原文（Markdown）：\n")
	builder.WriteString(strings.TrimSpace(snippet))

	return aiChatRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   builder.String(),
		MaxTokens:    maxTokens,
		Temperature:  defaultDerivativeTemperature,
	}, nil
}
