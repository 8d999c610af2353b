package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// 导出格式。
const (
	ExportFormatJSON     = "json"
	ExportFormatMarkdown = "markdown"
	ExportFormatHTML     = "html"
)

// 平台软性长度约束。生成端不强制，预览与导出只提示不拒绝。
const (
	tweetSoftLimitRunes = 280
	seoSoftMinRunes     = 150
	seoSoftMaxRunes     = 160
)

// ErrUnsupportedExportFormat 表示请求了未知的导出格式。
var ErrUnsupportedExportFormat = errors.New("unsupported export format")

// exportBundle 是 JSON 导出的结构化形式，字段顺序即序列化顺序。
type exportBundle struct {
	PackID         uint     `json:"pack_id"`
	TwitterThread  []string `json:"twitter_thread"`
	LinkedIn       string   `json:"linkedin"`
	Email          string   `json:"email"`
	BlogSummary    string   `json:"blog_summary"`
	SEODescription string   `json:"seo_description"`
	Warnings       []string `json:"warnings,omitempty"`
}

// exportSection 描述 Markdown 导出中一个小节的标题与正文。
type exportSection struct {
	title string
	body  string
}

// ExportService 将生效的衍生稿集合序列化为可下载的内容束。
// 纯读取路径，不产生任何写入。
type ExportService struct {
	derivatives *DerivativeService
	sanitizer   *bluemonday.Policy
}

// NewExportService creates an ExportService instance.
func NewExportService(derivatives *DerivativeService) *ExportService {
	return &ExportService{
		derivatives: derivatives,
		sanitizer:   bluemonday.UGCPolicy(),
	}
}

// NormalizeFormat 归一导出格式别名，未知格式返回错误。
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", ExportFormatJSON:
		return ExportFormatJSON, nil
	case "md", ExportFormatMarkdown:
		return ExportFormatMarkdown, nil
	case ExportFormatHTML:
		return ExportFormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedExportFormat, format)
	}
}

// Export 序列化内容包当前生效的衍生稿集合，返回内容与 MIME 类型。
// 没有完整的生效集合时返回 ErrNoDerivatives，绝不输出残缺内容束。
func (s *ExportService) Export(packID uint, format string) ([]byte, string, error) {
	normalized, err := NormalizeFormat(format)
	if err != nil {
		return nil, "", err
	}

	set, err := s.derivatives.ActiveSet(packID)
	if err != nil {
		return nil, "", err
	}

	switch normalized {
	case ExportFormatJSON:
		return s.exportJSON(packID, set)
	case ExportFormatMarkdown:
		content := s.renderMarkdown(set)
		return []byte(content), "text/markdown; charset=utf-8", nil
	default:
		return s.exportHTML(set)
	}
}

// Lint 检查软性长度约束，返回人类可读的提示列表。
// 提示永远不阻断任何流程。
func (s *ExportService) Lint(set *DerivativeSet) []string {
	var warnings []string
	for i, tweet := range set.TwitterThread {
		if count := utf8.RuneCountInString(tweet); count > tweetSoftLimitRunes {
			warnings = append(warnings, fmt.Sprintf("推文 %d 长度 %d 字符，超过建议的 %d", i+1, count, tweetSoftLimitRunes))
		}
	}
	if count := utf8.RuneCountInString(strings.TrimSpace(set.SEODescription)); count > 0 {
		if count < seoSoftMinRunes || count > seoSoftMaxRunes {
			warnings = append(warnings, fmt.Sprintf("SEO 描述长度 %d 字符，建议范围 %d-%d", count, seoSoftMinRunes, seoSoftMaxRunes))
		}
	}
	return warnings
}

func (s *ExportService) exportJSON(packID uint, set *DerivativeSet) ([]byte, string, error) {
	bundle := exportBundle{
		PackID:         packID,
		TwitterThread:  set.TwitterThread,
		LinkedIn:       set.LinkedIn,
		Email:          set.Email,
		BlogSummary:    set.BlogSummary,
		SEODescription: set.SEODescription,
		Warnings:       s.Lint(set),
	}

	encoded, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("序列化导出内容失败: %w", err)
	}
	return encoded, "application/json; charset=utf-8", nil
}

// renderMarkdown 按固定顺序渲染各小节，小节之间以水平分隔线隔开。
func (s *ExportService) renderMarkdown(set *DerivativeSet) string {
	var thread strings.Builder
	for i, tweet := range set.TwitterThread {
		fmt.Fprintf(&thread, "%d. %s\n", i+1, tweet)
	}

	sections := []exportSection{
		{title: "Twitter Thread", body: strings.TrimRight(thread.String(), "\n")},
		{title: "LinkedIn", body: set.LinkedIn},
		{title: "Email", body: set.Email},
		{title: "Blog Summary", body: set.BlogSummary},
		{title: "SEO Description", body: set.SEODescription},
	}

	var builder strings.Builder
	for i, section := range sections {
		if i > 0 {
			builder.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&builder, "## %s\n\n%s\n", section.title, strings.TrimSpace(section.body))
	}
	return builder.String()
}

func (s *ExportService) exportHTML(set *DerivativeSet) ([]byte, string, error) {
	var rendered bytes.Buffer
	if err := goldmark.Convert([]byte(s.renderMarkdown(set)), &rendered); err != nil {
		return nil, "", fmt.Errorf("渲染导出内容失败: %w", err)
	}
	sanitized := s.sanitizer.SanitizeBytes(rendered.Bytes())
	return sanitized, "text/html; charset=utf-8", nil
}
