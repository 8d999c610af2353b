package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
)

// WordPressConfig 是 WordPress 渠道所需的站点地址与应用密码凭据。
type WordPressConfig struct {
	BaseURL     string
	Username    string
	AppPassword string
}

// WordPressPublisher 将博客衍生稿发布为一篇 WordPress 文章。
// Markdown 正文在本地渲染为 HTML 后经 REST API 创建，返回文章 id。
type WordPressPublisher struct {
	config WordPressConfig
	http   httpDoer
}

// NewWordPressPublisher 构造 WordPress 适配器。
func NewWordPressPublisher(config WordPressConfig) *WordPressPublisher {
	config.BaseURL = strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	return &WordPressPublisher{
		config: config,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Kind 返回渠道标识。
func (p *WordPressPublisher) Kind() string {
	return KindWordPress
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (p *WordPressPublisher) SetHTTPClient(client httpDoer) {
	if client == nil {
		p.http = &http.Client{Timeout: 30 * time.Second}
		return
	}
	p.http = client
}

// SetBaseURL 覆盖站点地址，便于测试。
func (p *WordPressPublisher) SetBaseURL(base string) {
	p.config.BaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

type wordPressPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt,omitempty"`
	Status  string `json:"status"`
}

type wordPressPostResponse struct {
	ID      int    `json:"id"`
	Message string `json:"message"`
}

// Publish 渲染博客正文并创建 WordPress 文章。
func (p *WordPressPublisher) Publish(ctx context.Context, payload Payload) (string, error) {
	if p.config.BaseURL == "" || strings.TrimSpace(p.config.Username) == "" || strings.TrimSpace(p.config.AppPassword) == "" {
		return "", fmt.Errorf("%w: wordpress", ErrNotConfigured)
	}

	var rendered bytes.Buffer
	if err := goldmark.Convert([]byte(payload.BlogMarkdown), &rendered); err != nil {
		return "", fmt.Errorf("渲染博客正文失败: %w", err)
	}

	post := wordPressPostRequest{
		Title:   payload.Title,
		Content: rendered.String(),
		Excerpt: payload.SEODescription,
		Status:  "publish",
	}

	encoded, err := json.Marshal(post)
	if err != nil {
		return "", fmt.Errorf("构造 wordpress 请求失败: %w", err)
	}

	endpoint := p.config.BaseURL + "/wp-json/wp/v2/posts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("创建 wordpress 请求失败: %w", err)
	}
	req.SetBasicAuth(p.config.Username, p.config.AppPassword)
	req.Header.Set("Content-Type", "application/json")

	client := p.http
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", MarkTransient(fmt.Errorf("请求 wordpress 接口失败: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", MarkTransient(fmt.Errorf("读取 wordpress 响应失败: %w", err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", MarkTransient(fmt.Errorf("wordpress 服务端错误：%s", resp.Status))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var failure wordPressPostResponse
		_ = json.Unmarshal(respBody, &failure)
		msg := strings.TrimSpace(failure.Message)
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("wordpress 返回错误：%s", msg)
	}

	var created wordPressPostResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("解析 wordpress 响应失败: %w", err)
	}
	if created.ID == 0 {
		return "", fmt.Errorf("wordpress 未返回文章 id")
	}

	return strconv.Itoa(created.ID), nil
}
