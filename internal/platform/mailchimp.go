package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MailchimpConfig 是 Mailchimp 渠道所需的凭据与默认发件信息。
type MailchimpConfig struct {
	APIKey   string
	ListID   string
	FromName string
	ReplyTo  string
}

// MailchimpPublisher 将邮件衍生稿发布为一封 Mailchimp campaign。
// 先创建 campaign，再写入邮件正文，返回 campaign id。
type MailchimpPublisher struct {
	config  MailchimpConfig
	baseURL string
	http    httpDoer
}

// NewMailchimpPublisher 构造 Mailchimp 适配器。API Key 的后缀
// 即数据中心标识（如 xxx-us21），用于拼接 API 地址。
func NewMailchimpPublisher(config MailchimpConfig) *MailchimpPublisher {
	baseURL := ""
	if parts := strings.SplitN(strings.TrimSpace(config.APIKey), "-", 2); len(parts) == 2 && parts[1] != "" {
		baseURL = fmt.Sprintf("https://%s.api.mailchimp.com/3.0", parts[1])
	}
	return &MailchimpPublisher{
		config:  config,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Kind 返回渠道标识。
func (p *MailchimpPublisher) Kind() string {
	return KindMailchimp
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (p *MailchimpPublisher) SetHTTPClient(client httpDoer) {
	if client == nil {
		p.http = &http.Client{Timeout: 30 * time.Second}
		return
	}
	p.http = client
}

// SetBaseURL 覆盖默认的 API 地址，便于测试。
func (p *MailchimpPublisher) SetBaseURL(base string) {
	p.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

type mailchimpCampaignRequest struct {
	Type       string `json:"type"`
	Recipients struct {
		ListID string `json:"list_id"`
	} `json:"recipients"`
	Settings struct {
		SubjectLine string `json:"subject_line"`
		Title       string `json:"title"`
		FromName    string `json:"from_name"`
		ReplyTo     string `json:"reply_to"`
	} `json:"settings"`
}

type mailchimpCampaignResponse struct {
	ID     string `json:"id"`
	Detail string `json:"detail"`
}

// Publish 创建 campaign 并写入邮件正文。
func (p *MailchimpPublisher) Publish(ctx context.Context, payload Payload) (string, error) {
	if strings.TrimSpace(p.config.APIKey) == "" || strings.TrimSpace(p.config.ListID) == "" || p.baseURL == "" {
		return "", fmt.Errorf("%w: mailchimp", ErrNotConfigured)
	}

	campaign := mailchimpCampaignRequest{Type: "regular"}
	campaign.Recipients.ListID = p.config.ListID
	campaign.Settings.SubjectLine = payload.EmailSubject
	campaign.Settings.Title = payload.Title
	campaign.Settings.FromName = p.config.FromName
	campaign.Settings.ReplyTo = p.config.ReplyTo

	var created mailchimpCampaignResponse
	if err := p.do(ctx, http.MethodPost, "/campaigns", campaign, &created); err != nil {
		return "", err
	}
	if strings.TrimSpace(created.ID) == "" {
		return "", fmt.Errorf("mailchimp 未返回 campaign id")
	}

	content := map[string]string{"plain_text": payload.EmailBody}
	if err := p.do(ctx, http.MethodPut, "/campaigns/"+created.ID+"/content", content, nil); err != nil {
		return "", err
	}

	return created.ID, nil
}

func (p *MailchimpPublisher) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("构造 mailchimp 请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("创建 mailchimp 请求失败: %w", err)
	}
	req.SetBasicAuth("anystring", p.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := p.http
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		// 网络层失败视为可重试
		return MarkTransient(fmt.Errorf("请求 mailchimp 接口失败: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return MarkTransient(fmt.Errorf("读取 mailchimp 响应失败: %w", err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return MarkTransient(fmt.Errorf("mailchimp 服务端错误：%s", resp.Status))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var failure mailchimpCampaignResponse
		_ = json.Unmarshal(respBody, &failure)
		detail := strings.TrimSpace(failure.Detail)
		if detail == "" {
			detail = resp.Status
		}
		return fmt.Errorf("mailchimp 返回错误：%s", detail)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("解析 mailchimp 响应失败: %w", err)
		}
	}
	return nil
}
