// Package platform 封装面向外部发布渠道的适配器。
// 核心只依赖 Publisher 能力接口，凭据结构由各适配器自行消化。
package platform

import (
	"context"
	"errors"
	"net/http"
)

// 支持的外部发布渠道。
const (
	KindMailchimp = "mailchimp"
	KindWordPress = "wordpress"
)

// ErrNotConfigured 表示适配器缺少必需的凭据配置。
var ErrNotConfigured = errors.New("platform is not configured")

// Payload 是发布到外部平台所需的全部内容，由当前生效的衍生稿组装而来。
type Payload struct {
	Title          string
	EmailSubject   string
	EmailBody      string
	BlogMarkdown   string
	BlogSummary    string
	SEODescription string
	TwitterThread  []string
}

// Publisher 定义单个外部平台的发布能力。返回平台侧分配的标识
// （如 campaign id、post id），供审计记录引用。
type Publisher interface {
	Kind() string
	Publish(ctx context.Context, payload Payload) (string, error)
}

// TransientError 包装可重试的失败（网络错误、超时、服务端 5xx）。
// 鉴权失败与请求体错误不属于此类，记录一次后不再自动重试。
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// MarkTransient 将错误标记为可重试。
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient 判断错误是否值得重试。
func IsTransient(err error) bool {
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
