package service

import "context"

// Snippet 是检索能力返回的一段带出处的文本片段。
type Snippet struct {
	Text   string
	Source string
	Score  float64
}

// RetrievalProvider 定义检索增强能力。文档摄取、切分与向量化
// 由外部系统负责，这里只消费按相关度排序的查询结果。
type RetrievalProvider interface {
	Retrieve(ctx context.Context, query string, limit int) ([]Snippet, error)
}

// noopRetrievalProvider 在未接入检索系统时使用，始终返回空结果。
type noopRetrievalProvider struct{}

// NewNoopRetrievalProvider 返回一个空实现的检索能力。
func NewNoopRetrievalProvider() RetrievalProvider {
	return noopRetrievalProvider{}
}

func (noopRetrievalProvider) Retrieve(ctx context.Context, query string, limit int) ([]Snippet, error) {
	return nil, nil
}
