package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// StreamState 表示一次流式生成会话所处的阶段。
type StreamState int

const (
	StreamIdle StreamState = iota
	StreamStreaming
	StreamComplete
	StreamIncomplete
	StreamCancelled
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamStreaming:
		return "streaming"
	case StreamComplete:
		return "complete"
	case StreamIncomplete:
		return "incomplete"
	case StreamCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StreamChunk 是流式生成过程中的一段增量文本。
// Done 为 true 的块是完成信号，之后不会再有内容。
type StreamChunk struct {
	Delta string
	Done  bool
}

// GenerationSession 将增量流聚合为最终文本。只有收到完成信号后
// 结果才可读取；流在完成前断开或被取消都不会产出文本。
type GenerationSession struct {
	ID      string
	Kind    string
	state   StreamState
	builder strings.Builder
}

func newGenerationSession(kind string) *GenerationSession {
	return &GenerationSession{
		ID:    uuid.NewString(),
		Kind:  kind,
		state: StreamIdle,
	}
}

// Consume 消费增量块直到完成信号、通道关闭或上下文取消。
// onDelta 在每段增量到达时回调，可用于向客户端转发。
func (s *GenerationSession) Consume(ctx context.Context, chunks <-chan StreamChunk, onDelta func(string)) error {
	s.state = StreamStreaming
	for {
		select {
		case <-ctx.Done():
			s.state = StreamCancelled
			return fmt.Errorf("%w: %v", ErrGenerationIncomplete, ctx.Err())
		case chunk, ok := <-chunks:
			if !ok {
				// 通道在完成信号之前关闭，视为中断
				s.state = StreamIncomplete
				return ErrGenerationIncomplete
			}
			if chunk.Delta != "" {
				s.builder.WriteString(chunk.Delta)
				if onDelta != nil {
					onDelta(chunk.Delta)
				}
			}
			if chunk.Done {
				s.state = StreamComplete
				return nil
			}
		}
	}
}

// State 返回会话当前所处的阶段。
func (s *GenerationSession) State() StreamState {
	return s.state
}

// Text 返回聚合后的完整文本，会话未完成时返回 ErrGenerationIncomplete。
func (s *GenerationSession) Text() (string, error) {
	if s.state != StreamComplete {
		return "", ErrGenerationIncomplete
	}
	return s.builder.String(), nil
}
