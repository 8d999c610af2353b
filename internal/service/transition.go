package service

import (
	"errors"
	"fmt"

	"github.com/packflow/internal/db"
)

// ErrInvalidTransition 表示请求了一次非法的状态流转。
var ErrInvalidTransition = errors.New("invalid status transition")

// allowedTransitions 定义内容包状态机的全部合法流转边。
// 服务端是状态流转的唯一权威，前端按钮只是它的展示镜像。
var allowedTransitions = map[string][]string{
	db.PackStatusDraft:     {db.PackStatusReview},
	db.PackStatusReview:    {db.PackStatusDraft, db.PackStatusApproved},
	db.PackStatusApproved:  {db.PackStatusReview, db.PackStatusPublished},
	db.PackStatusPublished: {db.PackStatusApproved},
}

// CanTransition 判断从 current 到 target 的状态流转是否合法。
// 纯函数，无副作用，任何写路径在落库前都必须先经过它。
func CanTransition(current, target string) bool {
	for _, next := range allowedTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// CheckTransition 在流转非法时返回带具体状态对的 ErrInvalidTransition。
func CheckTransition(current, target string) error {
	if CanTransition(current, target) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
}
