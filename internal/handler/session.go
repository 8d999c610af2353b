package handler

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const editorSessionKey = "editor_id"

// EditorSession 为每个浏览器会话分配稳定的编辑者标识，
// 写入草稿时记录在内容包上，作为并发编辑的审计线索。
func EditorSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)

		editorID, _ := session.Get(editorSessionKey).(string)
		if editorID == "" {
			editorID = uuid.NewString()
			session.Set(editorSessionKey, editorID)
			// 会话保存失败不阻断请求，只是丢失编辑者标识
			_ = session.Save()
		}

		c.Set(editorSessionKey, editorID)
		c.Next()
	}
}

// editorID 读取当前请求的编辑者标识。
func editorID(c *gin.Context) string {
	id, _ := c.Get(editorSessionKey)
	editor, _ := id.(string)
	return editor
}
