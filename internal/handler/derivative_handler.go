package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/packflow/internal/service"
)

// GenerateDerivatives 为内容包一次性生成全部五种衍生稿
func (a *API) GenerateDerivatives(c *gin.Context) {
	var input struct {
		PackID uint `json:"pack_id"`
	}
	if !bindJSON(c, &input, "无效的生成请求") {
		return
	}

	set, err := a.derivatives.GenerateAll(c.Request.Context(), input.PackID)
	if err != nil {
		a.respondGenerationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"derivatives": set,
		"warnings":    a.exports.Lint(set),
	})
}

// RegenerateDerivative 只重新生成指定类型的衍生稿
func (a *API) RegenerateDerivative(c *gin.Context) {
	packID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容包ID")
		return
	}

	var input struct {
		Type string `json:"type"`
	}
	if !bindJSON(c, &input, "无效的重生成请求") {
		return
	}

	version, err := a.derivatives.RegenerateOne(c.Request.Context(), packID, strings.TrimSpace(input.Type))
	if err != nil {
		a.respondGenerationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"version": version})
}

// StreamDerivative 以 SSE 流式重新生成指定类型的衍生稿。
// 增量文本以 data 事件下发，正常结束时追加 done 事件作为完成哨兵；
// 客户端若在未收到哨兵时断流，应视为生成未完成。
func (a *API) StreamDerivative(c *gin.Context) {
	packID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容包ID")
		return
	}

	var input struct {
		Type string `json:"type"`
	}
	if !bindJSON(c, &input, "无效的流式生成请求") {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	version, err := a.derivatives.StreamRegenerate(c.Request.Context(), packID, strings.TrimSpace(input.Type), func(delta string) {
		writeSSEEvent(c, "", delta)
	})
	if err != nil {
		// 流已经开始，错误只能以事件形式下发
		writeSSEEvent(c, "error", err.Error())
		return
	}

	writeSSEEvent(c, "done", gin.H{
		"kind":           version.Kind,
		"version_number": version.VersionNumber,
	})
}

// GetDerivatives 获取当前生效的衍生稿集合
func (a *API) GetDerivatives(c *gin.Context) {
	packID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容包ID")
		return
	}

	set, err := a.derivatives.ActiveSet(packID)
	if err != nil {
		if errors.Is(err, service.ErrNoDerivatives) {
			respondError(c, http.StatusNotFound, "尚未生成衍生稿")
			return
		}
		respondError(c, http.StatusInternalServerError, "读取衍生稿失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"derivatives": set,
		"warnings":    a.exports.Lint(set),
	})
}

// ListDerivativeVersions 获取版本历史
func (a *API) ListDerivativeVersions(c *gin.Context) {
	packID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容包ID")
		return
	}

	versions, err := a.derivatives.Versions().ListVersions(packID, strings.TrimSpace(c.Query("type")))
	if err != nil {
		if errors.Is(err, service.ErrUnknownKind) {
			respondError(c, http.StatusBadRequest, "未知的版本类型")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取版本历史失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// ActivateDerivativeVersion 将生效指针回滚或前移到指定版本
func (a *API) ActivateDerivativeVersion(c *gin.Context) {
	packID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容包ID")
		return
	}

	var input struct {
		Kind          string `json:"kind"`
		VersionNumber int    `json:"version_number"`
	}
	if !bindJSON(c, &input, "无效的版本切换请求") {
		return
	}

	version, err := a.derivatives.Versions().SetActive(packID, strings.TrimSpace(input.Kind), input.VersionNumber)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVersionNotFound):
			respondError(c, http.StatusNotFound, "指定版本不存在")
		case errors.Is(err, service.ErrUnknownKind):
			respondError(c, http.StatusBadRequest, "未知的版本类型")
		default:
			respondError(c, http.StatusInternalServerError, "切换版本失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"version": version})
}

// ExportDerivatives 导出生效的衍生稿集合
func (a *API) ExportDerivatives(c *gin.Context) {
	packID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容包ID")
		return
	}

	format := c.DefaultQuery("format", "json")
	content, contentType, err := a.exports.Export(packID, format)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedExportFormat):
			respondError(c, http.StatusBadRequest, "不支持的导出格式")
		case errors.Is(err, service.ErrNoDerivatives):
			respondError(c, http.StatusNotFound, "尚未生成衍生稿")
		default:
			respondError(c, http.StatusInternalServerError, "导出失败")
		}
		return
	}

	normalized, _ := service.NormalizeFormat(format)
	filename := fmt.Sprintf("pack-%d-derivatives.%s", packID, exportFileExt(normalized))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, content)
}

func exportFileExt(format string) string {
	switch format {
	case service.ExportFormatMarkdown:
		return "md"
	case service.ExportFormatHTML:
		return "html"
	default:
		return "json"
	}
}

// respondGenerationError 将生成类错误映射为对应的 HTTP 状态码。
func (a *API) respondGenerationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPackNotFound):
		respondError(c, http.StatusNotFound, "内容包不存在")
	case errors.Is(err, service.ErrGenerationInProgress):
		respondError(c, http.StatusConflict, "该内容包已有生成任务进行中")
	case errors.Is(err, service.ErrGenerationIncomplete):
		respondError(c, http.StatusBadGateway, "生成中断，未写入任何版本")
	case errors.Is(err, service.ErrUnknownKind):
		respondError(c, http.StatusBadRequest, "未知的衍生稿类型")
	case errors.Is(err, service.ErrAIAPIKeyMissing):
		respondError(c, http.StatusBadRequest, "尚未配置 AI API Key")
	default:
		respondError(c, http.StatusBadGateway, "生成失败："+err.Error())
	}
}

// writeSSEEvent 写出一条 SSE 事件并立即刷新缓冲。
func writeSSEEvent(c *gin.Context, event string, data interface{}) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return
	}
	if event != "" {
		fmt.Fprintf(c.Writer, "event: %s\n", event)
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", encoded)
	c.Writer.Flush()
}
