package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/packflow/internal/service"
)

// GetSettings 返回系统设置。API Key 只回显是否已配置，
// 凭据本身绝不出现在响应中。
func (a *API) GetSettings(c *gin.Context) {
	settings, err := a.system.GetSettings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "读取系统设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ai_provider":           settings.AIProvider,
		"openai_key_configured": strings.TrimSpace(settings.OpenAIAPIKey) != "",
		"deepseek_key_configured": strings.TrimSpace(settings.DeepSeekAPIKey) != "",
	})
}

// UpdateSettings 更新系统设置
func (a *API) UpdateSettings(c *gin.Context) {
	var input struct {
		AIProvider     string `json:"ai_provider"`
		OpenAIAPIKey   string `json:"openai_api_key"`
		DeepSeekAPIKey string `json:"deepseek_api_key"`
	}
	if !bindJSON(c, &input, "无效的设置数据") {
		return
	}

	if _, err := a.system.UpdateSettings(service.SystemSettingsInput{
		AIProvider:     input.AIProvider,
		OpenAIAPIKey:   input.OpenAIAPIKey,
		DeepSeekAPIKey: input.DeepSeekAPIKey,
	}); err != nil {
		respondError(c, http.StatusInternalServerError, "保存系统设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "系统设置已保存"})
}

// TestAIConnection 验证指定平台 API Key 的有效性
func (a *API) TestAIConnection(c *gin.Context) {
	var input struct {
		Provider string `json:"provider"`
		APIKey   string `json:"api_key"`
	}
	if !bindJSON(c, &input, "无效的测试请求") {
		return
	}

	if err := a.system.TestAIConnection(c.Request.Context(), input.Provider, input.APIKey); err != nil {
		if errors.Is(err, service.ErrAIAPIKeyMissing) {
			respondError(c, http.StatusBadRequest, "请先填写 API Key")
			return
		}
		respondError(c, http.StatusBadGateway, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "连接测试通过"})
}
