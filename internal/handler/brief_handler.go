package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/packflow/internal/service"
)

// CreateBrief 登记一份上游产出的选题简报
func (a *API) CreateBrief(c *gin.Context) {
	var input struct {
		Topic    string `json:"topic"`
		Audience string `json:"audience"`
		Keywords string `json:"keywords"`
		Angle    string `json:"angle"`
		Style    string `json:"style"`
	}
	if !bindJSON(c, &input, "无效的简报数据") {
		return
	}

	brief, err := a.briefs.Create(service.BriefInput{
		Topic:    input.Topic,
		Audience: input.Audience,
		Keywords: input.Keywords,
		Angle:    input.Angle,
		Style:    input.Style,
	})
	if err != nil {
		if errors.Is(err, service.ErrBriefTopicRequired) {
			respondError(c, http.StatusBadRequest, "简报主题不能为空")
			return
		}
		respondError(c, http.StatusInternalServerError, "创建简报失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"brief": brief})
}

// ListBriefs 获取简报列表
func (a *API) ListBriefs(c *gin.Context) {
	briefs, err := a.briefs.ListAll()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取简报列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"briefs": briefs})
}
