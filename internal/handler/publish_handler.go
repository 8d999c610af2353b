package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/packflow/internal/db"
	"github.com/packflow/internal/service"
)

// PublishPack 将内容包的生效衍生稿推送到指定渠道。
// 状态校验属于调用方工作流：只有 approved / published 的内容包
// 才具备发布资格，编排器本身不再重复校验生命周期。
func (a *API) PublishPack(c *gin.Context) {
	packID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容包ID")
		return
	}

	var input struct {
		Platforms []string `json:"platforms"`
	}
	if !bindJSON(c, &input, "无效的发布请求") {
		return
	}

	pack, err := a.packs.Get(packID)
	if err != nil {
		if errors.Is(err, service.ErrPackNotFound) {
			respondError(c, http.StatusNotFound, "内容包不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "读取内容包失败")
		return
	}

	if pack.Status != db.PackStatusApproved && pack.Status != db.PackStatusPublished {
		respondError(c, http.StatusConflict, "内容包尚未通过审批，不能发布")
		return
	}

	records, err := a.publishes.Publish(c.Request.Context(), packID, input.Platforms)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoDerivatives):
			respondError(c, http.StatusConflict, "尚未生成衍生稿，请先生成再发布")
		case errors.Is(err, service.ErrNoPlatformsRequested):
			respondError(c, http.StatusBadRequest, "请至少选择一个发布渠道")
		default:
			respondError(c, http.StatusInternalServerError, "发布失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": records})
}

// ListPublishRecords 获取内容包的发布审计记录
func (a *API) ListPublishRecords(c *gin.Context) {
	packID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容包ID")
		return
	}

	records, err := a.publishes.ListRecords(packID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取发布记录失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}
