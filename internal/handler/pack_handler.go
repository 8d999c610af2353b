package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/packflow/internal/service"
)

// CreatePackFromBrief 基于简报起草正文并创建内容包
func (a *API) CreatePackFromBrief(c *gin.Context) {
	briefID, err := parseUintParam(c, "briefId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的简报ID")
		return
	}

	var input struct {
		WordCount int    `json:"wordCount"`
		Style     string `json:"style"`
		UseRAG    bool   `json:"useRAG"`
	}
	if !bindJSON(c, &input, "无效的创建参数") {
		return
	}

	brief, err := a.briefs.Get(briefID)
	if err != nil {
		if errors.Is(err, service.ErrBriefNotFound) {
			respondError(c, http.StatusNotFound, "简报不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "读取简报失败")
		return
	}

	draft, err := a.drafts.ComposeDraft(c.Request.Context(), *brief, service.DraftOptions{
		WordCount: input.WordCount,
		Style:     input.Style,
		UseRAG:    input.UseRAG,
	})
	if err != nil {
		if errors.Is(err, service.ErrAIAPIKeyMissing) {
			respondError(c, http.StatusBadRequest, "尚未配置 AI API Key")
			return
		}
		respondError(c, http.StatusBadGateway, "起草正文失败："+err.Error())
		return
	}

	pack, err := a.packs.CreateFromBrief(briefID, draft, editorID(c))
	if err != nil {
		if errors.Is(err, service.ErrDuplicatePack) {
			respondError(c, http.StatusConflict, "该简报已存在内容包")
			return
		}
		respondError(c, http.StatusInternalServerError, "创建内容包失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"pack": pack})
}

// GetPack 获取单个内容包
func (a *API) GetPack(c *gin.Context) {
	packID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容包ID")
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

	c.JSON(http.StatusOK, gin.H{"pack": pack})
}

// ListPacks 获取内容包列表
func (a *API) ListPacks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	result, err := a.packs.List(service.PackFilter{
		Status:  strings.TrimSpace(c.Query("status")),
		Search:  strings.TrimSpace(c.Query("search")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取内容包列表失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"packs":       result.Packs,
		"total":       result.Total,
		"total_pages": result.TotalPages,
		"page":        result.Page,
		"per_page":    result.PerPage,
	})
}

// UpdateDraft 重写草稿正文并追加版本
func (a *API) UpdateDraft(c *gin.Context) {
	packID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容包ID")
		return
	}

	var input struct {
		DraftContent string `json:"draft_content"`
	}
	if !bindJSON(c, &input, "无效的草稿数据") {
		return
	}

	pack, err := a.packs.UpdateDraft(packID, input.DraftContent, editorID(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPackNotFound):
			respondError(c, http.StatusNotFound, "内容包不存在")
		case errors.Is(err, service.ErrDraftEmpty):
			respondError(c, http.StatusBadRequest, "草稿正文不能为空")
		default:
			respondError(c, http.StatusInternalServerError, "更新草稿失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"pack": pack})
}

// UpdatePackStatus 请求一次生命周期状态流转
func (a *API) UpdatePackStatus(c *gin.Context) {
	var input struct {
		PackID uint   `json:"pack_id"`
		Status string `json:"status"`
	}
	if !bindJSON(c, &input, "无效的状态流转请求") {
		return
	}

	pack, err := a.packs.SetStatus(input.PackID, strings.TrimSpace(input.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPackNotFound):
			respondError(c, http.StatusNotFound, "内容包不存在")
		case errors.Is(err, service.ErrInvalidTransition):
			// 把具体的 from -> to 信息透传给调用方
			respondError(c, http.StatusConflict, err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "更新状态失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"pack": pack})
}

// DeletePack 删除内容包及其全部版本与发布记录
func (a *API) DeletePack(c *gin.Context) {
	packID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容包ID")
		return
	}

	if err := a.packs.Delete(packID); err != nil {
		respondError(c, http.StatusInternalServerError, "删除内容包失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "内容包已删除"})
}
