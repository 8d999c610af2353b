package handler

import (
	"github.com/packflow/internal/platform"
	"github.com/packflow/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	briefs      *service.BriefService
	packs       *service.PackService
	derivatives *service.DerivativeService
	publishes   *service.PublishService
	exports     *service.ExportService
	system      *service.SystemSettingService
	drafts      service.DraftComposer
}

// NewAPI constructs a handler set with shared services.
// publishers 由 main 按配置装配，未配置的渠道不会出现在表中。
func NewAPI(gdb *gorm.DB, publishers map[string]platform.Publisher) *API {
	systemService := service.NewSystemSettingService(gdb)
	generator := service.NewAIDerivativeService(systemService)
	derivativeService := service.NewDerivativeService(gdb, generator)

	return &API{
		briefs:      service.NewBriefService(gdb),
		packs:       service.NewPackService(gdb),
		derivatives: derivativeService,
		publishes:   service.NewPublishService(gdb, derivativeService, publishers),
		exports:     service.NewExportService(derivativeService),
		system:      systemService,
		drafts:      service.NewAIDraftService(systemService, service.NewNoopRetrievalProvider()),
	}
}

// SetDraftComposer 覆盖草稿起草实现，主要用于测试。
func (a *API) SetDraftComposer(composer service.DraftComposer) {
	if composer != nil {
		a.drafts = composer
	}
}

// SetDerivativeService 覆盖衍生稿编排服务，主要用于测试。
func (a *API) SetDerivativeService(derivatives *service.DerivativeService) {
	if derivatives != nil {
		a.derivatives = derivatives
		a.exports = service.NewExportService(derivatives)
	}
}

// SetPublishService 覆盖发布编排服务，主要用于测试。
func (a *API) SetPublishService(publishes *service.PublishService) {
	if publishes != nil {
		a.publishes = publishes
	}
}
