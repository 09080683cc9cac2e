package handlers

import (
	"net/http"

	"course-enrollment/internal/api/middleware"
	serviceInterfaces "course-enrollment/internal/interfaces/service"
	"course-enrollment/pkg/logger"
	"course-enrollment/pkg/response"

	"github.com/gin-gonic/gin"
)

// SettingHandler exposes runtime settings administration
type SettingHandler struct {
	settingService serviceInterfaces.SettingService
}

func NewSettingHandler(settingService serviceInterfaces.SettingService) *SettingHandler {
	return &SettingHandler{settingService: settingService}
}

// Reload handles POST /api/v1/settings/reload
func (h *SettingHandler) Reload(c *gin.Context) {
	if err := h.settingService.Reload(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	logger.Info("Settings reloaded on request %s", c.GetString(middleware.RequestIDKey))
	response.Success(c, http.StatusOK, "Settings reloaded", nil)
}
