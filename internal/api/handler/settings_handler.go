package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/pkg/response"
	"github.com/roni12291832/nexus-car/internal/service/settings"
	"github.com/roni12291832/nexus-car/internal/storage/model"
)

type SettingsHandler struct {
	service *settings.Service
	log     *zap.Logger
}

func NewSettingsHandler(service *settings.Service, log *zap.Logger) *SettingsHandler {
	return &SettingsHandler{service: service, log: log}
}

func (h *SettingsHandler) Register(r *gin.RouterGroup) {
	r.GET("/settings", h.Get)
	r.PUT("/settings", h.Save)
}

func (h *SettingsHandler) Get(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	s, err := h.service.Get(c.Request.Context(), tenantID)
	if err != nil {
		h.log.Error("falha ao consultar configurações", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao consultar configurações")
		return
	}
	response.Success(c, http.StatusOK, s)
}

type settingsRequest struct {
	StoreName            string `json:"storeName"`
	Email                string `json:"email"`
	OpenTime             string `json:"openTime"`
	CloseTime            string `json:"closeTime"`
	WeekendOpen          bool   `json:"weekendOpen"`
	BusinessHoursMessage string `json:"businessHoursMessage"`
}

func (h *SettingsHandler) Save(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	saved, err := h.service.Save(c.Request.Context(), model.StoreSettings{
		TenantID:             tenantID,
		StoreName:            req.StoreName,
		Email:                req.Email,
		OpenTime:             req.OpenTime,
		CloseTime:            req.CloseTime,
		WeekendOpen:          req.WeekendOpen,
		BusinessHoursMessage: req.BusinessHoursMessage,
	})
	if err != nil {
		h.log.Error("falha ao salvar configurações", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao salvar configurações")
		return
	}
	response.Success(c, http.StatusOK, saved)
}
