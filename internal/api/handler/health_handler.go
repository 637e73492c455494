package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roni12291832/nexus-car/internal/pkg/response"
)

type HealthHandler struct {
	version string
}

func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

func (h *HealthHandler) Register(r *gin.RouterGroup) {
	r.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}
