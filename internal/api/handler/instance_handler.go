package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/connection"
	"github.com/roni12291832/nexus-car/internal/gateway"
	"github.com/roni12291832/nexus-car/internal/pkg/response"
	"github.com/roni12291832/nexus-car/internal/storage"
)

// InstanceHandler expõe o ciclo de vida das conexões WhatsApp.
type InstanceHandler struct {
	repo       storage.InstanceRepository
	controller *connection.Controller
	reconciler *connection.Reconciler
	log        *zap.Logger
}

func NewInstanceHandler(
	repo storage.InstanceRepository,
	controller *connection.Controller,
	reconciler *connection.Reconciler,
	log *zap.Logger,
) *InstanceHandler {
	return &InstanceHandler{repo: repo, controller: controller, reconciler: reconciler, log: log}
}

func (h *InstanceHandler) Register(r *gin.RouterGroup) {
	r.GET("/instances", h.List)
	r.POST("/instances/generate", h.Generate)
	r.POST("/instances/:id/qr/refresh", h.RefreshQR)
	r.POST("/instances/:id/disconnect", h.Disconnect)
	r.POST("/instances/sync", h.Sync)
}

func (h *InstanceHandler) List(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	instances, err := h.repo.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.log.Error("falha ao listar instâncias", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao listar instâncias")
		return
	}
	for i := range instances {
		instances[i].Token = ""
	}

	response.Success(c, http.StatusOK, instances)
}

// Generate cria a instância no gateway, persiste e inicia o polling. A
// resposta já carrega o QR (ou pairing code) para a UI exibir.
func (h *InstanceHandler) Generate(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	inst, err := h.controller.Generate(c.Request.Context(), tenantID)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrGatewayUnavailable):
			response.ErrorWithMessage(c, http.StatusBadGateway, "gateway de mensagens indisponível")
		case errors.Is(err, gateway.ErrMissingToken):
			response.ErrorWithMessage(c, http.StatusBadGateway, "gateway não devolveu token da instância")
		default:
			h.log.Error("falha ao gerar instância",
				zap.String("tenant_id", tenantID), zap.Error(err))
			response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao criar conexão")
		}
		return
	}

	response.Success(c, http.StatusCreated, inst)
}

func (h *InstanceHandler) RefreshQR(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	id := c.Param("id")

	inst, err := h.controller.RefreshQR(c.Request.Context(), tenantID, id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			response.ErrorWithMessage(c, http.StatusNotFound, "instância não encontrada")
		case errors.Is(err, gateway.ErrInstanceNotFound):
			response.ErrorWithMessage(c, http.StatusGone, "sessão não existe mais no gateway")
		default:
			h.log.Error("falha ao atualizar QR",
				zap.String("instance_id", id), zap.Error(err))
			response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao atualizar QR")
		}
		return
	}

	response.Success(c, http.StatusOK, inst)
}

func (h *InstanceHandler) Disconnect(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	id := c.Param("id")

	if err := h.controller.Disconnect(c.Request.Context(), tenantID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "instância não encontrada")
			return
		}
		h.log.Error("falha ao desconectar instância",
			zap.String("instance_id", id), zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao desconectar")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"disconnected": true})
}

// Sync reconcilia o estado local com o gateway sob demanda.
func (h *InstanceHandler) Sync(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	result, err := h.reconciler.SyncAll(c.Request.Context(), tenantID)
	if err != nil {
		h.log.Error("falha na sincronização de instâncias",
			zap.String("tenant_id", tenantID), zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao sincronizar instâncias")
		return
	}

	response.Success(c, http.StatusOK, result)
}
