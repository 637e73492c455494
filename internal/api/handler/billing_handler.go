package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/pkg/response"
	"github.com/roni12291832/nexus-car/internal/service/billing"
)

type BillingHandler struct {
	service *billing.Service
	log     *zap.Logger
}

func NewBillingHandler(service *billing.Service, log *zap.Logger) *BillingHandler {
	return &BillingHandler{service: service, log: log}
}

// Register registra as rotas autenticadas de cobrança.
func (h *BillingHandler) Register(r *gin.RouterGroup) {
	r.POST("/billing/checkout", h.Checkout)
	r.POST("/billing/portal", h.Portal)
}

// RegisterPublic registra o webhook do Stripe; a autenticação é a
// assinatura do próprio evento, nunca o JWT.
func (h *BillingHandler) RegisterPublic(r *gin.RouterGroup) {
	r.POST("/billing/webhook", h.Webhook)
}

func (h *BillingHandler) Checkout(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	url, err := h.service.CreateCheckoutSession(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			response.ErrorWithMessage(c, http.StatusServiceUnavailable, "cobrança não configurada")
			return
		}
		h.log.Error("falha ao criar checkout", zap.String("tenant_id", tenantID), zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao criar checkout")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"url": url})
}

type portalRequest struct {
	CustomerID string `json:"customerId" binding:"required"`
}

func (h *BillingHandler) Portal(c *gin.Context) {
	var req portalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	url, err := h.service.CreatePortalSession(c.Request.Context(), req.CustomerID)
	if err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			response.ErrorWithMessage(c, http.StatusServiceUnavailable, "cobrança não configurada")
			return
		}
		h.log.Error("falha ao criar portal de assinatura", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao criar portal")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"url": url})
}

// Webhook recebe eventos do Stripe. O corpo cru é necessário para
// validar a assinatura; ShouldBindJSON o consumiria antes.
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		response.ErrorWithMessage(c, http.StatusBadRequest, "corpo ilegível")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.service.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		h.log.Warn("webhook do stripe rejeitado", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusBadRequest, "evento rejeitado")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"received": true})
}
