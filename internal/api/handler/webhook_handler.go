package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/pkg/response"
	"github.com/roni12291832/nexus-car/internal/service/lead"
	"github.com/roni12291832/nexus-car/internal/webhook"
)

// WebhookHandler recebe os eventos de mensagem que o gateway entrega no
// webhook de recebimento. Mensagem de contato novo vira lead.
type WebhookHandler struct {
	leads   *lead.Service
	emitter *webhook.Emitter
	secret  string
	log     *zap.Logger
}

func NewWebhookHandler(leads *lead.Service, emitter *webhook.Emitter, secret string, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{leads: leads, emitter: emitter, secret: secret, log: log}
}

func (h *WebhookHandler) Register(r *gin.RouterGroup) {
	r.POST("/webhooks/whatsapp", h.IncomingMessage)
}

type incomingMessageRequest struct {
	// O nome da instância é o id do tenant dono da conexão.
	InstanceName string `json:"instance_name" binding:"required"`
	PushName     string `json:"push_name"`
	Sender       string `json:"sender" binding:"required"`
	Message      string `json:"message"`
}

func (h *WebhookHandler) IncomingMessage(c *gin.Context) {
	if h.secret != "" {
		token := c.GetHeader("X-Webhook-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
			response.ErrorWithMessage(c, http.StatusUnauthorized, "token do webhook inválido")
			return
		}
	}

	var req incomingMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	created, err := h.leads.CreateFromMessage(c.Request.Context(), req.InstanceName, req.PushName, req.Sender)
	if err != nil {
		if errors.Is(err, lead.ErrInvalidPhone) {
			// Grupo ou remetente sem número válido; não é erro do emissor.
			h.log.Debug("webhook: remetente sem número válido, ignorando",
				zap.String("sender", req.Sender))
			response.Success(c, http.StatusOK, gin.H{"ignored": true})
			return
		}
		h.log.Error("webhook: falha ao registrar lead da mensagem", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao processar mensagem")
		return
	}

	h.emitter.Emit(c.Request.Context(), req.InstanceName, webhook.EventLeadCreated, map[string]interface{}{
		"leadId": created.ID,
		"name":   created.Name,
		"phone":  created.Phone,
		"stage":  created.Stage,
	})

	response.Success(c, http.StatusCreated, created)
}
