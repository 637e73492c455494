package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/board"
	"github.com/roni12291832/nexus-car/internal/pkg/response"
	"github.com/roni12291832/nexus-car/internal/service/lead"
	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
	"github.com/roni12291832/nexus-car/internal/webhook"
)

type LeadHandler struct {
	service *lead.Service
	board   *board.Manager
	emitter *webhook.Emitter
	log     *zap.Logger
}

func NewLeadHandler(service *lead.Service, boardManager *board.Manager, emitter *webhook.Emitter, log *zap.Logger) *LeadHandler {
	return &LeadHandler{service: service, board: boardManager, emitter: emitter, log: log}
}

func (h *LeadHandler) Register(r *gin.RouterGroup) {
	r.GET("/leads", h.List)
	r.GET("/leads/:id", h.Get)
	r.POST("/leads", h.Create)
	r.PUT("/leads/:id", h.Update)
	r.PATCH("/leads/:id/stage", h.MoveStage)
}

func (h *LeadHandler) List(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	leads, err := h.service.List(c.Request.Context(), tenantID)
	if err != nil {
		h.log.Error("falha ao listar leads", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao listar leads")
		return
	}
	response.Success(c, http.StatusOK, leads)
}

func (h *LeadHandler) Get(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	l, err := h.service.Get(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "lead não encontrado")
			return
		}
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao consultar lead")
		return
	}
	response.Success(c, http.StatusOK, l)
}

type createLeadRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Stage    string `json:"stage"`
	Interest string `json:"interest"`
}

func (h *LeadHandler) Create(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	var req createLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), model.Lead{
		TenantID: tenantID,
		Name:     req.Name,
		Phone:    req.Phone,
		Stage:    model.LeadStage(req.Stage),
		Interest: req.Interest,
	})
	if err != nil {
		if errors.Is(err, lead.ErrInvalidPhone) {
			response.Error(c, http.StatusBadRequest, err)
			return
		}
		h.log.Error("falha ao criar lead", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao criar lead")
		return
	}

	h.emitter.Emit(c.Request.Context(), tenantID, webhook.EventLeadCreated, map[string]interface{}{
		"leadId": created.ID,
		"name":   created.Name,
		"phone":  created.Phone,
		"stage":  created.Stage,
	})

	response.Success(c, http.StatusCreated, created)
}

type updateLeadRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Stage    string `json:"stage"`
	Interest string `json:"interest"`
}

func (h *LeadHandler) Update(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	id := c.Param("id")

	var req updateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	current, err := h.service.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "lead não encontrado")
			return
		}
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao consultar lead")
		return
	}

	if req.Name != "" {
		current.Name = req.Name
	}
	if req.Phone != "" {
		current.Phone = req.Phone
	}
	if req.Stage != "" {
		current.Stage = model.LeadStage(req.Stage)
	}
	if req.Interest != "" {
		current.Interest = req.Interest
	}

	updated, err := h.service.Update(c.Request.Context(), current)
	if err != nil {
		if errors.Is(err, lead.ErrInvalidPhone) {
			response.Error(c, http.StatusBadRequest, err)
			return
		}
		h.log.Error("falha ao atualizar lead", zap.String("lead_id", id), zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao atualizar lead")
		return
	}

	response.Success(c, http.StatusOK, updated)
}

type moveLeadRequest struct {
	Stage string `json:"stage" binding:"required"`
}

// MoveStage muda a etapa do lead no funil. Em falha de persistência o
// corpo devolve o lead na etapa anterior para a UI restaurar o card.
func (h *LeadHandler) MoveStage(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	id := c.Param("id")

	var req moveLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	moved, err := h.board.MoveLead(c.Request.Context(), tenantID, id, model.LeadStage(req.Stage))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "lead não encontrado")
			return
		}
		if !model.LeadStage(req.Stage).Valid() {
			response.Error(c, http.StatusBadRequest, err)
			return
		}
		h.log.Error("falha ao mover lead", zap.String("lead_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "erro ao mover lead",
			"data":    moved,
		})
		return
	}

	h.emitter.Emit(c.Request.Context(), tenantID, webhook.EventLeadStageChanged, map[string]interface{}{
		"leadId": moved.ID,
		"stage":  moved.Stage,
	})

	response.Success(c, http.StatusOK, moved)
}
