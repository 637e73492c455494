package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/pkg/response"
	"github.com/roni12291832/nexus-car/internal/service/vehicle"
	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
	"github.com/roni12291832/nexus-car/internal/webhook"
)

type VehicleHandler struct {
	service *vehicle.Service
	emitter *webhook.Emitter
	log     *zap.Logger
}

func NewVehicleHandler(service *vehicle.Service, emitter *webhook.Emitter, log *zap.Logger) *VehicleHandler {
	return &VehicleHandler{service: service, emitter: emitter, log: log}
}

func (h *VehicleHandler) Register(r *gin.RouterGroup) {
	r.GET("/vehicles", h.List)
	r.GET("/vehicles/:id", h.Get)
	r.POST("/vehicles", h.Create)
	r.PUT("/vehicles/:id", h.Update)
	r.DELETE("/vehicles/:id", h.Delete)
	r.POST("/vehicles/:id/sold", h.MarkSold)
	r.POST("/vehicles/:id/view", h.RegisterView)
}

func (h *VehicleHandler) List(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	vehicles, err := h.service.List(c.Request.Context(), tenantID, vehicle.Filter{
		Status: model.VehicleStatus(c.Query("status")),
		Type:   c.Query("type"),
		Query:  c.Query("q"),
	})
	if err != nil {
		h.log.Error("falha ao listar veículos", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao listar veículos")
		return
	}
	response.Success(c, http.StatusOK, vehicles)
}

func (h *VehicleHandler) Get(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	v, err := h.service.Get(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "veículo não encontrado")
			return
		}
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao consultar veículo")
		return
	}
	response.Success(c, http.StatusOK, v)
}

type vehicleRequest struct {
	Name   string  `json:"name" binding:"required"`
	Model  string  `json:"model"`
	Year   int     `json:"year"`
	Price  float64 `json:"price"`
	Type   string  `json:"type"`
	Status string  `json:"status"`
}

func (h *VehicleHandler) Create(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), model.Vehicle{
		TenantID: tenantID,
		Name:     req.Name,
		Model:    req.Model,
		Year:     req.Year,
		Price:    req.Price,
		Type:     req.Type,
		Status:   model.VehicleStatus(req.Status),
	})
	if err != nil {
		h.log.Error("falha ao criar veículo", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao criar veículo")
		return
	}
	response.Success(c, http.StatusCreated, created)
}

func (h *VehicleHandler) Update(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	id := c.Param("id")

	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	current, err := h.service.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "veículo não encontrado")
			return
		}
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao consultar veículo")
		return
	}

	current.Name = req.Name
	current.Model = req.Model
	current.Year = req.Year
	current.Price = req.Price
	current.Type = req.Type
	if req.Status != "" {
		current.Status = model.VehicleStatus(req.Status)
	}

	updated, err := h.service.Update(c.Request.Context(), current)
	if err != nil {
		h.log.Error("falha ao atualizar veículo", zap.String("vehicle_id", id), zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao atualizar veículo")
		return
	}
	response.Success(c, http.StatusOK, updated)
}

func (h *VehicleHandler) Delete(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	if err := h.service.Delete(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "veículo não encontrado")
			return
		}
		h.log.Error("falha ao remover veículo", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao remover veículo")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *VehicleHandler) MarkSold(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	id := c.Param("id")

	sold, err := h.service.MarkSold(c.Request.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "veículo não encontrado")
			return
		}
		h.log.Error("falha ao marcar veículo como vendido", zap.String("vehicle_id", id), zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao marcar como vendido")
		return
	}

	h.emitter.Emit(c.Request.Context(), tenantID, webhook.EventVehicleSold, map[string]interface{}{
		"vehicleId": sold.ID,
		"name":      sold.Name,
		"price":     sold.Price,
	})

	response.Success(c, http.StatusOK, sold)
}

func (h *VehicleHandler) RegisterView(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	if err := h.service.RegisterView(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "veículo não encontrado")
			return
		}
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao registrar visualização")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"registered": true})
}
