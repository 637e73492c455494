package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/pkg/response"
	"github.com/roni12291832/nexus-car/internal/service/auth"
)

type AuthHandler struct {
	service *auth.Service
	log     *zap.Logger
}

func NewAuthHandler(service *auth.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{service: service, log: log}
}

func (h *AuthHandler) Register(r *gin.RouterGroup) {
	r.POST("/auth/register", h.RegisterAccount)
	r.POST("/auth/login", h.Login)
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func (h *AuthHandler) RegisterAccount(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	tenant, err := h.service.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			response.Error(c, http.StatusConflict, err)
		case errors.Is(err, auth.ErrInvalidCredentials):
			response.Error(c, http.StatusBadRequest, err)
		default:
			h.log.Error("falha ao registrar conta", zap.Error(err))
			response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao criar conta")
		}
		return
	}

	response.Success(c, http.StatusCreated, tenant)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	token, tenant, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, err)
		case errors.Is(err, auth.ErrAccountInactive):
			response.Error(c, http.StatusForbidden, err)
		default:
			h.log.Error("falha no login", zap.Error(err))
			response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao autenticar")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  tenant,
	})
}
