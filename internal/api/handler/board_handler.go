package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/board"
	"github.com/roni12291832/nexus-car/internal/pkg/response"
	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
	"github.com/roni12291832/nexus-car/internal/webhook"
)

// BoardHandler expõe o quadro kanban: colunas, tasks, subtasks, campos
// customizados e as regras de automação.
type BoardHandler struct {
	manager   *board.Manager
	evaluator *board.Evaluator
	rules     storage.RuleRepository
	emitter   *webhook.Emitter
	log       *zap.Logger
}

func NewBoardHandler(
	manager *board.Manager,
	evaluator *board.Evaluator,
	rules storage.RuleRepository,
	emitter *webhook.Emitter,
	log *zap.Logger,
) *BoardHandler {
	return &BoardHandler{manager: manager, evaluator: evaluator, rules: rules, emitter: emitter, log: log}
}

func (h *BoardHandler) Register(r *gin.RouterGroup) {
	r.GET("/board", h.GetBoard)

	r.POST("/board/columns", h.CreateColumn)
	r.PUT("/board/columns/:id", h.UpdateColumn)
	r.DELETE("/board/columns/:id", h.DeleteColumn)

	r.POST("/board/tasks", h.CreateTask)
	r.PUT("/board/tasks/:id", h.UpdateTask)
	r.DELETE("/board/tasks/:id", h.DeleteTask)
	r.POST("/board/tasks/:id/move", h.MoveTask)
	r.POST("/board/tasks/:id/duplicate", h.DuplicateTask)

	r.POST("/board/tasks/:id/subtasks", h.AddSubtask)
	r.PATCH("/board/tasks/:id/subtasks/:subtaskId/toggle", h.ToggleSubtask)
	r.DELETE("/board/tasks/:id/subtasks/:subtaskId", h.DeleteSubtask)

	r.POST("/board/tasks/:id/fields", h.AddCustomField)
	r.DELETE("/board/tasks/:id/fields/:fieldId", h.DeleteCustomField)

	r.GET("/board/rules", h.ListRules)
	r.POST("/board/rules", h.CreateRule)
	r.PUT("/board/rules/:id", h.UpdateRule)
	r.DELETE("/board/rules/:id", h.DeleteRule)
	r.POST("/board/rules/run", h.RunRules)
}

func (h *BoardHandler) GetBoard(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	columns, err := h.manager.Load(c.Request.Context(), tenantID)
	if err != nil {
		h.log.Error("falha ao carregar quadro", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao carregar quadro")
		return
	}
	response.Success(c, http.StatusOK, columns)
}

type columnRequest struct {
	Title string `json:"title" binding:"required"`
	Color string `json:"color"`
}

func (h *BoardHandler) CreateColumn(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	var req columnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	created, err := h.manager.AddColumn(c.Request.Context(), model.Column{
		TenantID: tenantID,
		Title:    req.Title,
		Color:    req.Color,
	})
	if err != nil {
		h.log.Error("falha ao criar coluna", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao criar coluna")
		return
	}
	response.Success(c, http.StatusCreated, created)
}

func (h *BoardHandler) UpdateColumn(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	var req columnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	updated, err := h.manager.UpdateColumn(c.Request.Context(), model.Column{
		ID:       c.Param("id"),
		TenantID: tenantID,
		Title:    req.Title,
		Color:    req.Color,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "coluna não encontrada")
			return
		}
		h.log.Error("falha ao atualizar coluna", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao atualizar coluna")
		return
	}
	response.Success(c, http.StatusOK, updated)
}

func (h *BoardHandler) DeleteColumn(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	if err := h.manager.DeleteColumn(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "coluna não encontrada")
			return
		}
		h.log.Error("falha ao remover coluna", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao remover coluna")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type taskRequest struct {
	ColumnID    string     `json:"columnId" binding:"required"`
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
}

func (h *BoardHandler) CreateTask(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	created, err := h.manager.AddTask(c.Request.Context(), model.Task{
		TenantID:    tenantID,
		ColumnID:    req.ColumnID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "coluna não encontrada")
			return
		}
		h.log.Error("falha ao criar task", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao criar task")
		return
	}

	// Uma task pode nascer já satisfazendo uma regra (ex.: vencida).
	h.runAutomation(c, tenantID)
	response.Success(c, http.StatusCreated, created)
}

type updateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"dueDate"`
}

func (h *BoardHandler) UpdateTask(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	id := c.Param("id")

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	current, err := h.manager.Task(c.Request.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "task não encontrada")
			return
		}
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao consultar task")
		return
	}

	if req.Title != "" {
		current.Title = req.Title
	}
	if req.Description != "" {
		current.Description = req.Description
	}
	if req.Status != "" {
		current.Status = req.Status
	}
	if req.DueDate != nil {
		current.DueDate = req.DueDate
	}

	updated, err := h.manager.UpdateTask(c.Request.Context(), current)
	if err != nil {
		h.log.Error("falha ao atualizar task", zap.String("task_id", id), zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao atualizar task")
		return
	}

	h.runAutomation(c, tenantID)
	response.Success(c, http.StatusOK, updated)
}

func (h *BoardHandler) DeleteTask(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	if err := h.manager.DeleteTask(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "task não encontrada")
			return
		}
		h.log.Error("falha ao remover task", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao remover task")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type moveTaskRequest struct {
	TargetColumnID string `json:"targetColumnId" binding:"required"`
	TargetIndex    *int   `json:"targetIndex"` // omitido = fim da coluna
}

func (h *BoardHandler) MoveTask(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	id := c.Param("id")

	var req moveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	targetIndex := -1
	if req.TargetIndex != nil {
		targetIndex = *req.TargetIndex
	}

	if err := h.manager.MoveTask(c.Request.Context(), tenantID, id, req.TargetColumnID, targetIndex); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "task ou coluna não encontrada")
			return
		}
		h.log.Error("falha ao mover task", zap.String("task_id", id), zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao mover task")
		return
	}

	h.emitter.Emit(c.Request.Context(), tenantID, webhook.EventTaskMoved, map[string]interface{}{
		"taskId":   id,
		"columnId": req.TargetColumnID,
	})
	h.runAutomation(c, tenantID)

	response.Success(c, http.StatusOK, gin.H{"moved": true})
}

func (h *BoardHandler) DuplicateTask(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	clone, err := h.manager.DuplicateTask(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "task não encontrada")
			return
		}
		h.log.Error("falha ao duplicar task", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao duplicar task")
		return
	}
	response.Success(c, http.StatusCreated, clone)
}

type subtaskRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *BoardHandler) AddSubtask(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	var req subtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	created, err := h.manager.AddSubtask(c.Request.Context(), tenantID, model.Subtask{
		TaskID: c.Param("id"),
		Title:  req.Title,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "task não encontrada")
			return
		}
		h.log.Error("falha ao criar subtask", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao criar subtask")
		return
	}
	response.Success(c, http.StatusCreated, created)
}

func (h *BoardHandler) ToggleSubtask(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	err := h.manager.ToggleSubtask(c.Request.Context(), tenantID, c.Param("id"), c.Param("subtaskId"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "subtask não encontrada")
			return
		}
		h.log.Error("falha ao alternar subtask", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao alternar subtask")
		return
	}

	h.runAutomation(c, tenantID)
	response.Success(c, http.StatusOK, gin.H{"toggled": true})
}

func (h *BoardHandler) DeleteSubtask(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	err := h.manager.DeleteSubtask(c.Request.Context(), tenantID, c.Param("id"), c.Param("subtaskId"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "subtask não encontrada")
			return
		}
		h.log.Error("falha ao remover subtask", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao remover subtask")
		return
	}

	// Remover a última subtask pendente pode completar a task.
	h.runAutomation(c, tenantID)
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type customFieldRequest struct {
	Name  string `json:"name" binding:"required"`
	Value string `json:"value"`
}

func (h *BoardHandler) AddCustomField(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	var req customFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	created, err := h.manager.AddCustomField(c.Request.Context(), tenantID, model.CustomField{
		TaskID: c.Param("id"),
		Name:   req.Name,
		Value:  req.Value,
	})
	if err != nil {
		h.log.Error("falha ao criar campo customizado", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao criar campo customizado")
		return
	}

	h.runAutomation(c, tenantID)
	response.Success(c, http.StatusCreated, created)
}

func (h *BoardHandler) DeleteCustomField(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	err := h.manager.DeleteCustomField(c.Request.Context(), tenantID, c.Param("id"), c.Param("fieldId"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "campo não encontrado")
			return
		}
		h.log.Error("falha ao remover campo customizado", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao remover campo customizado")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *BoardHandler) ListRules(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	rules, err := h.rules.List(c.Request.Context(), tenantID)
	if err != nil {
		h.log.Error("falha ao listar regras", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao listar regras")
		return
	}
	response.Success(c, http.StatusOK, rules)
}

type ruleConditionRequest struct {
	Type     string `json:"type" binding:"required"`
	Field    string `json:"field"`
	Operator string `json:"operator" binding:"required"`
	Value    string `json:"value"`
}

type ruleActionRequest struct {
	Type           string `json:"type" binding:"required"`
	TargetColumnID string `json:"targetColumnId" binding:"required"`
}

type ruleRequest struct {
	Name      string               `json:"name" binding:"required"`
	Enabled   *bool                `json:"enabled"`
	Condition ruleConditionRequest `json:"condition" binding:"required"`
	Action    ruleActionRequest    `json:"action" binding:"required"`
}

func (req ruleRequest) toModel(tenantID, id string) model.Rule {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return model.Rule{
		ID:       id,
		TenantID: tenantID,
		Name:     req.Name,
		Enabled:  enabled,
		Condition: &model.RuleCondition{
			RuleID:   id,
			Type:     req.Condition.Type,
			Field:    req.Condition.Field,
			Operator: req.Condition.Operator,
			Value:    req.Condition.Value,
		},
		Action: &model.RuleAction{
			RuleID:         id,
			Type:           req.Action.Type,
			TargetColumnID: req.Action.TargetColumnID,
		},
	}
}

func (h *BoardHandler) CreateRule(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	created, err := h.rules.Create(c.Request.Context(), req.toModel(tenantID, ""))
	if err != nil {
		h.log.Error("falha ao criar regra", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao criar regra")
		return
	}

	h.runAutomation(c, tenantID)
	response.Success(c, http.StatusCreated, created)
}

func (h *BoardHandler) UpdateRule(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	id := c.Param("id")

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	updated, err := h.rules.Update(c.Request.Context(), req.toModel(tenantID, id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "regra não encontrada")
			return
		}
		h.log.Error("falha ao atualizar regra", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao atualizar regra")
		return
	}

	h.runAutomation(c, tenantID)
	response.Success(c, http.StatusOK, updated)
}

func (h *BoardHandler) DeleteRule(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	if err := h.rules.Delete(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "regra não encontrada")
			return
		}
		h.log.Error("falha ao remover regra", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao remover regra")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// RunRules dispara uma passada de avaliação sob demanda.
func (h *BoardHandler) RunRules(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	rules, err := h.rules.List(c.Request.Context(), tenantID)
	if err != nil {
		h.log.Error("falha ao listar regras para avaliação", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao avaliar regras")
		return
	}

	result, err := h.evaluator.RunPass(c.Request.Context(), tenantID, rules)
	if err != nil {
		h.log.Error("falha na passada de regras", zap.Error(err))
		response.ErrorWithMessage(c, http.StatusInternalServerError, "erro ao avaliar regras")
		return
	}
	response.Success(c, http.StatusOK, result)
}

// runAutomation roda uma passada de regras após mutações do quadro.
// Best-effort: falha vira log, nunca erro para o cliente.
func (h *BoardHandler) runAutomation(c *gin.Context, tenantID string) {
	ctx := c.Request.Context()

	rules, err := h.rules.List(ctx, tenantID)
	if err != nil {
		h.log.Warn("automação: falha ao listar regras", zap.Error(err))
		return
	}
	if len(rules) == 0 {
		return
	}
	if _, err := h.evaluator.RunPass(ctx, tenantID, rules); err != nil {
		h.log.Warn("automação: passada falhou", zap.Error(err))
	}
}
