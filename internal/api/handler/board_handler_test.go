package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/board"
	queue_memory "github.com/roni12291832/nexus-car/internal/pkg/queue/memory"
	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
	"github.com/roni12291832/nexus-car/internal/webhook"
)

const boardTestTenant = "tenant-1"

type stubBoardRepo struct {
	mu      sync.Mutex
	columns []model.Column
	tasks   map[string]model.Task
}

func newStubBoardRepo() *stubBoardRepo {
	return &stubBoardRepo{tasks: make(map[string]model.Task)}
}

func (r *stubBoardRepo) ListColumns(_ context.Context, tenantID string) ([]model.Column, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Column
	for _, col := range r.columns {
		if col.TenantID != tenantID {
			continue
		}
		col.Tasks = nil
		for _, task := range r.tasks {
			if task.TenantID == tenantID && task.ColumnID == col.ID {
				col.Tasks = append(col.Tasks, task)
			}
		}
		out = append(out, col)
	}
	return out, nil
}

func (r *stubBoardRepo) CreateColumn(_ context.Context, col model.Column) (model.Column, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if col.ID == "" {
		col.ID = uuid.New().String()
	}
	r.columns = append(r.columns, col)
	return col, nil
}

func (r *stubBoardRepo) UpdateColumn(_ context.Context, col model.Column) (model.Column, error) {
	return col, nil
}

func (r *stubBoardRepo) DeleteColumn(context.Context, string, string) error { return nil }

func (r *stubBoardRepo) CreateTask(_ context.Context, task model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	r.tasks[task.ID] = task
	return task, nil
}

func (r *stubBoardRepo) GetTask(_ context.Context, _, id string) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return model.Task{}, storage.ErrNotFound
	}
	return task, nil
}

func (r *stubBoardRepo) UpdateTask(_ context.Context, task model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = task
	return task, nil
}

func (r *stubBoardRepo) MoveTask(_ context.Context, _, taskID, columnID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return storage.ErrNotFound
	}
	task.ColumnID = columnID
	task.Status = status
	r.tasks[taskID] = task
	return nil
}

func (r *stubBoardRepo) DeleteTask(_ context.Context, _, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
	return nil
}

func (r *stubBoardRepo) CreateSubtask(_ context.Context, st model.Subtask) (model.Subtask, error) {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	return st, nil
}

func (r *stubBoardRepo) UpdateSubtask(context.Context, string, model.Subtask) error { return nil }

func (r *stubBoardRepo) DeleteSubtask(_ context.Context, _, subtaskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, task := range r.tasks {
		for i, st := range task.Subtasks {
			if st.ID == subtaskID {
				task.Subtasks = append(task.Subtasks[:i], task.Subtasks[i+1:]...)
				r.tasks[id] = task
				return nil
			}
		}
	}
	return storage.ErrNotFound
}

func (r *stubBoardRepo) CreateCustomField(_ context.Context, cf model.CustomField) (model.CustomField, error) {
	if cf.ID == "" {
		cf.ID = uuid.New().String()
	}
	return cf, nil
}

func (r *stubBoardRepo) DeleteCustomField(context.Context, string, string) error { return nil }

type stubRuleRepo struct {
	rules []model.Rule
}

func (r *stubRuleRepo) List(context.Context, string) ([]model.Rule, error) { return r.rules, nil }
func (r *stubRuleRepo) Create(_ context.Context, rule model.Rule) (model.Rule, error) {
	return rule, nil
}
func (r *stubRuleRepo) Update(_ context.Context, rule model.Rule) (model.Rule, error) {
	return rule, nil
}
func (r *stubRuleRepo) Delete(context.Context, string, string) error { return nil }

func moveToColumnRule(condType, field, operator, value, targetColumnID string) model.Rule {
	id := uuid.New().String()
	return model.Rule{
		ID:       id,
		TenantID: boardTestTenant,
		Name:     "automação de teste",
		Enabled:  true,
		Condition: &model.RuleCondition{
			ID: uuid.New().String(), RuleID: id,
			Type: condType, Field: field, Operator: operator, Value: value,
		},
		Action: &model.RuleAction{
			ID: uuid.New().String(), RuleID: id,
			Type: model.ActionMoveToColumn, TargetColumnID: targetColumnID,
		},
	}
}

func newBoardTestServer(t *testing.T, repo *stubBoardRepo, rules storage.RuleRepository) (*gin.Engine, *board.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := board.NewManager(repo, nil, zap.NewNop())
	_, err := manager.Load(context.Background(), boardTestTenant)
	require.NoError(t, err)

	evaluator := board.NewEvaluator(manager, zap.NewNop())
	emitter := webhook.NewEmitter(queue_memory.NewQueue(64), zap.NewNop())
	h := NewBoardHandler(manager, evaluator, rules, emitter, zap.NewNop())

	r := gin.New()
	grp := r.Group("/api")
	grp.Use(func(c *gin.Context) { c.Set("tenantID", boardTestTenant) })
	h.Register(grp)
	return r, manager
}

func columnOfTask(t *testing.T, m *board.Manager, taskID string) string {
	t.Helper()
	columns, err := m.Columns(context.Background(), boardTestTenant)
	require.NoError(t, err)
	for _, col := range columns {
		for _, task := range col.Tasks {
			if task.ID == taskID {
				return col.ID
			}
		}
	}
	t.Fatalf("task %s não encontrada no quadro", taskID)
	return ""
}

func TestCreateTaskAlreadyOverdueIsMovedByRule(t *testing.T) {
	repo := newStubBoardRepo()
	colA, err := repo.CreateColumn(context.Background(), model.Column{TenantID: boardTestTenant, Title: "A Fazer"})
	require.NoError(t, err)
	colLate, err := repo.CreateColumn(context.Background(), model.Column{TenantID: boardTestTenant, Title: "Atrasadas"})
	require.NoError(t, err)

	rules := &stubRuleRepo{rules: []model.Rule{
		moveToColumnRule(model.ConditionDueDate, "", model.OperatorIsOverdue, "", colLate.ID),
	}}
	router, manager := newBoardTestServer(t, repo, rules)

	body := fmt.Sprintf(`{"columnId":%q,"title":"Cobrar retorno","dueDate":%q}`,
		colA.ID, time.Now().Add(-48*time.Hour).Format(time.RFC3339))
	req := httptest.NewRequest(http.MethodPost, "/api/board/tasks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data model.Task `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// A task nasce vencida; a passada de regras roda já na criação.
	assert.Equal(t, colLate.ID, columnOfTask(t, manager, resp.Data.ID))
}

func TestDeleteLastPendingSubtaskTriggersCompletionRule(t *testing.T) {
	repo := newStubBoardRepo()
	colA, err := repo.CreateColumn(context.Background(), model.Column{TenantID: boardTestTenant, Title: "Em Andamento"})
	require.NoError(t, err)
	colDone, err := repo.CreateColumn(context.Background(), model.Column{TenantID: boardTestTenant, Title: "Concluídas"})
	require.NoError(t, err)

	pending := model.Subtask{ID: uuid.New().String(), Title: "Enviar contrato"}
	task, err := repo.CreateTask(context.Background(), model.Task{
		TenantID: boardTestTenant,
		ColumnID: colA.ID,
		Title:    "Fechar venda",
		Status:   colA.Title,
		Subtasks: []model.Subtask{
			{ID: uuid.New().String(), Title: "Checar documentos", Completed: true},
			pending,
		},
	})
	require.NoError(t, err)

	rules := &stubRuleRepo{rules: []model.Rule{
		moveToColumnRule(model.ConditionSubtasksCompleted, "", model.OperatorAllCompleted, "", colDone.ID),
	}}
	router, manager := newBoardTestServer(t, repo, rules)

	url := fmt.Sprintf("/api/board/tasks/%s/subtasks/%s", task.ID, pending.ID)
	req := httptest.NewRequest(http.MethodDelete, url, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Sem a subtask pendente, todas as restantes estão concluídas.
	assert.Equal(t, colDone.ID, columnOfTask(t, manager, task.ID))
}
