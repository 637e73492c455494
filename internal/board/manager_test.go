package board

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
)

type fakeBoardRepo struct {
	mu      sync.Mutex
	columns map[string]model.Column
	tasks   map[string]model.Task

	failMoves bool
	moveCalls int
}

func newFakeBoardRepo() *fakeBoardRepo {
	return &fakeBoardRepo{
		columns: make(map[string]model.Column),
		tasks:   make(map[string]model.Task),
	}
}

func (r *fakeBoardRepo) ListColumns(_ context.Context, tenantID string) ([]model.Column, error) {
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

func (r *fakeBoardRepo) CreateColumn(_ context.Context, col model.Column) (model.Column, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if col.ID == "" {
		col.ID = uuid.New().String()
	}
	r.columns[col.ID] = col
	return col, nil
}

func (r *fakeBoardRepo) UpdateColumn(_ context.Context, col model.Column) (model.Column, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.columns[col.ID]; !ok {
		return model.Column{}, storage.ErrNotFound
	}
	r.columns[col.ID] = col
	return col, nil
}

func (r *fakeBoardRepo) DeleteColumn(_ context.Context, _, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.columns[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.columns, id)
	for taskID, task := range r.tasks {
		if task.ColumnID == id {
			delete(r.tasks, taskID)
		}
	}
	return nil
}

func (r *fakeBoardRepo) CreateTask(_ context.Context, task model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeBoardRepo) GetTask(_ context.Context, _, id string) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return model.Task{}, storage.ErrNotFound
	}
	return task, nil
}

func (r *fakeBoardRepo) UpdateTask(_ context.Context, task model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return model.Task{}, storage.ErrNotFound
	}
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeBoardRepo) MoveTask(_ context.Context, _, taskID, columnID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moveCalls++
	if r.failMoves {
		return errors.New("escrita recusada")
	}
	task, ok := r.tasks[taskID]
	if !ok {
		return storage.ErrNotFound
	}
	task.ColumnID = columnID
	task.Status = status
	r.tasks[taskID] = task
	return nil
}

func (r *fakeBoardRepo) DeleteTask(_ context.Context, _, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *fakeBoardRepo) CreateSubtask(_ context.Context, st model.Subtask) (model.Subtask, error) {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	return st, nil
}

func (r *fakeBoardRepo) UpdateSubtask(context.Context, string, model.Subtask) error { return nil }
func (r *fakeBoardRepo) DeleteSubtask(context.Context, string, string) error       { return nil }

func (r *fakeBoardRepo) CreateCustomField(_ context.Context, cf model.CustomField) (model.CustomField, error) {
	if cf.ID == "" {
		cf.ID = uuid.New().String()
	}
	return cf, nil
}

func (r *fakeBoardRepo) DeleteCustomField(context.Context, string, string) error { return nil }

type fakeLeadRepo struct {
	mu    sync.Mutex
	leads map[string]model.Lead

	failUpdates bool
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{leads: make(map[string]model.Lead)}
}

func (r *fakeLeadRepo) Create(_ context.Context, lead model.Lead) (model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	r.leads[lead.ID] = lead
	return lead, nil
}

func (r *fakeLeadRepo) GetByID(_ context.Context, tenantID, id string) (model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.leads[id]
	if !ok || lead.TenantID != tenantID {
		return model.Lead{}, storage.ErrNotFound
	}
	return lead, nil
}

func (r *fakeLeadRepo) ListByTenant(_ context.Context, tenantID string) ([]model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Lead
	for _, lead := range r.leads {
		if lead.TenantID == tenantID {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (r *fakeLeadRepo) Update(_ context.Context, lead model.Lead) (model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[lead.ID]; !ok {
		return model.Lead{}, storage.ErrNotFound
	}
	r.leads[lead.ID] = lead
	return lead, nil
}

func (r *fakeLeadRepo) UpdateStage(_ context.Context, tenantID, id string, stage model.LeadStage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdates {
		return errors.New("escrita recusada")
	}
	lead, ok := r.leads[id]
	if !ok || lead.TenantID != tenantID {
		return storage.ErrNotFound
	}
	lead.Stage = stage
	r.leads[id] = lead
	return nil
}

const testTenant = "tenant-1"

func seedBoard(t *testing.T, repo *fakeBoardRepo) (colA, colB model.Column, task model.Task) {
	t.Helper()
	ctx := context.Background()
	var err error

	colA, err = repo.CreateColumn(ctx, model.Column{TenantID: testTenant, Title: "A Fazer"})
	require.NoError(t, err)
	colB, err = repo.CreateColumn(ctx, model.Column{TenantID: testTenant, Title: "Em Andamento"})
	require.NoError(t, err)

	task, err = repo.CreateTask(ctx, model.Task{
		TenantID: testTenant,
		ColumnID: colA.ID,
		Title:    "Preparar test-drive",
		Status:   colA.Title,
	})
	require.NoError(t, err)
	return colA, colB, task
}

func newTestManager(t *testing.T, repo *fakeBoardRepo, leads *fakeLeadRepo) *Manager {
	t.Helper()
	m := NewManager(repo, leads, zap.NewNop())
	_, err := m.Load(context.Background(), testTenant)
	require.NoError(t, err)
	return m
}

func taskIn(t *testing.T, m *Manager, columnID, taskID string) bool {
	t.Helper()
	columns, err := m.Columns(context.Background(), testTenant)
	require.NoError(t, err)
	for _, col := range columns {
		for _, task := range col.Tasks {
			if task.ID == taskID {
				return col.ID == columnID
			}
		}
	}
	t.Fatalf("task %s não encontrada no quadro", taskID)
	return false
}

func TestMoveTaskKeepsStatusConsistentWithColumn(t *testing.T) {
	repo := newFakeBoardRepo()
	_, colB, task := seedBoard(t, repo)
	m := newTestManager(t, repo, newFakeLeadRepo())

	require.NoError(t, m.MoveTask(context.Background(), testTenant, task.ID, colB.ID, -1))

	assert.True(t, taskIn(t, m, colB.ID, task.ID))
	stored, err := repo.GetTask(context.Background(), testTenant, task.ID)
	require.NoError(t, err)
	assert.Equal(t, colB.ID, stored.ColumnID)
	assert.Equal(t, colB.Title, stored.Status, "status espelha o título da coluna destino")
}

func TestMoveTaskSplicesAtTargetIndex(t *testing.T) {
	repo := newFakeBoardRepo()
	_, colB, task := seedBoard(t, repo)
	m := newTestManager(t, repo, newFakeLeadRepo())

	ctx := context.Background()
	first, err := m.AddTask(ctx, model.Task{TenantID: testTenant, ColumnID: colB.ID, Title: "Ligar para cliente"})
	require.NoError(t, err)
	second, err := m.AddTask(ctx, model.Task{TenantID: testTenant, ColumnID: colB.ID, Title: "Enviar proposta"})
	require.NoError(t, err)

	require.NoError(t, m.MoveTask(ctx, testTenant, task.ID, colB.ID, 1))

	columns, err := m.Columns(ctx, testTenant)
	require.NoError(t, err)
	var got []string
	for _, col := range columns {
		if col.ID != colB.ID {
			continue
		}
		for _, tk := range col.Tasks {
			got = append(got, tk.ID)
		}
	}
	assert.Equal(t, []string{first.ID, task.ID, second.ID}, got)
}

func TestMoveTaskIndexBeyondEndAppends(t *testing.T) {
	repo := newFakeBoardRepo()
	_, colB, task := seedBoard(t, repo)
	m := newTestManager(t, repo, newFakeLeadRepo())

	ctx := context.Background()
	first, err := m.AddTask(ctx, model.Task{TenantID: testTenant, ColumnID: colB.ID, Title: "Ligar para cliente"})
	require.NoError(t, err)

	require.NoError(t, m.MoveTask(ctx, testTenant, task.ID, colB.ID, 99))

	columns, err := m.Columns(ctx, testTenant)
	require.NoError(t, err)
	for _, col := range columns {
		if col.ID == colB.ID {
			require.Len(t, col.Tasks, 2)
			assert.Equal(t, first.ID, col.Tasks[0].ID)
			assert.Equal(t, task.ID, col.Tasks[1].ID)
		}
	}
}

func TestMoveTaskStoreFailureLeavesMemoryUntouched(t *testing.T) {
	repo := newFakeBoardRepo()
	colA, colB, task := seedBoard(t, repo)
	m := newTestManager(t, repo, newFakeLeadRepo())

	repo.failMoves = true
	err := m.MoveTask(context.Background(), testTenant, task.ID, colB.ID, -1)
	require.Error(t, err)

	// O espelho só muda depois do banco confirmar.
	assert.True(t, taskIn(t, m, colA.ID, task.ID))
}

func TestMoveTaskToSameColumnIsNoop(t *testing.T) {
	repo := newFakeBoardRepo()
	colA, _, task := seedBoard(t, repo)
	m := newTestManager(t, repo, newFakeLeadRepo())

	require.NoError(t, m.MoveTask(context.Background(), testTenant, task.ID, colA.ID, -1))
	assert.Zero(t, repo.moveCalls)
}

func TestMoveTaskUnknownTarget(t *testing.T) {
	repo := newFakeBoardRepo()
	_, _, task := seedBoard(t, repo)
	m := newTestManager(t, repo, newFakeLeadRepo())

	err := m.MoveTask(context.Background(), testTenant, task.ID, uuid.New().String(), -1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDuplicateTaskClonesWithCopySuffix(t *testing.T) {
	repo := newFakeBoardRepo()
	colA, _, task := seedBoard(t, repo)

	task.Subtasks = []model.Subtask{{ID: uuid.New().String(), TaskID: task.ID, Title: "Checar documentos"}}
	task.CustomFields = []model.CustomField{{ID: uuid.New().String(), TaskID: task.ID, Name: "cor", Value: "vermelho"}}
	repo.tasks[task.ID] = task

	m := newTestManager(t, repo, newFakeLeadRepo())

	clone, err := m.DuplicateTask(context.Background(), testTenant, task.ID)
	require.NoError(t, err)

	assert.Equal(t, "Preparar test-drive (Copia)", clone.Title)
	assert.Equal(t, colA.ID, clone.ColumnID, "cópia fica na mesma coluna")
	assert.NotEqual(t, task.ID, clone.ID)

	require.Len(t, clone.Subtasks, 1)
	assert.NotEqual(t, task.Subtasks[0].ID, clone.Subtasks[0].ID)
	assert.Equal(t, clone.ID, clone.Subtasks[0].TaskID)

	require.Len(t, clone.CustomFields, 1)
	assert.NotEqual(t, task.CustomFields[0].ID, clone.CustomFields[0].ID)
	assert.Equal(t, "vermelho", clone.CustomFields[0].Value)
}

func TestDeleteColumnRemovesItsTasks(t *testing.T) {
	repo := newFakeBoardRepo()
	colA, _, task := seedBoard(t, repo)
	m := newTestManager(t, repo, newFakeLeadRepo())

	require.NoError(t, m.DeleteColumn(context.Background(), testTenant, colA.ID))

	columns, err := m.Columns(context.Background(), testTenant)
	require.NoError(t, err)
	for _, col := range columns {
		assert.NotEqual(t, colA.ID, col.ID)
		for _, tk := range col.Tasks {
			assert.NotEqual(t, task.ID, tk.ID)
		}
	}
}

func TestMoveLeadOptimisticRollback(t *testing.T) {
	leads := newFakeLeadRepo()
	lead, err := leads.Create(context.Background(), model.Lead{
		TenantID: testTenant,
		Name:     "Carlos",
		Stage:    model.StageNew,
	})
	require.NoError(t, err)

	m := NewManager(newFakeBoardRepo(), leads, zap.NewNop())

	moved, err := m.MoveLead(context.Background(), testTenant, lead.ID, model.StageNegotiating)
	require.NoError(t, err)
	assert.Equal(t, model.StageNegotiating, moved.Stage)

	leads.failUpdates = true
	reverted, err := m.MoveLead(context.Background(), testTenant, lead.ID, model.StageWon)
	require.Error(t, err)
	assert.Equal(t, model.StageNegotiating, reverted.Stage, "falha devolve a etapa anterior")

	stored, err := leads.GetByID(context.Background(), testTenant, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageNegotiating, stored.Stage)
}

func TestMoveLeadRejectsUnknownStage(t *testing.T) {
	m := NewManager(newFakeBoardRepo(), newFakeLeadRepo(), zap.NewNop())
	_, err := m.MoveLead(context.Background(), testTenant, uuid.New().String(), model.LeadStage("qualquer"))
	assert.Error(t, err)
}
