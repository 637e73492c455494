package board

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
)

// Manager mantém o estado do quadro kanban de cada tenant em memória,
// espelhando o banco. Movimentos de task persistem primeiro e só então
// tocam a memória; movimentos de lead são otimistas com rollback.
type Manager struct {
	repo  storage.BoardRepository
	leads storage.LeadRepository
	log   *zap.Logger

	mu     sync.RWMutex
	boards map[string][]model.Column
}

func NewManager(repo storage.BoardRepository, leads storage.LeadRepository, log *zap.Logger) *Manager {
	return &Manager{
		repo:   repo,
		leads:  leads,
		log:    log,
		boards: make(map[string][]model.Column),
	}
}

// Load hidrata o quadro do tenant a partir do banco e devolve uma cópia.
func (m *Manager) Load(ctx context.Context, tenantID string) ([]model.Column, error) {
	columns, err := m.repo.ListColumns(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("board: carregar colunas: %w", err)
	}

	m.mu.Lock()
	m.boards[tenantID] = columns
	m.mu.Unlock()

	return cloneColumns(columns), nil
}

// Columns devolve o quadro em memória, hidratando sob demanda.
func (m *Manager) Columns(ctx context.Context, tenantID string) ([]model.Column, error) {
	m.mu.RLock()
	columns, ok := m.boards[tenantID]
	m.mu.RUnlock()
	if ok {
		return cloneColumns(columns), nil
	}
	return m.Load(ctx, tenantID)
}

// Task devolve uma cópia da task, do espelho quando carregado, do banco
// caso contrário.
func (m *Manager) Task(ctx context.Context, tenantID, taskID string) (model.Task, error) {
	m.mu.RLock()
	columns, ok := m.boards[tenantID]
	if ok {
		if colIdx, taskIdx := findTask(columns, taskID); colIdx >= 0 {
			task := cloneTask(columns[colIdx].Tasks[taskIdx])
			m.mu.RUnlock()
			return task, nil
		}
	}
	m.mu.RUnlock()
	return m.repo.GetTask(ctx, tenantID, taskID)
}

// MoveTask move a task para outra coluna, inserida na posição
// targetIndex (fora dos limites, ou negativa, vira o fim da coluna). A
// ordem importa: primeiro o banco, depois a memória. Falha de
// persistência deixa o quadro como estava, sem estado fantasma para
// reconciliar.
func (m *Manager) MoveTask(ctx context.Context, tenantID, taskID, targetColumnID string, targetIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	columns, ok := m.boards[tenantID]
	if !ok {
		return fmt.Errorf("board: quadro não carregado para o tenant %s", tenantID)
	}

	fromIdx, taskIdx := findTask(columns, taskID)
	if fromIdx < 0 {
		return storage.ErrNotFound
	}
	targetIdx := findColumn(columns, targetColumnID)
	if targetIdx < 0 {
		return storage.ErrNotFound
	}
	if fromIdx == targetIdx {
		return nil
	}

	newStatus := columns[targetIdx].Title
	if err := m.repo.MoveTask(ctx, tenantID, taskID, targetColumnID, newStatus); err != nil {
		return fmt.Errorf("board: mover task: %w", err)
	}

	task := columns[fromIdx].Tasks[taskIdx]
	columns[fromIdx].Tasks = append(columns[fromIdx].Tasks[:taskIdx], columns[fromIdx].Tasks[taskIdx+1:]...)
	task.ColumnID = targetColumnID
	task.Status = newStatus

	dest := columns[targetIdx].Tasks
	if targetIndex < 0 || targetIndex > len(dest) {
		targetIndex = len(dest)
	}
	dest = append(dest, model.Task{})
	copy(dest[targetIndex+1:], dest[targetIndex:])
	dest[targetIndex] = task
	columns[targetIdx].Tasks = dest

	return nil
}

// AddTask cria a task na coluna e no espelho em memória.
func (m *Manager) AddTask(ctx context.Context, task model.Task) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	columns := m.boards[task.TenantID]
	colIdx := findColumn(columns, task.ColumnID)
	if colIdx < 0 {
		return model.Task{}, storage.ErrNotFound
	}
	if task.Status == "" {
		task.Status = columns[colIdx].Title
	}

	created, err := m.repo.CreateTask(ctx, task)
	if err != nil {
		return model.Task{}, fmt.Errorf("board: criar task: %w", err)
	}

	columns[colIdx].Tasks = append(columns[colIdx].Tasks, created)
	return created, nil
}

// UpdateTask persiste e substitui a task no espelho.
func (m *Manager) UpdateTask(ctx context.Context, task model.Task) (model.Task, error) {
	updated, err := m.repo.UpdateTask(ctx, task)
	if err != nil {
		return model.Task{}, fmt.Errorf("board: atualizar task: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	columns := m.boards[task.TenantID]
	if colIdx, taskIdx := findTask(columns, task.ID); colIdx >= 0 {
		updated.ColumnID = columns[colIdx].ID
		columns[colIdx].Tasks[taskIdx] = updated
	}
	return updated, nil
}

// DeleteTask remove do banco e do espelho.
func (m *Manager) DeleteTask(ctx context.Context, tenantID, taskID string) error {
	if err := m.repo.DeleteTask(ctx, tenantID, taskID); err != nil {
		return fmt.Errorf("board: remover task: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	columns := m.boards[tenantID]
	if colIdx, taskIdx := findTask(columns, taskID); colIdx >= 0 {
		columns[colIdx].Tasks = append(columns[colIdx].Tasks[:taskIdx], columns[colIdx].Tasks[taskIdx+1:]...)
	}
	return nil
}

// DuplicateTask clona a task na mesma coluna com o sufixo de cópia.
// Subtasks e campos customizados ganham ids novos; o clone nunca divide
// filhos com o original.
func (m *Manager) DuplicateTask(ctx context.Context, tenantID, taskID string) (model.Task, error) {
	m.mu.Lock()
	colIdx, taskIdx := -1, -1
	columns := m.boards[tenantID]
	colIdx, taskIdx = findTask(columns, taskID)
	if colIdx < 0 {
		m.mu.Unlock()
		return model.Task{}, storage.ErrNotFound
	}
	original := cloneTask(columns[colIdx].Tasks[taskIdx])
	m.mu.Unlock()

	clone := original
	clone.ID = uuid.New().String()
	clone.Title = original.Title + " (Copia)"
	clone.Subtasks = make([]model.Subtask, len(original.Subtasks))
	for i, st := range original.Subtasks {
		st.ID = uuid.New().String()
		st.TaskID = clone.ID
		clone.Subtasks[i] = st
	}
	clone.CustomFields = make([]model.CustomField, len(original.CustomFields))
	for i, cf := range original.CustomFields {
		cf.ID = uuid.New().String()
		cf.TaskID = clone.ID
		clone.CustomFields[i] = cf
	}

	created, err := m.repo.CreateTask(ctx, clone)
	if err != nil {
		return model.Task{}, fmt.Errorf("board: duplicar task: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	columns = m.boards[tenantID]
	if idx := findColumn(columns, created.ColumnID); idx >= 0 {
		columns[idx].Tasks = append(columns[idx].Tasks, created)
	}
	return created, nil
}

// AddColumn cria a coluna no banco e no espelho.
func (m *Manager) AddColumn(ctx context.Context, column model.Column) (model.Column, error) {
	created, err := m.repo.CreateColumn(ctx, column)
	if err != nil {
		return model.Column{}, fmt.Errorf("board: criar coluna: %w", err)
	}
	if created.Tasks == nil {
		created.Tasks = []model.Task{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.boards[column.TenantID] = append(m.boards[column.TenantID], created)
	return created, nil
}

// UpdateColumn renomeia/recolore a coluna preservando as tasks.
func (m *Manager) UpdateColumn(ctx context.Context, column model.Column) (model.Column, error) {
	updated, err := m.repo.UpdateColumn(ctx, column)
	if err != nil {
		return model.Column{}, fmt.Errorf("board: atualizar coluna: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	columns := m.boards[column.TenantID]
	if idx := findColumn(columns, column.ID); idx >= 0 {
		updated.Tasks = columns[idx].Tasks
		columns[idx] = updated
	}
	return updated, nil
}

// DeleteColumn remove a coluna e as tasks dentro dela.
func (m *Manager) DeleteColumn(ctx context.Context, tenantID, columnID string) error {
	if err := m.repo.DeleteColumn(ctx, tenantID, columnID); err != nil {
		return fmt.Errorf("board: remover coluna: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	columns := m.boards[tenantID]
	if idx := findColumn(columns, columnID); idx >= 0 {
		m.boards[tenantID] = append(columns[:idx], columns[idx+1:]...)
	}
	return nil
}

// AddSubtask persiste a subtask e a anexa à task no espelho.
func (m *Manager) AddSubtask(ctx context.Context, tenantID string, subtask model.Subtask) (model.Subtask, error) {
	created, err := m.repo.CreateSubtask(ctx, subtask)
	if err != nil {
		return model.Subtask{}, fmt.Errorf("board: criar subtask: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	columns := m.boards[tenantID]
	if colIdx, taskIdx := findTask(columns, subtask.TaskID); colIdx >= 0 {
		columns[colIdx].Tasks[taskIdx].Subtasks = append(columns[colIdx].Tasks[taskIdx].Subtasks, created)
	}
	return created, nil
}

// ToggleSubtask alterna o completed da subtask.
func (m *Manager) ToggleSubtask(ctx context.Context, tenantID, taskID, subtaskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	columns := m.boards[tenantID]
	colIdx, taskIdx := findTask(columns, taskID)
	if colIdx < 0 {
		return storage.ErrNotFound
	}

	subtasks := columns[colIdx].Tasks[taskIdx].Subtasks
	for i, st := range subtasks {
		if st.ID != subtaskID {
			continue
		}
		st.Completed = !st.Completed
		if err := m.repo.UpdateSubtask(ctx, tenantID, st); err != nil {
			return fmt.Errorf("board: atualizar subtask: %w", err)
		}
		subtasks[i] = st
		return nil
	}
	return storage.ErrNotFound
}

// DeleteSubtask remove a subtask do banco e do espelho.
func (m *Manager) DeleteSubtask(ctx context.Context, tenantID, taskID, subtaskID string) error {
	if err := m.repo.DeleteSubtask(ctx, tenantID, subtaskID); err != nil {
		return fmt.Errorf("board: remover subtask: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	columns := m.boards[tenantID]
	if colIdx, taskIdx := findTask(columns, taskID); colIdx >= 0 {
		subtasks := columns[colIdx].Tasks[taskIdx].Subtasks
		for i, st := range subtasks {
			if st.ID == subtaskID {
				columns[colIdx].Tasks[taskIdx].Subtasks = append(subtasks[:i], subtasks[i+1:]...)
				break
			}
		}
	}
	return nil
}

// AddCustomField persiste o campo customizado e o anexa à task.
func (m *Manager) AddCustomField(ctx context.Context, tenantID string, field model.CustomField) (model.CustomField, error) {
	created, err := m.repo.CreateCustomField(ctx, field)
	if err != nil {
		return model.CustomField{}, fmt.Errorf("board: criar campo customizado: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	columns := m.boards[tenantID]
	if colIdx, taskIdx := findTask(columns, field.TaskID); colIdx >= 0 {
		columns[colIdx].Tasks[taskIdx].CustomFields = append(columns[colIdx].Tasks[taskIdx].CustomFields, created)
	}
	return created, nil
}

// DeleteCustomField remove o campo do banco e do espelho.
func (m *Manager) DeleteCustomField(ctx context.Context, tenantID, taskID, fieldID string) error {
	if err := m.repo.DeleteCustomField(ctx, tenantID, fieldID); err != nil {
		return fmt.Errorf("board: remover campo customizado: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	columns := m.boards[tenantID]
	if colIdx, taskIdx := findTask(columns, taskID); colIdx >= 0 {
		fields := columns[colIdx].Tasks[taskIdx].CustomFields
		for i, f := range fields {
			if f.ID == fieldID {
				columns[colIdx].Tasks[taskIdx].CustomFields = append(fields[:i], fields[i+1:]...)
				break
			}
		}
	}
	return nil
}

// MoveLead atualiza a etapa do lead de forma otimista: memória não é
// envolvida aqui porque leads não vivem no espelho do quadro, mas o
// chamador recebe o lead já na etapa nova; em falha de persistência o
// erro devolve a etapa anterior para a UI restaurar.
func (m *Manager) MoveLead(ctx context.Context, tenantID, leadID string, stage model.LeadStage) (model.Lead, error) {
	if !stage.Valid() {
		return model.Lead{}, fmt.Errorf("board: etapa inválida %q", stage)
	}

	lead, err := m.leads.GetByID(ctx, tenantID, leadID)
	if err != nil {
		return model.Lead{}, err
	}
	previous := lead.Stage

	lead.Stage = stage
	if err := m.leads.UpdateStage(ctx, tenantID, leadID, stage); err != nil {
		lead.Stage = previous
		return lead, fmt.Errorf("board: mover lead: %w", err)
	}
	return lead, nil
}

func findColumn(columns []model.Column, id string) int {
	for i := range columns {
		if columns[i].ID == id {
			return i
		}
	}
	return -1
}

func findTask(columns []model.Column, taskID string) (colIdx, taskIdx int) {
	for i := range columns {
		for j := range columns[i].Tasks {
			if columns[i].Tasks[j].ID == taskID {
				return i, j
			}
		}
	}
	return -1, -1
}

func cloneColumns(columns []model.Column) []model.Column {
	out := make([]model.Column, len(columns))
	for i, col := range columns {
		col.Tasks = append([]model.Task(nil), col.Tasks...)
		for j := range col.Tasks {
			col.Tasks[j] = cloneTask(col.Tasks[j])
		}
		out[i] = col
	}
	return out
}

func cloneTask(task model.Task) model.Task {
	task.Subtasks = append([]model.Subtask(nil), task.Subtasks...)
	task.CustomFields = append([]model.CustomField(nil), task.CustomFields...)
	if task.DueDate != nil {
		due := *task.DueDate
		task.DueDate = &due
	}
	return task
}
