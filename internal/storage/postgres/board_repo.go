package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/roni12291832/nexus-car/internal/storage/model"
)

type boardRepo struct {
	db *DB
}

func NewBoardRepository(db *DB) *boardRepo {
	return &boardRepo{db: db}
}

// ListColumns devolve a árvore completa do quadro: colunas com tasks,
// subtasks e campos customizados. Três consultas em vez de um join
// largo; o volume por tenant é pequeno.
func (r *boardRepo) ListColumns(ctx context.Context, tenantID string) ([]model.Column, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, tenant_id, title, COALESCE(color, ''), created_at FROM board_columns WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []model.Column
	index := make(map[string]int)
	for rows.Next() {
		var col model.Column
		if err := rows.Scan(&col.ID, &col.TenantID, &col.Title, &col.Color, &col.CreatedAt); err != nil {
			return nil, err
		}
		col.Tasks = []model.Task{}
		index[col.ID] = len(columns)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tasks, err := r.listTasks(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		if i, ok := index[task.ColumnID]; ok {
			columns[i].Tasks = append(columns[i].Tasks, task)
		}
	}
	return columns, nil
}

func (r *boardRepo) listTasks(ctx context.Context, tenantID string) ([]model.Task, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, tenant_id, column_id, title, COALESCE(description, ''), status, due_date, created_at
		 FROM tasks WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	index := make(map[string]int)
	for rows.Next() {
		var task model.Task
		if err := rows.Scan(&task.ID, &task.TenantID, &task.ColumnID, &task.Title, &task.Description, &task.Status, &task.DueDate, &task.CreatedAt); err != nil {
			return nil, err
		}
		task.Subtasks = []model.Subtask{}
		task.CustomFields = []model.CustomField{}
		index[task.ID] = len(tasks)
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	subRows, err := r.db.Pool.Query(ctx,
		`SELECT s.id, s.task_id, s.title, s.completed
		 FROM subtasks s JOIN tasks t ON s.task_id = t.id
		 WHERE t.tenant_id = $1`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer subRows.Close()
	for subRows.Next() {
		var st model.Subtask
		if err := subRows.Scan(&st.ID, &st.TaskID, &st.Title, &st.Completed); err != nil {
			return nil, err
		}
		if i, ok := index[st.TaskID]; ok {
			tasks[i].Subtasks = append(tasks[i].Subtasks, st)
		}
	}
	if err := subRows.Err(); err != nil {
		return nil, err
	}

	cfRows, err := r.db.Pool.Query(ctx,
		`SELECT f.id, f.task_id, f.name, f.value
		 FROM custom_fields f JOIN tasks t ON f.task_id = t.id
		 WHERE t.tenant_id = $1`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer cfRows.Close()
	for cfRows.Next() {
		var cf model.CustomField
		if err := cfRows.Scan(&cf.ID, &cf.TaskID, &cf.Name, &cf.Value); err != nil {
			return nil, err
		}
		if i, ok := index[cf.TaskID]; ok {
			tasks[i].CustomFields = append(tasks[i].CustomFields, cf)
		}
	}
	return tasks, cfRows.Err()
}

func (r *boardRepo) CreateColumn(ctx context.Context, col model.Column) (model.Column, error) {
	if col.ID == "" {
		col.ID = uuid.New().String()
	}
	col.CreatedAt = time.Now()

	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO board_columns (id, tenant_id, title, color, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, tenant_id, title, COALESCE(color, ''), created_at`,
		col.ID, col.TenantID, col.Title, nullIfEmpty(col.Color), col.CreatedAt,
	).Scan(&col.ID, &col.TenantID, &col.Title, &col.Color, &col.CreatedAt)
	if err != nil {
		return model.Column{}, err
	}
	col.Tasks = []model.Task{}
	return col, nil
}

func (r *boardRepo) UpdateColumn(ctx context.Context, col model.Column) (model.Column, error) {
	err := r.db.Pool.QueryRow(ctx,
		`UPDATE board_columns SET title = $3, color = $4
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING id, tenant_id, title, COALESCE(color, ''), created_at`,
		col.ID, col.TenantID, col.Title, nullIfEmpty(col.Color),
	).Scan(&col.ID, &col.TenantID, &col.Title, &col.Color, &col.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Column{}, ErrNotFound
	}
	if err != nil {
		return model.Column{}, err
	}
	return col, nil
}

// DeleteColumn remove a coluna; as tasks caem no cascade do schema.
func (r *boardRepo) DeleteColumn(ctx context.Context, tenantID, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM board_columns WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *boardRepo) CreateTask(ctx context.Context, task model.Task) (model.Task, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	task.CreatedAt = time.Now()

	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO tasks (id, tenant_id, column_id, title, description, status, due_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, tenant_id, column_id, title, COALESCE(description, ''), status, due_date, created_at`,
		task.ID, task.TenantID, task.ColumnID, task.Title, nullIfEmpty(task.Description), task.Status, task.DueDate, task.CreatedAt,
	).Scan(&task.ID, &task.TenantID, &task.ColumnID, &task.Title, &task.Description, &task.Status, &task.DueDate, &task.CreatedAt)
	if err != nil {
		return model.Task{}, err
	}

	for i := range task.Subtasks {
		task.Subtasks[i].TaskID = task.ID
		created, err := r.CreateSubtask(ctx, task.Subtasks[i])
		if err != nil {
			return model.Task{}, err
		}
		task.Subtasks[i] = created
	}
	for i := range task.CustomFields {
		task.CustomFields[i].TaskID = task.ID
		created, err := r.CreateCustomField(ctx, task.CustomFields[i])
		if err != nil {
			return model.Task{}, err
		}
		task.CustomFields[i] = created
	}
	return task, nil
}

func (r *boardRepo) GetTask(ctx context.Context, tenantID, id string) (model.Task, error) {
	var task model.Task
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, tenant_id, column_id, title, COALESCE(description, ''), status, due_date, created_at
		 FROM tasks WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&task.ID, &task.TenantID, &task.ColumnID, &task.Title, &task.Description, &task.Status, &task.DueDate, &task.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	if err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (r *boardRepo) UpdateTask(ctx context.Context, task model.Task) (model.Task, error) {
	err := r.db.Pool.QueryRow(ctx,
		`UPDATE tasks SET title = $3, description = $4, status = $5, due_date = $6
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING id, tenant_id, column_id, title, COALESCE(description, ''), status, due_date, created_at`,
		task.ID, task.TenantID, task.Title, nullIfEmpty(task.Description), task.Status, task.DueDate,
	).Scan(&task.ID, &task.TenantID, &task.ColumnID, &task.Title, &task.Description, &task.Status, &task.DueDate, &task.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	if err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// MoveTask grava coluna e status na mesma escrita, mantendo os dois
// campos consistentes.
func (r *boardRepo) MoveTask(ctx context.Context, tenantID, taskID, columnID, status string) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE tasks SET column_id = $3, status = $4 WHERE id = $1 AND tenant_id = $2`,
		taskID, tenantID, columnID, status,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *boardRepo) DeleteTask(ctx context.Context, tenantID, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *boardRepo) CreateSubtask(ctx context.Context, st model.Subtask) (model.Subtask, error) {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO subtasks (id, task_id, title, completed) VALUES ($1, $2, $3, $4)`,
		st.ID, st.TaskID, st.Title, st.Completed,
	)
	if err != nil {
		return model.Subtask{}, err
	}
	return st, nil
}

func (r *boardRepo) UpdateSubtask(ctx context.Context, tenantID string, st model.Subtask) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE subtasks SET title = $2, completed = $3
		 WHERE id = $1 AND task_id IN (SELECT id FROM tasks WHERE tenant_id = $4)`,
		st.ID, st.Title, st.Completed, tenantID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *boardRepo) DeleteSubtask(ctx context.Context, tenantID, id string) error {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM subtasks WHERE id = $1 AND task_id IN (SELECT id FROM tasks WHERE tenant_id = $2)`,
		id, tenantID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *boardRepo) CreateCustomField(ctx context.Context, cf model.CustomField) (model.CustomField, error) {
	if cf.ID == "" {
		cf.ID = uuid.New().String()
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO custom_fields (id, task_id, name, value) VALUES ($1, $2, $3, $4)`,
		cf.ID, cf.TaskID, cf.Name, cf.Value,
	)
	if err != nil {
		return model.CustomField{}, err
	}
	return cf, nil
}

func (r *boardRepo) DeleteCustomField(ctx context.Context, tenantID, id string) error {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM custom_fields WHERE id = $1 AND task_id IN (SELECT id FROM tasks WHERE tenant_id = $2)`,
		id, tenantID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
