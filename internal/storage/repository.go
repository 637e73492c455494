package storage

import (
	"context"
	"errors"

	"github.com/roni12291832/nexus-car/internal/storage/model"
)

var ErrNotFound = errors.New("not found")

// Todos os métodos de leitura/escrita recebem o tenant dono do dado. O
// filtro de propriedade vive aqui, não em cada call site.
type InstanceRepository interface {
	Upsert(ctx context.Context, instance model.Instance) (model.Instance, error)
	GetByID(ctx context.Context, tenantID, id string) (model.Instance, error)
	GetByName(ctx context.Context, tenantID, instanceName string) (model.Instance, error)
	ListByTenant(ctx context.Context, tenantID string) ([]model.Instance, error)
	ListTenantIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, instance model.Instance) (model.Instance, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status model.InstanceStatus) error
	Delete(ctx context.Context, tenantID, id string) error
}

type LeadRepository interface {
	Create(ctx context.Context, lead model.Lead) (model.Lead, error)
	GetByID(ctx context.Context, tenantID, id string) (model.Lead, error)
	ListByTenant(ctx context.Context, tenantID string) ([]model.Lead, error)
	Update(ctx context.Context, lead model.Lead) (model.Lead, error)
	UpdateStage(ctx context.Context, tenantID, id string, stage model.LeadStage) error
}

// BoardRepository cobre colunas, tasks, subtasks e campos customizados.
type BoardRepository interface {
	ListColumns(ctx context.Context, tenantID string) ([]model.Column, error)
	CreateColumn(ctx context.Context, column model.Column) (model.Column, error)
	UpdateColumn(ctx context.Context, column model.Column) (model.Column, error)
	DeleteColumn(ctx context.Context, tenantID, id string) error

	CreateTask(ctx context.Context, task model.Task) (model.Task, error)
	GetTask(ctx context.Context, tenantID, id string) (model.Task, error)
	UpdateTask(ctx context.Context, task model.Task) (model.Task, error)
	MoveTask(ctx context.Context, tenantID, taskID, columnID, status string) error
	DeleteTask(ctx context.Context, tenantID, id string) error

	CreateSubtask(ctx context.Context, subtask model.Subtask) (model.Subtask, error)
	UpdateSubtask(ctx context.Context, tenantID string, subtask model.Subtask) error
	DeleteSubtask(ctx context.Context, tenantID, id string) error

	CreateCustomField(ctx context.Context, field model.CustomField) (model.CustomField, error)
	DeleteCustomField(ctx context.Context, tenantID, id string) error
}

type RuleRepository interface {
	List(ctx context.Context, tenantID string) ([]model.Rule, error)
	Create(ctx context.Context, rule model.Rule) (model.Rule, error)
	Update(ctx context.Context, rule model.Rule) (model.Rule, error)
	Delete(ctx context.Context, tenantID, id string) error
}

type VehicleRepository interface {
	Create(ctx context.Context, vehicle model.Vehicle) (model.Vehicle, error)
	GetByID(ctx context.Context, tenantID, id string) (model.Vehicle, error)
	ListByTenant(ctx context.Context, tenantID string) ([]model.Vehicle, error)
	Update(ctx context.Context, vehicle model.Vehicle) (model.Vehicle, error)
	Delete(ctx context.Context, tenantID, id string) error
}

type SettingsRepository interface {
	Get(ctx context.Context, tenantID string) (model.StoreSettings, error)
	Upsert(ctx context.Context, settings model.StoreSettings) (model.StoreSettings, error)
}

type TenantRepository interface {
	Create(ctx context.Context, tenant model.Tenant) (model.Tenant, error)
	GetByID(ctx context.Context, id string) (model.Tenant, error)
	GetByEmail(ctx context.Context, email string) (model.Tenant, error)
	UpsertSubscription(ctx context.Context, tenant model.Tenant) error
}
