package model

import "time"

// InstanceStatus é o status persistido de uma conexão WhatsApp.
type InstanceStatus string

const (
	InstanceStatusAwaiting     InstanceStatus = "aguardando"
	InstanceStatusConnected    InstanceStatus = "conectado"
	InstanceStatusDisconnected InstanceStatus = "desconectado"
)

type Instance struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenantId"`
	InstanceName string         `json:"instanceName"`
	Status       InstanceStatus `json:"status"`
	Token        string         `json:"-"`
	Number       string         `json:"number,omitempty"`
	PairingCode  string         `json:"pairingCode,omitempty"`
	QRCodeBase64 string         `json:"qrCodeBase64,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// LeadStage é a etapa do lead no funil de CRM. Sempre um dos quatro
// valores; ausência vira StageNew.
type LeadStage string

const (
	StageNew         LeadStage = "novo"
	StageNegotiating LeadStage = "negociando"
	StageWon         LeadStage = "fechado"
	StageLost        LeadStage = "perdido"
)

func (s LeadStage) Valid() bool {
	switch s {
	case StageNew, StageNegotiating, StageWon, StageLost:
		return true
	}
	return false
}

type Lead struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Stage     LeadStage `json:"stage"`
	Interest  string    `json:"interest,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Column struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Title     string    `json:"title"`
	Color     string    `json:"color,omitempty"`
	Tasks     []Task    `json:"tasks"`
	CreatedAt time.Time `json:"createdAt"`
}

type Task struct {
	ID           string        `json:"id"`
	TenantID     string        `json:"tenantId"`
	ColumnID     string        `json:"columnId"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Status       string        `json:"status"`
	DueDate      *time.Time    `json:"dueDate,omitempty"`
	Subtasks     []Subtask     `json:"subtasks"`
	CustomFields []CustomField `json:"customFields"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type Subtask struct {
	ID        string `json:"id"`
	TaskID    string `json:"taskId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type CustomField struct {
	ID     string `json:"id"`
	TaskID string `json:"taskId"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

// Tipos de condição e operadores suportados pelas regras de automação.
const (
	ConditionDueDate           = "due-date"
	ConditionSubtasksCompleted = "subtasks-completed"
	ConditionCustomField       = "custom-field"

	OperatorIsOverdue    = "is-overdue"
	OperatorAllCompleted = "all-completed"
	OperatorEquals       = "equals"
	OperatorNotEquals    = "not-equals"
	OperatorContains     = "contains"

	ActionMoveToColumn = "move-to-column"
)

type RuleCondition struct {
	ID       string `json:"id"`
	RuleID   string `json:"ruleId"`
	Type     string `json:"type"`
	Field    string `json:"field,omitempty"`
	Operator string `json:"operator"`
	Value    string `json:"value,omitempty"`
}

type RuleAction struct {
	ID             string `json:"id"`
	RuleID         string `json:"ruleId"`
	Type           string `json:"type"`
	TargetColumnID string `json:"targetColumnId"`
}

type Rule struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenantId"`
	Name      string         `json:"name"`
	Enabled   bool           `json:"enabled"`
	Condition *RuleCondition `json:"condition,omitempty"`
	Action    *RuleAction    `json:"action,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type VehicleStatus string

const (
	VehicleAvailable VehicleStatus = "Disponível"
	VehicleSold      VehicleStatus = "Vendido"
	VehicleReserved  VehicleStatus = "Reservado"
)

type Vehicle struct {
	ID        string        `json:"id"`
	TenantID  string        `json:"tenantId"`
	Name      string        `json:"name"`
	Model     string        `json:"model"`
	Year      int           `json:"year"`
	Price     float64       `json:"price"`
	Type      string        `json:"type"`
	Status    VehicleStatus `json:"status"`
	Views     int           `json:"views"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type StoreSettings struct {
	TenantID             string    `json:"tenantId"`
	StoreName            string    `json:"storeName"`
	Email                string    `json:"email"`
	OpenTime             string    `json:"openTime"`
	CloseTime            string    `json:"closeTime"`
	WeekendOpen          bool      `json:"weekendOpen"`
	BusinessHoursMessage string    `json:"businessHoursMessage"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Tenant é a conta de uma concessionária. Os campos de assinatura são
// mantidos pelo webhook do Stripe.
type Tenant struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	SubscriptionID   string     `json:"subscriptionId,omitempty"`
	Status           string     `json:"status,omitempty"`
	Ativo            bool       `json:"ativo"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}
