package board

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/storage/model"
)

// StatusCompleted marca a task como concluída; tasks concluídas nunca
// contam como atrasadas.
const StatusCompleted = "Completed"

// maxMovesPerPass limita o total de movimentos de uma passada. Mesmo
// com o conjunto de visitados, regras mal configuradas em quadros
// grandes não podem travar o avaliador.
const maxMovesPerPass = 1000

// Evaluator aplica as regras de automação sobre o quadro. Cada passada
// avalia cada par (task, regra) no máximo uma vez, então duas regras
// que apontam uma para a coluna da outra movem a task uma única vez em
// vez de oscilar para sempre.
type Evaluator struct {
	manager *Manager
	log     *zap.Logger
	now     func() time.Time
}

func NewEvaluator(manager *Manager, log *zap.Logger) *Evaluator {
	return &Evaluator{manager: manager, log: log, now: time.Now}
}

// PassResult resume uma passada de avaliação.
type PassResult struct {
	Evaluated int `json:"evaluated"`
	Moved     int `json:"moved"`
}

type visitKey struct {
	taskID string
	ruleID string
}

// RunPass avalia todas as regras habilitadas contra o quadro atual do
// tenant. Regras são independentes e aplicadas em sequência; o efeito
// de uma pode mudar o que a próxima enxerga.
func (e *Evaluator) RunPass(ctx context.Context, tenantID string, rules []model.Rule) (PassResult, error) {
	var result PassResult
	visited := make(map[visitKey]struct{})

	for _, rule := range rules {
		if !rule.Enabled || rule.Condition == nil || rule.Action == nil {
			continue
		}
		if rule.Action.Type != model.ActionMoveToColumn || rule.Action.TargetColumnID == "" {
			continue
		}

		columns, err := e.manager.Columns(ctx, tenantID)
		if err != nil {
			return result, err
		}

		targetIdx := findColumn(columns, rule.Action.TargetColumnID)
		if targetIdx < 0 {
			e.log.Warn("rules: coluna alvo não existe mais, ignorando regra",
				zap.String("rule_id", rule.ID), zap.String("target", rule.Action.TargetColumnID))
			continue
		}
		targetTitle := columns[targetIdx].Title

		for _, col := range columns {
			for _, task := range col.Tasks {
				key := visitKey{taskID: task.ID, ruleID: rule.ID}
				if _, seen := visited[key]; seen {
					continue
				}
				visited[key] = struct{}{}
				result.Evaluated++

				if !e.matches(task, *rule.Condition) {
					continue
				}
				// Mover para a coluna onde a task já está é no-op; o
				// status espelha o título da coluna.
				if task.Status == targetTitle || col.ID == rule.Action.TargetColumnID {
					continue
				}

				if result.Moved >= maxMovesPerPass {
					e.log.Warn("rules: limite de movimentos da passada atingido",
						zap.String("tenant_id", tenantID), zap.Int("moved", result.Moved))
					return result, nil
				}

				if err := e.manager.MoveTask(ctx, tenantID, task.ID, rule.Action.TargetColumnID, -1); err != nil {
					e.log.Warn("rules: falha ao mover task",
						zap.String("task_id", task.ID), zap.String("rule_id", rule.ID), zap.Error(err))
					continue
				}
				result.Moved++
				e.log.Info("rules: task movida por automação",
					zap.String("task_id", task.ID),
					zap.String("rule", rule.Name),
					zap.String("to_column", targetTitle))
			}
		}
	}

	return result, nil
}

func (e *Evaluator) matches(task model.Task, cond model.RuleCondition) bool {
	switch cond.Type {
	case model.ConditionDueDate:
		if cond.Operator != model.OperatorIsOverdue {
			return false
		}
		return isOverdue(task, e.now())

	case model.ConditionSubtasksCompleted:
		if cond.Operator != model.OperatorAllCompleted {
			return false
		}
		return allSubtasksCompleted(task)

	case model.ConditionCustomField:
		return matchCustomField(task, cond)
	}
	return false
}

// Atrasada = prazo estritamente no passado e ainda não concluída. Task
// que vence agora não está atrasada.
func isOverdue(task model.Task, now time.Time) bool {
	if task.DueDate == nil || task.Status == StatusCompleted {
		return false
	}
	return task.DueDate.Before(now)
}

// Zero subtasks nunca satisfaz: "todas concluídas" exige pelo menos uma.
func allSubtasksCompleted(task model.Task) bool {
	if len(task.Subtasks) == 0 {
		return false
	}
	for _, st := range task.Subtasks {
		if !st.Completed {
			return false
		}
	}
	return true
}

func matchCustomField(task model.Task, cond model.RuleCondition) bool {
	for _, field := range task.CustomFields {
		if field.Name != cond.Field {
			continue
		}
		switch cond.Operator {
		case model.OperatorEquals:
			return field.Value == cond.Value
		case model.OperatorNotEquals:
			return field.Value != cond.Value
		case model.OperatorContains:
			return strings.Contains(field.Value, cond.Value)
		}
		return false
	}
	// Campo ausente nunca satisfaz; não é erro.
	return false
}
