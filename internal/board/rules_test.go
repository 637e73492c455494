package board

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/storage/model"
)

func newTestEvaluator(t *testing.T, repo *fakeBoardRepo) (*Evaluator, *Manager) {
	t.Helper()
	m := newTestManager(t, repo, newFakeLeadRepo())
	return NewEvaluator(m, zap.NewNop()), m
}

func moveRule(name, targetColumnID string, cond model.RuleCondition) model.Rule {
	id := uuid.New().String()
	cond.RuleID = id
	return model.Rule{
		ID:        id,
		TenantID:  testTenant,
		Name:      name,
		Enabled:   true,
		Condition: &cond,
		Action: &model.RuleAction{
			RuleID:         id,
			Type:           model.ActionMoveToColumn,
			TargetColumnID: targetColumnID,
		},
	}
}

func TestCustomFieldContains(t *testing.T) {
	repo := newFakeBoardRepo()
	_, colB, task := seedBoard(t, repo)
	task.CustomFields = []model.CustomField{{ID: uuid.New().String(), TaskID: task.ID, Name: "cor", Value: "vermelho"}}
	repo.tasks[task.ID] = task

	ev, m := newTestEvaluator(t, repo)
	rule := moveRule("cor contém verm", colB.ID, model.RuleCondition{
		Type:     model.ConditionCustomField,
		Field:    "cor",
		Operator: model.OperatorContains,
		Value:    "verm",
	})

	result, err := ev.RunPass(context.Background(), testTenant, []model.Rule{rule})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Moved)
	assert.True(t, taskIn(t, m, colB.ID, task.ID))
}

func TestCustomFieldContainsMiss(t *testing.T) {
	repo := newFakeBoardRepo()
	colA, colB, task := seedBoard(t, repo)
	task.CustomFields = []model.CustomField{{ID: uuid.New().String(), TaskID: task.ID, Name: "cor", Value: "azul"}}
	repo.tasks[task.ID] = task

	ev, m := newTestEvaluator(t, repo)
	rule := moveRule("cor contém verm", colB.ID, model.RuleCondition{
		Type:     model.ConditionCustomField,
		Field:    "cor",
		Operator: model.OperatorContains,
		Value:    "verm",
	})

	result, err := ev.RunPass(context.Background(), testTenant, []model.Rule{rule})
	require.NoError(t, err)
	assert.Zero(t, result.Moved)
	assert.True(t, taskIn(t, m, colA.ID, task.ID))
}

func TestCustomFieldAbsentIsFalse(t *testing.T) {
	repo := newFakeBoardRepo()
	_, colB, _ := seedBoard(t, repo)

	ev, _ := newTestEvaluator(t, repo)
	rule := moveRule("campo inexistente", colB.ID, model.RuleCondition{
		Type:     model.ConditionCustomField,
		Field:    "combustivel",
		Operator: model.OperatorEquals,
		Value:    "flex",
	})

	result, err := ev.RunPass(context.Background(), testTenant, []model.Rule{rule})
	require.NoError(t, err)
	assert.Zero(t, result.Moved)
}

func TestOverdueIsStrict(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	cases := []struct {
		name   string
		task   model.Task
		expect bool
	}{
		{"prazo no passado", model.Task{DueDate: &past, Status: "A Fazer"}, true},
		{"prazo exatamente agora", model.Task{DueDate: &now, Status: "A Fazer"}, false},
		{"prazo no futuro", model.Task{DueDate: &future, Status: "A Fazer"}, false},
		{"sem prazo", model.Task{Status: "A Fazer"}, false},
		{"concluída nunca atrasa", model.Task{DueDate: &past, Status: StatusCompleted}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, isOverdue(tc.task, now))
		})
	}
}

func TestSubtasksAllCompletedNeedsAtLeastOne(t *testing.T) {
	assert.False(t, allSubtasksCompleted(model.Task{}))
	assert.False(t, allSubtasksCompleted(model.Task{Subtasks: []model.Subtask{
		{Completed: true}, {Completed: false},
	}}))
	assert.True(t, allSubtasksCompleted(model.Task{Subtasks: []model.Subtask{
		{Completed: true}, {Completed: true},
	}}))
}

func TestDisabledRuleNeverFires(t *testing.T) {
	repo := newFakeBoardRepo()
	_, colB, task := seedBoard(t, repo)
	task.CustomFields = []model.CustomField{{ID: uuid.New().String(), TaskID: task.ID, Name: "x", Value: "1"}}
	repo.tasks[task.ID] = task

	ev, _ := newTestEvaluator(t, repo)
	rule := moveRule("desabilitada", colB.ID, model.RuleCondition{
		Type:     model.ConditionCustomField,
		Field:    "x",
		Operator: model.OperatorEquals,
		Value:    "1",
	})
	rule.Enabled = false

	result, err := ev.RunPass(context.Background(), testTenant, []model.Rule{rule})
	require.NoError(t, err)
	assert.Zero(t, result.Evaluated)
	assert.Zero(t, result.Moved)
}

func TestRuleSkipsTaskAlreadyInTargetColumn(t *testing.T) {
	repo := newFakeBoardRepo()
	colA, _, task := seedBoard(t, repo)
	task.CustomFields = []model.CustomField{{ID: uuid.New().String(), TaskID: task.ID, Name: "x", Value: "1"}}
	repo.tasks[task.ID] = task

	ev, _ := newTestEvaluator(t, repo)
	rule := moveRule("já no destino", colA.ID, model.RuleCondition{
		Type:     model.ConditionCustomField,
		Field:    "x",
		Operator: model.OperatorEquals,
		Value:    "1",
	})

	result, err := ev.RunPass(context.Background(), testTenant, []model.Rule{rule})
	require.NoError(t, err)
	assert.Zero(t, result.Moved)
	assert.Zero(t, repo.moveCalls)
}

// Duas regras apontando uma para a coluna da outra formariam um ciclo
// infinito sem o guarda de visitados: dentro de uma passada cada par
// (task, regra) dispara no máximo uma vez, então a passada termina com
// um número finito de movimentos. Passadas sucessivas ainda alternam a
// task entre as colunas, o que este teste torna observável.
func TestOpposingRulesAreBoundedPerPass(t *testing.T) {
	repo := newFakeBoardRepo()
	colA, colB, task := seedBoard(t, repo)
	task.CustomFields = []model.CustomField{{ID: uuid.New().String(), TaskID: task.ID, Name: "x", Value: "1"}}
	repo.tasks[task.ID] = task

	ev, m := newTestEvaluator(t, repo)
	shared := model.RuleCondition{
		Type:     model.ConditionCustomField,
		Field:    "x",
		Operator: model.OperatorEquals,
		Value:    "1",
	}
	r1 := moveRule("A para B", colB.ID, shared)
	r2 := moveRule("B para A", colA.ID, shared)
	rules := []model.Rule{r1, r2}

	// R1 move A→B, R2 devolve B→A. O guarda por (task, regra) impede R1
	// de disparar uma segunda vez na mesma passada.
	first, err := ev.RunPass(context.Background(), testTenant, rules)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Moved, "cada regra dispara no máximo uma vez por passada")
	assert.True(t, taskIn(t, m, colA.ID, task.ID))

	// Passadas sucessivas repetem o mesmo vaivém finito, nunca um loop
	// dentro da passada.
	second, err := ev.RunPass(context.Background(), testTenant, rules)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Moved)
	assert.True(t, taskIn(t, m, colA.ID, task.ID))
	assert.Equal(t, 4, repo.moveCalls)
}
