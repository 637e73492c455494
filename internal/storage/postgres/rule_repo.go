package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roni12291832/nexus-car/internal/storage/model"
)

type ruleRepo struct {
	db *DB
}

func NewRuleRepository(db *DB) *ruleRepo {
	return &ruleRepo{db: db}
}

func (r *ruleRepo) List(ctx context.Context, tenantID string) ([]model.Rule, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT r.id, r.tenant_id, r.name, r.enabled, r.created_at,
		        c.id, COALESCE(c.type, ''), COALESCE(c.field, ''), COALESCE(c.operator, ''), COALESCE(c.value, ''),
		        a.id, COALESCE(a.type, ''), COALESCE(a.target_column_id, '')
		 FROM rules r
		 LEFT JOIN rule_conditions c ON c.rule_id = r.id
		 LEFT JOIN rule_actions a ON a.rule_id = r.id
		 WHERE r.tenant_id = $1
		 ORDER BY r.created_at`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.Rule
	for rows.Next() {
		var (
			rule       model.Rule
			condID     *string
			condType   string
			condField  string
			condOp     string
			condValue  string
			actionID   *string
			actionType string
			targetCol  string
		)
		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Enabled, &rule.CreatedAt,
			&condID, &condType, &condField, &condOp, &condValue,
			&actionID, &actionType, &targetCol,
		); err != nil {
			return nil, err
		}
		if condID != nil {
			rule.Condition = &model.RuleCondition{
				ID: *condID, RuleID: rule.ID,
				Type: condType, Field: condField, Operator: condOp, Value: condValue,
			}
		}
		if actionID != nil {
			rule.Action = &model.RuleAction{
				ID: *actionID, RuleID: rule.ID,
				Type: actionType, TargetColumnID: targetCol,
			}
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Create grava cabeçalho, condição e ação como três escritas separadas,
// sem transação, espelhando o formato das tabelas.
func (r *ruleRepo) Create(ctx context.Context, rule model.Rule) (model.Rule, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	rule.CreatedAt = time.Now()

	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO rules (id, tenant_id, name, enabled, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rule.ID, rule.TenantID, rule.Name, rule.Enabled, rule.CreatedAt,
	)
	if err != nil {
		return model.Rule{}, err
	}

	if rule.Condition != nil {
		if rule.Condition.ID == "" {
			rule.Condition.ID = uuid.New().String()
		}
		rule.Condition.RuleID = rule.ID
		_, err = r.db.Pool.Exec(ctx,
			`INSERT INTO rule_conditions (id, rule_id, type, field, operator, value) VALUES ($1, $2, $3, $4, $5, $6)`,
			rule.Condition.ID, rule.ID, rule.Condition.Type, nullIfEmpty(rule.Condition.Field), rule.Condition.Operator, nullIfEmpty(rule.Condition.Value),
		)
		if err != nil {
			return model.Rule{}, err
		}
	}

	if rule.Action != nil {
		if rule.Action.ID == "" {
			rule.Action.ID = uuid.New().String()
		}
		rule.Action.RuleID = rule.ID
		_, err = r.db.Pool.Exec(ctx,
			`INSERT INTO rule_actions (id, rule_id, type, target_column_id) VALUES ($1, $2, $3, $4)`,
			rule.Action.ID, rule.ID, rule.Action.Type, rule.Action.TargetColumnID,
		)
		if err != nil {
			return model.Rule{}, err
		}
	}

	return rule, nil
}

func (r *ruleRepo) Update(ctx context.Context, rule model.Rule) (model.Rule, error) {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE rules SET name = $3, enabled = $4 WHERE id = $1 AND tenant_id = $2`,
		rule.ID, rule.TenantID, rule.Name, rule.Enabled,
	)
	if err != nil {
		return model.Rule{}, err
	}
	if result.RowsAffected() == 0 {
		return model.Rule{}, ErrNotFound
	}

	if rule.Condition != nil {
		rule.Condition.RuleID = rule.ID
		if rule.Condition.ID == "" {
			rule.Condition.ID = uuid.New().String()
		}
		_, err = r.db.Pool.Exec(ctx,
			`INSERT INTO rule_conditions (id, rule_id, type, field, operator, value)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (rule_id) DO UPDATE SET type = EXCLUDED.type, field = EXCLUDED.field, operator = EXCLUDED.operator, value = EXCLUDED.value`,
			rule.Condition.ID, rule.ID, rule.Condition.Type, nullIfEmpty(rule.Condition.Field), rule.Condition.Operator, nullIfEmpty(rule.Condition.Value),
		)
		if err != nil {
			return model.Rule{}, err
		}
	}

	if rule.Action != nil {
		rule.Action.RuleID = rule.ID
		if rule.Action.ID == "" {
			rule.Action.ID = uuid.New().String()
		}
		_, err = r.db.Pool.Exec(ctx,
			`INSERT INTO rule_actions (id, rule_id, type, target_column_id)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (rule_id) DO UPDATE SET type = EXCLUDED.type, target_column_id = EXCLUDED.target_column_id`,
			rule.Action.ID, rule.ID, rule.Action.Type, rule.Action.TargetColumnID,
		)
		if err != nil {
			return model.Rule{}, err
		}
	}

	return rule, nil
}

func (r *ruleRepo) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM rules WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
