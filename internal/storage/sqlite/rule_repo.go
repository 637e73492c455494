package sqlite

import (
	"context"
	"database/sql"
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
	rows, err := r.db.Conn.QueryContext(ctx,
		`SELECT r.id, r.tenant_id, r.name, r.enabled, r.created_at,
		        c.id, COALESCE(c.type, ''), COALESCE(c.field, ''), COALESCE(c.operator, ''), COALESCE(c.value, ''),
		        a.id, COALESCE(a.type, ''), COALESCE(a.target_column_id, '')
		 FROM rules r
		 LEFT JOIN rule_conditions c ON c.rule_id = r.id
		 LEFT JOIN rule_actions a ON a.rule_id = r.id
		 WHERE r.tenant_id = ?
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
			createdAt  string
			condID     sql.NullString
			condType   string
			condField  string
			condOp     string
			condValue  string
			actionID   sql.NullString
			actionType string
			targetCol  string
		)
		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Enabled, &createdAt,
			&condID, &condType, &condField, &condOp, &condValue,
			&actionID, &actionType, &targetCol,
		); err != nil {
			return nil, err
		}
		rule.CreatedAt = parseTime(createdAt)
		if condID.Valid {
			rule.Condition = &model.RuleCondition{
				ID: condID.String, RuleID: rule.ID,
				Type: condType, Field: condField, Operator: condOp, Value: condValue,
			}
		}
		if actionID.Valid {
			rule.Action = &model.RuleAction{
				ID: actionID.String, RuleID: rule.ID,
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

	_, err := r.db.Conn.ExecContext(ctx,
		`INSERT INTO rules (id, tenant_id, name, enabled, created_at) VALUES (?, ?, ?, ?, ?)`,
		rule.ID, rule.TenantID, rule.Name, rule.Enabled, fmtTime(rule.CreatedAt),
	)
	if err != nil {
		return model.Rule{}, err
	}

	if rule.Condition != nil {
		if rule.Condition.ID == "" {
			rule.Condition.ID = uuid.New().String()
		}
		rule.Condition.RuleID = rule.ID
		_, err = r.db.Conn.ExecContext(ctx,
			`INSERT INTO rule_conditions (id, rule_id, type, field, operator, value) VALUES (?, ?, ?, ?, ?, ?)`,
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
		_, err = r.db.Conn.ExecContext(ctx,
			`INSERT INTO rule_actions (id, rule_id, type, target_column_id) VALUES (?, ?, ?, ?)`,
			rule.Action.ID, rule.ID, rule.Action.Type, rule.Action.TargetColumnID,
		)
		if err != nil {
			return model.Rule{}, err
		}
	}

	return rule, nil
}

func (r *ruleRepo) Update(ctx context.Context, rule model.Rule) (model.Rule, error) {
	result, err := r.db.Conn.ExecContext(ctx,
		`UPDATE rules SET name = ?, enabled = ? WHERE id = ? AND tenant_id = ?`,
		rule.Name, rule.Enabled, rule.ID, rule.TenantID,
	)
	if err != nil {
		return model.Rule{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return model.Rule{}, err
	}
	if affected == 0 {
		return model.Rule{}, ErrNotFound
	}

	if rule.Condition != nil {
		if rule.Condition.ID == "" {
			rule.Condition.ID = uuid.New().String()
		}
		rule.Condition.RuleID = rule.ID
		_, err = r.db.Conn.ExecContext(ctx,
			`INSERT INTO rule_conditions (id, rule_id, type, field, operator, value)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (rule_id) DO UPDATE SET type = excluded.type, field = excluded.field, operator = excluded.operator, value = excluded.value`,
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
		_, err = r.db.Conn.ExecContext(ctx,
			`INSERT INTO rule_actions (id, rule_id, type, target_column_id)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (rule_id) DO UPDATE SET type = excluded.type, target_column_id = excluded.target_column_id`,
			rule.Action.ID, rule.ID, rule.Action.Type, rule.Action.TargetColumnID,
		)
		if err != nil {
			return model.Rule{}, err
		}
	}

	return rule, nil
}

func (r *ruleRepo) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.Conn.ExecContext(ctx, `DELETE FROM rules WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
