package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roni12291832/nexus-car/internal/storage/model"
)

type leadRepo struct {
	db *DB
}

func NewLeadRepository(db *DB) *leadRepo {
	return &leadRepo{db: db}
}

const leadColumns = `id, tenant_id, name, phone, stage, COALESCE(interest, ''), created_at`

func (r *leadRepo) Create(ctx context.Context, lead model.Lead) (model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	lead.CreatedAt = time.Now()

	_, err := r.db.Conn.ExecContext(ctx,
		`INSERT INTO leads (id, tenant_id, name, phone, stage, interest, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.TenantID, lead.Name, lead.Phone, string(lead.Stage), nullIfEmpty(lead.Interest), fmtTime(lead.CreatedAt),
	)
	if err != nil {
		return model.Lead{}, err
	}
	return lead, nil
}

func (r *leadRepo) GetByID(ctx context.Context, tenantID, id string) (model.Lead, error) {
	var lead model.Lead
	var createdAt string
	err := r.db.Conn.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ? AND tenant_id = ?`, id, tenantID,
	).Scan(&lead.ID, &lead.TenantID, &lead.Name, &lead.Phone, &lead.Stage, &lead.Interest, &createdAt)
	if err != nil {
		return model.Lead{}, mapError(err)
	}
	lead.CreatedAt = parseTime(createdAt)
	return lead, nil
}

func (r *leadRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Lead, error) {
	rows, err := r.db.Conn.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var lead model.Lead
		var createdAt string
		if err := rows.Scan(&lead.ID, &lead.TenantID, &lead.Name, &lead.Phone, &lead.Stage, &lead.Interest, &createdAt); err != nil {
			return nil, err
		}
		lead.CreatedAt = parseTime(createdAt)
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (r *leadRepo) Update(ctx context.Context, lead model.Lead) (model.Lead, error) {
	result, err := r.db.Conn.ExecContext(ctx,
		`UPDATE leads SET name = ?, phone = ?, stage = ?, interest = ? WHERE id = ? AND tenant_id = ?`,
		lead.Name, lead.Phone, string(lead.Stage), nullIfEmpty(lead.Interest), lead.ID, lead.TenantID,
	)
	if err != nil {
		return model.Lead{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return model.Lead{}, err
	}
	if affected == 0 {
		return model.Lead{}, ErrNotFound
	}
	return r.GetByID(ctx, lead.TenantID, lead.ID)
}

func (r *leadRepo) UpdateStage(ctx context.Context, tenantID, id string, stage model.LeadStage) error {
	result, err := r.db.Conn.ExecContext(ctx,
		`UPDATE leads SET stage = ? WHERE id = ? AND tenant_id = ?`,
		string(stage), id, tenantID,
	)
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
