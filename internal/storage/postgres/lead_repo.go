package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

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

	query := `
		INSERT INTO leads (id, tenant_id, name, phone, stage, interest, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + leadColumns

	return r.scanOne(r.db.Pool.QueryRow(ctx, query,
		lead.ID, lead.TenantID, lead.Name, lead.Phone, string(lead.Stage), nullIfEmpty(lead.Interest), lead.CreatedAt,
	))
}

func (r *leadRepo) GetByID(ctx context.Context, tenantID, id string) (model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 AND tenant_id = $2`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, id, tenantID))
}

func (r *leadRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var lead model.Lead
		if err := rows.Scan(&lead.ID, &lead.TenantID, &lead.Name, &lead.Phone, &lead.Stage, &lead.Interest, &lead.CreatedAt); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (r *leadRepo) Update(ctx context.Context, lead model.Lead) (model.Lead, error) {
	query := `
		UPDATE leads
		SET name = $3, phone = $4, stage = $5, interest = $6
		WHERE id = $1 AND tenant_id = $2
		RETURNING ` + leadColumns

	return r.scanOne(r.db.Pool.QueryRow(ctx, query,
		lead.ID, lead.TenantID, lead.Name, lead.Phone, string(lead.Stage), nullIfEmpty(lead.Interest),
	))
}

func (r *leadRepo) UpdateStage(ctx context.Context, tenantID, id string, stage model.LeadStage) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE leads SET stage = $3 WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, string(stage),
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *leadRepo) scanOne(row pgx.Row) (model.Lead, error) {
	var lead model.Lead
	err := row.Scan(&lead.ID, &lead.TenantID, &lead.Name, &lead.Phone, &lead.Stage, &lead.Interest, &lead.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Lead{}, ErrNotFound
	}
	if err != nil {
		return model.Lead{}, err
	}
	return lead, nil
}
