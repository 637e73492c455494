package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/roni12291832/nexus-car/internal/storage/model"
)

type tenantRepo struct {
	db *DB
}

func NewTenantRepository(db *DB) *tenantRepo {
	return &tenantRepo{db: db}
}

const tenantColumns = `id, email, password_hash, COALESCE(subscription_id, ''), COALESCE(status, ''), ativo, current_period_end, created_at`

func (r *tenantRepo) Create(ctx context.Context, t model.Tenant) (model.Tenant, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now()

	return r.scanOne(r.db.Pool.QueryRow(ctx,
		`INSERT INTO tenants (id, email, password_hash, subscription_id, status, ativo, current_period_end, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+tenantColumns,
		t.ID, t.Email, t.PasswordHash, nullIfEmpty(t.SubscriptionID), nullIfEmpty(t.Status), t.Ativo, t.CurrentPeriodEnd, t.CreatedAt,
	))
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (model.Tenant, error) {
	return r.scanOne(r.db.Pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

func (r *tenantRepo) GetByEmail(ctx context.Context, email string) (model.Tenant, error) {
	return r.scanOne(r.db.Pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE email = $1`, email))
}

// UpsertSubscription grava apenas os campos mantidos pelo webhook de
// cobrança.
func (r *tenantRepo) UpsertSubscription(ctx context.Context, t model.Tenant) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE tenants SET subscription_id = $2, status = $3, ativo = $4, current_period_end = $5 WHERE id = $1`,
		t.ID, nullIfEmpty(t.SubscriptionID), nullIfEmpty(t.Status), t.Ativo, t.CurrentPeriodEnd,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *tenantRepo) scanOne(row pgx.Row) (model.Tenant, error) {
	var t model.Tenant
	err := row.Scan(&t.ID, &t.Email, &t.PasswordHash, &t.SubscriptionID, &t.Status, &t.Ativo, &t.CurrentPeriodEnd, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Tenant{}, ErrNotFound
	}
	if err != nil {
		return model.Tenant{}, err
	}
	return t, nil
}
