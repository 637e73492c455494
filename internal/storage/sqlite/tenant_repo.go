package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

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

	_, err := r.db.Conn.ExecContext(ctx,
		`INSERT INTO tenants (id, email, password_hash, subscription_id, status, ativo, current_period_end, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Email, t.PasswordHash, nullIfEmpty(t.SubscriptionID), nullIfEmpty(t.Status), t.Ativo,
		fmtTimePtr(t.CurrentPeriodEnd), fmtTime(t.CreatedAt),
	)
	if err != nil {
		return model.Tenant{}, err
	}
	return t, nil
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (model.Tenant, error) {
	return r.scanOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id)
}

func (r *tenantRepo) GetByEmail(ctx context.Context, email string) (model.Tenant, error) {
	return r.scanOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE email = ?`, email)
}

// UpsertSubscription grava apenas os campos mantidos pelo webhook de
// cobrança.
func (r *tenantRepo) UpsertSubscription(ctx context.Context, t model.Tenant) error {
	result, err := r.db.Conn.ExecContext(ctx,
		`UPDATE tenants SET subscription_id = ?, status = ?, ativo = ?, current_period_end = ? WHERE id = ?`,
		nullIfEmpty(t.SubscriptionID), nullIfEmpty(t.Status), t.Ativo, fmtTimePtr(t.CurrentPeriodEnd), t.ID,
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

func (r *tenantRepo) scanOne(ctx context.Context, query string, args ...interface{}) (model.Tenant, error) {
	var t model.Tenant
	var createdAt string
	var periodEnd sql.NullString
	err := r.db.Conn.QueryRowContext(ctx, query, args...).Scan(
		&t.ID, &t.Email, &t.PasswordHash, &t.SubscriptionID, &t.Status, &t.Ativo, &periodEnd, &createdAt,
	)
	if err != nil {
		return model.Tenant{}, mapError(err)
	}
	t.CurrentPeriodEnd = parseTimePtr(periodEnd)
	t.CreatedAt = parseTime(createdAt)
	return t, nil
}
