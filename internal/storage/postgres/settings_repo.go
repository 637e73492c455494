package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/roni12291832/nexus-car/internal/storage/model"
)

type settingsRepo struct {
	db *DB
}

func NewSettingsRepository(db *DB) *settingsRepo {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) Get(ctx context.Context, tenantID string) (model.StoreSettings, error) {
	var s model.StoreSettings
	err := r.db.Pool.QueryRow(ctx,
		`SELECT tenant_id, COALESCE(store_name, ''), COALESCE(email, ''), COALESCE(open_time, ''), COALESCE(close_time, ''), weekend_open, COALESCE(business_hours_message, ''), updated_at
		 FROM store_settings WHERE tenant_id = $1`,
		tenantID,
	).Scan(&s.TenantID, &s.StoreName, &s.Email, &s.OpenTime, &s.CloseTime, &s.WeekendOpen, &s.BusinessHoursMessage, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.StoreSettings{}, ErrNotFound
	}
	if err != nil {
		return model.StoreSettings{}, err
	}
	return s, nil
}

// Upsert mantém uma linha por tenant; conflito na chave sobrescreve.
func (r *settingsRepo) Upsert(ctx context.Context, s model.StoreSettings) (model.StoreSettings, error) {
	s.UpdatedAt = time.Now()

	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO store_settings (tenant_id, store_name, email, open_time, close_time, weekend_open, business_hours_message, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (tenant_id) DO UPDATE SET
			store_name = EXCLUDED.store_name,
			email = EXCLUDED.email,
			open_time = EXCLUDED.open_time,
			close_time = EXCLUDED.close_time,
			weekend_open = EXCLUDED.weekend_open,
			business_hours_message = EXCLUDED.business_hours_message,
			updated_at = EXCLUDED.updated_at
		 RETURNING tenant_id, COALESCE(store_name, ''), COALESCE(email, ''), COALESCE(open_time, ''), COALESCE(close_time, ''), weekend_open, COALESCE(business_hours_message, ''), updated_at`,
		s.TenantID, nullIfEmpty(s.StoreName), nullIfEmpty(s.Email), nullIfEmpty(s.OpenTime), nullIfEmpty(s.CloseTime), s.WeekendOpen, nullIfEmpty(s.BusinessHoursMessage), s.UpdatedAt,
	).Scan(&s.TenantID, &s.StoreName, &s.Email, &s.OpenTime, &s.CloseTime, &s.WeekendOpen, &s.BusinessHoursMessage, &s.UpdatedAt)
	if err != nil {
		return model.StoreSettings{}, err
	}
	return s, nil
}
