package sqlite

import (
	"context"
	"time"

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
	var updatedAt string
	err := r.db.Conn.QueryRowContext(ctx,
		`SELECT tenant_id, COALESCE(store_name, ''), COALESCE(email, ''), COALESCE(open_time, ''), COALESCE(close_time, ''), weekend_open, COALESCE(business_hours_message, ''), updated_at
		 FROM store_settings WHERE tenant_id = ?`,
		tenantID,
	).Scan(&s.TenantID, &s.StoreName, &s.Email, &s.OpenTime, &s.CloseTime, &s.WeekendOpen, &s.BusinessHoursMessage, &updatedAt)
	if err != nil {
		return model.StoreSettings{}, mapError(err)
	}
	s.UpdatedAt = parseTime(updatedAt)
	return s, nil
}

// Upsert mantém uma linha por tenant; conflito na chave sobrescreve.
func (r *settingsRepo) Upsert(ctx context.Context, s model.StoreSettings) (model.StoreSettings, error) {
	s.UpdatedAt = time.Now()

	_, err := r.db.Conn.ExecContext(ctx,
		`INSERT INTO store_settings (tenant_id, store_name, email, open_time, close_time, weekend_open, business_hours_message, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id) DO UPDATE SET
			store_name = excluded.store_name,
			email = excluded.email,
			open_time = excluded.open_time,
			close_time = excluded.close_time,
			weekend_open = excluded.weekend_open,
			business_hours_message = excluded.business_hours_message,
			updated_at = excluded.updated_at`,
		s.TenantID, nullIfEmpty(s.StoreName), nullIfEmpty(s.Email), nullIfEmpty(s.OpenTime), nullIfEmpty(s.CloseTime), s.WeekendOpen, nullIfEmpty(s.BusinessHoursMessage), fmtTime(s.UpdatedAt),
	)
	if err != nil {
		return model.StoreSettings{}, err
	}
	return r.Get(ctx, s.TenantID)
}
