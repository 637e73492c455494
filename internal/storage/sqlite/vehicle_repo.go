package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roni12291832/nexus-car/internal/storage/model"
)

type vehicleRepo struct {
	db *DB
}

func NewVehicleRepository(db *DB) *vehicleRepo {
	return &vehicleRepo{db: db}
}

const vehicleColumns = `id, tenant_id, name, COALESCE(model, ''), year, price, COALESCE(type, ''), status, views, created_at, updated_at`

func (r *vehicleRepo) Create(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := r.db.Conn.ExecContext(ctx,
		`INSERT INTO vehicles (id, tenant_id, name, model, year, price, type, status, views, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.TenantID, v.Name, nullIfEmpty(v.Model), v.Year, v.Price, nullIfEmpty(v.Type), string(v.Status), v.Views,
		fmtTime(v.CreatedAt), fmtTime(v.UpdatedAt),
	)
	if err != nil {
		return model.Vehicle{}, err
	}
	return v, nil
}

func (r *vehicleRepo) GetByID(ctx context.Context, tenantID, id string) (model.Vehicle, error) {
	var v model.Vehicle
	var createdAt, updatedAt string
	err := r.db.Conn.QueryRowContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = ? AND tenant_id = ?`, id, tenantID,
	).Scan(&v.ID, &v.TenantID, &v.Name, &v.Model, &v.Year, &v.Price, &v.Type, &v.Status, &v.Views, &createdAt, &updatedAt)
	if err != nil {
		return model.Vehicle{}, mapError(err)
	}
	v.CreatedAt = parseTime(createdAt)
	v.UpdatedAt = parseTime(updatedAt)
	return v, nil
}

func (r *vehicleRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Vehicle, error) {
	rows, err := r.db.Conn.QueryContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		var createdAt, updatedAt string
		if err := rows.Scan(&v.ID, &v.TenantID, &v.Name, &v.Model, &v.Year, &v.Price, &v.Type, &v.Status, &v.Views, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		v.CreatedAt = parseTime(createdAt)
		v.UpdatedAt = parseTime(updatedAt)
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (r *vehicleRepo) Update(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	v.UpdatedAt = time.Now()
	result, err := r.db.Conn.ExecContext(ctx,
		`UPDATE vehicles SET name = ?, model = ?, year = ?, price = ?, type = ?, status = ?, views = ?, updated_at = ?
		 WHERE id = ? AND tenant_id = ?`,
		v.Name, nullIfEmpty(v.Model), v.Year, v.Price, nullIfEmpty(v.Type), string(v.Status), v.Views,
		fmtTime(v.UpdatedAt), v.ID, v.TenantID,
	)
	if err != nil {
		return model.Vehicle{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return model.Vehicle{}, err
	}
	if affected == 0 {
		return model.Vehicle{}, ErrNotFound
	}
	return r.GetByID(ctx, v.TenantID, v.ID)
}

func (r *vehicleRepo) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.Conn.ExecContext(ctx, `DELETE FROM vehicles WHERE id = ? AND tenant_id = ?`, id, tenantID)
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
