package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

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

	return r.scanOne(r.db.Pool.QueryRow(ctx,
		`INSERT INTO vehicles (id, tenant_id, name, model, year, price, type, status, views, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+vehicleColumns,
		v.ID, v.TenantID, v.Name, nullIfEmpty(v.Model), v.Year, v.Price, nullIfEmpty(v.Type), string(v.Status), v.Views, v.CreatedAt, v.UpdatedAt,
	))
}

func (r *vehicleRepo) GetByID(ctx context.Context, tenantID, id string) (model.Vehicle, error) {
	return r.scanOne(r.db.Pool.QueryRow(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	))
}

func (r *vehicleRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Vehicle, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.TenantID, &v.Name, &v.Model, &v.Year, &v.Price, &v.Type, &v.Status, &v.Views, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (r *vehicleRepo) Update(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	v.UpdatedAt = time.Now()
	return r.scanOne(r.db.Pool.QueryRow(ctx,
		`UPDATE vehicles
		 SET name = $3, model = $4, year = $5, price = $6, type = $7, status = $8, views = $9, updated_at = $10
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING `+vehicleColumns,
		v.ID, v.TenantID, v.Name, nullIfEmpty(v.Model), v.Year, v.Price, nullIfEmpty(v.Type), string(v.Status), v.Views, v.UpdatedAt,
	))
}

func (r *vehicleRepo) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM vehicles WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *vehicleRepo) scanOne(row pgx.Row) (model.Vehicle, error) {
	var v model.Vehicle
	err := row.Scan(&v.ID, &v.TenantID, &v.Name, &v.Model, &v.Year, &v.Price, &v.Type, &v.Status, &v.Views, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Vehicle{}, ErrNotFound
	}
	if err != nil {
		return model.Vehicle{}, err
	}
	return v, nil
}
