package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/roni12291832/nexus-car/internal/storage/model"
)

type instanceRepo struct {
	db *DB
}

func NewInstanceRepository(db *DB) *instanceRepo {
	return &instanceRepo{db: db}
}

const instanceColumns = `id, tenant_id, instance_name, status, COALESCE(token, ''), COALESCE(number, ''), COALESCE(pairing_code, ''), COALESCE(qr_code_base64, ''), created_at, updated_at`

// Upsert é chaveado pelo nome da instância: duas chamadas com o mesmo
// nome resultam em uma única linha com os campos da última.
func (r *instanceRepo) Upsert(ctx context.Context, inst model.Instance) (model.Instance, error) {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	now := time.Now()
	inst.CreatedAt = now
	inst.UpdatedAt = now

	query := `
		INSERT INTO whatsapp_instances (id, tenant_id, instance_name, status, token, number, pairing_code, qr_code_base64, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (instance_name) DO UPDATE SET
			status = EXCLUDED.status,
			token = EXCLUDED.token,
			number = EXCLUDED.number,
			pairing_code = EXCLUDED.pairing_code,
			qr_code_base64 = EXCLUDED.qr_code_base64,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + instanceColumns

	err := r.db.Pool.QueryRow(ctx, query,
		inst.ID, inst.TenantID, inst.InstanceName, string(inst.Status),
		nullIfEmpty(inst.Token), nullIfEmpty(inst.Number), nullIfEmpty(inst.PairingCode), nullIfEmpty(inst.QRCodeBase64),
		inst.CreatedAt, inst.UpdatedAt,
	).Scan(
		&inst.ID, &inst.TenantID, &inst.InstanceName, &inst.Status,
		&inst.Token, &inst.Number, &inst.PairingCode, &inst.QRCodeBase64,
		&inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return model.Instance{}, err
	}
	return inst, nil
}

func (r *instanceRepo) GetByID(ctx context.Context, tenantID, id string) (model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM whatsapp_instances WHERE id = $1 AND tenant_id = $2`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, id, tenantID))
}

func (r *instanceRepo) GetByName(ctx context.Context, tenantID, instanceName string) (model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM whatsapp_instances WHERE instance_name = $1 AND tenant_id = $2`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, instanceName, tenantID))
}

func (r *instanceRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM whatsapp_instances WHERE tenant_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		var inst model.Instance
		if err := rows.Scan(
			&inst.ID, &inst.TenantID, &inst.InstanceName, &inst.Status,
			&inst.Token, &inst.Number, &inst.PairingCode, &inst.QRCodeBase64,
			&inst.CreatedAt, &inst.UpdatedAt,
		); err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// ListTenantIDs retorna os tenants que possuem alguma instância, para a
// reconciliação periódica varrer só quem tem o que reconciliar.
func (r *instanceRepo) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT DISTINCT tenant_id FROM whatsapp_instances`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *instanceRepo) Update(ctx context.Context, inst model.Instance) (model.Instance, error) {
	inst.UpdatedAt = time.Now()

	query := `
		UPDATE whatsapp_instances
		SET status = $3, token = $4, number = $5, pairing_code = $6, qr_code_base64 = $7, updated_at = $8
		WHERE id = $1 AND tenant_id = $2
		RETURNING ` + instanceColumns

	return r.scanOne(r.db.Pool.QueryRow(ctx, query,
		inst.ID, inst.TenantID, string(inst.Status),
		nullIfEmpty(inst.Token), nullIfEmpty(inst.Number), nullIfEmpty(inst.PairingCode), nullIfEmpty(inst.QRCodeBase64),
		inst.UpdatedAt,
	))
}

func (r *instanceRepo) UpdateStatus(ctx context.Context, tenantID, id string, status model.InstanceStatus) error {
	query := `UPDATE whatsapp_instances SET status = $3, updated_at = $4 WHERE id = $1 AND tenant_id = $2`
	result, err := r.db.Pool.Exec(ctx, query, id, tenantID, string(status), time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *instanceRepo) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM whatsapp_instances WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *instanceRepo) scanOne(row pgx.Row) (model.Instance, error) {
	var inst model.Instance
	err := row.Scan(
		&inst.ID, &inst.TenantID, &inst.InstanceName, &inst.Status,
		&inst.Token, &inst.Number, &inst.PairingCode, &inst.QRCodeBase64,
		&inst.CreatedAt, &inst.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Instance{}, ErrNotFound
	}
	if err != nil {
		return model.Instance{}, err
	}
	return inst, nil
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
