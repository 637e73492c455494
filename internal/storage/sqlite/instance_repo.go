package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"

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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (instance_name) DO UPDATE SET
			status = excluded.status,
			token = excluded.token,
			number = excluded.number,
			pairing_code = excluded.pairing_code,
			qr_code_base64 = excluded.qr_code_base64,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Conn.ExecContext(ctx, query,
		inst.ID, inst.TenantID, inst.InstanceName, string(inst.Status),
		nullIfEmpty(inst.Token), nullIfEmpty(inst.Number), nullIfEmpty(inst.PairingCode), nullIfEmpty(inst.QRCodeBase64),
		fmtTime(inst.CreatedAt), fmtTime(inst.UpdatedAt),
	)
	if err != nil {
		return model.Instance{}, err
	}

	// O id de uma linha pré-existente é preservado pelo conflito.
	return r.GetByName(ctx, inst.TenantID, inst.InstanceName)
}

func (r *instanceRepo) GetByID(ctx context.Context, tenantID, id string) (model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM whatsapp_instances WHERE id = ? AND tenant_id = ?`
	return r.scanOne(ctx, query, id, tenantID)
}

func (r *instanceRepo) GetByName(ctx context.Context, tenantID, instanceName string) (model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM whatsapp_instances WHERE instance_name = ? AND tenant_id = ?`
	return r.scanOne(ctx, query, instanceName, tenantID)
}

func (r *instanceRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM whatsapp_instances WHERE tenant_id = ? ORDER BY created_at DESC`

	rows, err := r.db.Conn.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		var inst model.Instance
		var createdAt, updatedAt string
		if err := rows.Scan(
			&inst.ID, &inst.TenantID, &inst.InstanceName, &inst.Status,
			&inst.Token, &inst.Number, &inst.PairingCode, &inst.QRCodeBase64,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		inst.CreatedAt = parseTime(createdAt)
		inst.UpdatedAt = parseTime(updatedAt)
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// ListTenantIDs retorna os tenants que possuem alguma instância, para a
// reconciliação periódica varrer só quem tem o que reconciliar.
func (r *instanceRepo) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Conn.QueryContext(ctx, `SELECT DISTINCT tenant_id FROM whatsapp_instances`)
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

	result, err := r.db.Conn.ExecContext(ctx,
		`UPDATE whatsapp_instances
		 SET status = ?, token = ?, number = ?, pairing_code = ?, qr_code_base64 = ?, updated_at = ?
		 WHERE id = ? AND tenant_id = ?`,
		string(inst.Status), nullIfEmpty(inst.Token), nullIfEmpty(inst.Number), nullIfEmpty(inst.PairingCode), nullIfEmpty(inst.QRCodeBase64),
		fmtTime(inst.UpdatedAt), inst.ID, inst.TenantID,
	)
	if err != nil {
		return model.Instance{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return model.Instance{}, err
	}
	if affected == 0 {
		return model.Instance{}, ErrNotFound
	}
	return r.GetByID(ctx, inst.TenantID, inst.ID)
}

func (r *instanceRepo) UpdateStatus(ctx context.Context, tenantID, id string, status model.InstanceStatus) error {
	result, err := r.db.Conn.ExecContext(ctx,
		`UPDATE whatsapp_instances SET status = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`,
		string(status), fmtTime(time.Now()), id, tenantID,
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

func (r *instanceRepo) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.Conn.ExecContext(ctx,
		`DELETE FROM whatsapp_instances WHERE id = ? AND tenant_id = ?`, id, tenantID)
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

func (r *instanceRepo) scanOne(ctx context.Context, query string, args ...interface{}) (model.Instance, error) {
	var inst model.Instance
	var createdAt, updatedAt string
	err := r.db.Conn.QueryRowContext(ctx, query, args...).Scan(
		&inst.ID, &inst.TenantID, &inst.InstanceName, &inst.Status,
		&inst.Token, &inst.Number, &inst.PairingCode, &inst.QRCodeBase64,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return model.Instance{}, mapError(err)
	}
	inst.CreatedAt = parseTime(createdAt)
	inst.UpdatedAt = parseTime(updatedAt)
	return inst, nil
}

func nullIfEmpty(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
