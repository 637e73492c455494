package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open("file::memory:?_foreign_keys=on", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "db", "migrations", "sqlite", "0001_init.up.sql"))
	require.NoError(t, err)

	for _, stmt := range strings.Split(string(schema), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		_, err := db.Conn.ExecContext(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}
	return db
}

func seedTenant(t *testing.T, db *DB) model.Tenant {
	t.Helper()
	tenant, err := NewTenantRepository(db).Create(context.Background(), model.Tenant{
		Email:        "loja@exemplo.com.br",
		PasswordHash: "x",
		Ativo:        true,
	})
	require.NoError(t, err)
	return tenant
}

func TestInstanceUpsertIsIdempotentOnName(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	repo := NewInstanceRepository(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, model.Instance{
		TenantID:     tenant.ID,
		InstanceName: tenant.ID,
		Status:       model.InstanceStatusAwaiting,
		Token:        "token-antigo",
		QRCodeBase64: "data:image/png;base64,aaa",
	})
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, model.Instance{
		TenantID:     tenant.ID,
		InstanceName: tenant.ID,
		Status:       model.InstanceStatusConnected,
		Token:        "token-novo",
		Number:       "5511999999999",
	})
	require.NoError(t, err)

	// Mesma linha, campos da última escrita.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.InstanceStatusConnected, second.Status)
	assert.Equal(t, "token-novo", second.Token)
	assert.Equal(t, "5511999999999", second.Number)

	list, err := repo.ListByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInstanceTenantScoping(t *testing.T) {
	db := newTestDB(t)
	tenantA := seedTenant(t, db)
	tenantB, err := NewTenantRepository(db).Create(context.Background(), model.Tenant{
		Email:        "outra@exemplo.com.br",
		PasswordHash: "x",
		Ativo:        true,
	})
	require.NoError(t, err)

	repo := NewInstanceRepository(db)
	ctx := context.Background()

	inst, err := repo.Upsert(ctx, model.Instance{
		TenantID:     tenantA.ID,
		InstanceName: tenantA.ID,
		Status:       model.InstanceStatusAwaiting,
		Token:        "tok",
	})
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, tenantB.ID, inst.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = repo.Delete(ctx, tenantB.ID, inst.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := repo.GetByID(ctx, tenantA.ID, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, got.ID)
}

func TestInstanceListTenantIDs(t *testing.T) {
	db := newTestDB(t)
	tenantA := seedTenant(t, db)
	tenantB, err := NewTenantRepository(db).Create(context.Background(), model.Tenant{
		Email:        "outra@exemplo.com.br",
		PasswordHash: "x",
		Ativo:        true,
	})
	require.NoError(t, err)

	repo := NewInstanceRepository(db)
	ctx := context.Background()

	for _, tenantID := range []string{tenantA.ID, tenantB.ID} {
		_, err := repo.Upsert(ctx, model.Instance{
			TenantID:     tenantID,
			InstanceName: tenantID,
			Status:       model.InstanceStatusAwaiting,
			Token:        "tok",
		})
		require.NoError(t, err)
	}

	ids, err := repo.ListTenantIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{tenantA.ID, tenantB.ID}, ids)
}

func TestInstanceUpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	repo := NewInstanceRepository(db)
	ctx := context.Background()

	inst, err := repo.Upsert(ctx, model.Instance{
		TenantID:     tenant.ID,
		InstanceName: tenant.ID,
		Status:       model.InstanceStatusAwaiting,
		Token:        "tok",
		QRCodeBase64: "data:image/png;base64,aaa",
		PairingCode:  "ABCD-1234",
	})
	require.NoError(t, err)

	inst.Status = model.InstanceStatusConnected
	inst.QRCodeBase64 = ""
	inst.PairingCode = ""
	updated, err := repo.Update(ctx, inst)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusConnected, updated.Status)
	assert.Empty(t, updated.QRCodeBase64)
	assert.Empty(t, updated.PairingCode)

	require.NoError(t, repo.Delete(ctx, tenant.ID, inst.ID))
	_, err = repo.GetByID(ctx, tenant.ID, inst.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
