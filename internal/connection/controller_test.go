package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/gateway"
	"github.com/roni12291832/nexus-car/internal/pkg/crypto"
	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
)

const testTokenKey = "chave-de-teste"

type fakeRepo struct {
	mu        sync.Mutex
	instances map[string]model.Instance
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{instances: make(map[string]model.Instance)}
}

func (r *fakeRepo) Upsert(_ context.Context, inst model.Instance) (model.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.instances {
		if existing.TenantID == inst.TenantID && existing.InstanceName == inst.InstanceName {
			inst.ID = existing.ID
			r.instances[inst.ID] = inst
			return inst, nil
		}
	}
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	r.instances[inst.ID] = inst
	return inst, nil
}

func (r *fakeRepo) GetByID(_ context.Context, tenantID, id string) (model.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok || inst.TenantID != tenantID {
		return model.Instance{}, storage.ErrNotFound
	}
	return inst, nil
}

func (r *fakeRepo) GetByName(_ context.Context, tenantID, name string) (model.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.instances {
		if inst.TenantID == tenantID && inst.InstanceName == name {
			return inst, nil
		}
	}
	return model.Instance{}, storage.ErrNotFound
}

func (r *fakeRepo) ListByTenant(_ context.Context, tenantID string) ([]model.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Instance
	for _, inst := range r.instances {
		if inst.TenantID == tenantID {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListTenantIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var ids []string
	for _, inst := range r.instances {
		if !seen[inst.TenantID] {
			seen[inst.TenantID] = true
			ids = append(ids, inst.TenantID)
		}
	}
	return ids, nil
}

func (r *fakeRepo) Update(_ context.Context, inst model.Instance) (model.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[inst.ID]; !ok {
		return model.Instance{}, storage.ErrNotFound
	}
	r.instances[inst.ID] = inst
	return inst, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, tenantID, id string, status model.InstanceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok || inst.TenantID != tenantID {
		return storage.ErrNotFound
	}
	inst.Status = status
	r.instances[id] = inst
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok || inst.TenantID != tenantID {
		return storage.ErrNotFound
	}
	delete(r.instances, id)
	return nil
}

func (r *fakeRepo) get(id string) (model.Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	return inst, ok
}

type fakeGateway struct {
	mu sync.Mutex

	createResult gateway.CreateResult
	createErr    error

	statusQueue []statusStep
	statusCalls int

	logoutErr   error
	logoutCalls int
}

type statusStep struct {
	result gateway.StatusResult
	err    error
}

func (g *fakeGateway) CreateInstance(context.Context, string) (gateway.CreateResult, error) {
	return g.createResult, g.createErr
}

func (g *fakeGateway) FetchQR(context.Context, string, string) (gateway.QR, error) {
	return gateway.QR{Kind: gateway.QRKindNone}, nil
}

func (g *fakeGateway) FetchStatus(context.Context, string) (gateway.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if len(g.statusQueue) == 0 {
		return gateway.StatusResult{}, nil
	}
	step := g.statusQueue[0]
	if len(g.statusQueue) > 1 {
		g.statusQueue = g.statusQueue[1:]
	}
	return step.result, step.err
}

func (g *fakeGateway) Logout(context.Context, string, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logoutCalls++
	return g.logoutErr
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusCalls
}

func newTestController(repo *fakeRepo, gw *fakeGateway) *Controller {
	return NewController(Options{
		Repo:         repo,
		Gateway:      gw,
		Logger:       zap.NewNop(),
		PollInterval: 10 * time.Millisecond,
		QRClearDelay: 5 * time.Millisecond,
		TokenKey:     testTokenKey,
	})
}

func seedInstance(t *testing.T, repo *fakeRepo, tenantID string) model.Instance {
	t.Helper()
	enc, err := crypto.EncryptString("token-plano", testTokenKey)
	require.NoError(t, err)
	inst, err := repo.Upsert(context.Background(), model.Instance{
		TenantID:     tenantID,
		InstanceName: tenantID,
		Status:       model.InstanceStatusAwaiting,
		Token:        enc,
	})
	require.NoError(t, err)
	return inst
}

func TestGeneratePersistsAndStartsPolling(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{
		createResult: gateway.CreateResult{
			Token:  "token-plano",
			Number: "5511999999999@s.whatsapp.net",
			QR:     gateway.QR{Kind: gateway.QRKindQR, ImageBase64: "data:image/png;base64,abc"},
		},
		statusQueue: []statusStep{{result: gateway.StatusResult{Connected: false}}},
	}
	ctrl := newTestController(repo, gw)
	defer ctrl.Shutdown()

	inst, err := ctrl.Generate(context.Background(), "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, model.InstanceStatusAwaiting, inst.Status)
	assert.Equal(t, "5511999999999", inst.Number)
	assert.Empty(t, inst.Token, "token nunca sai do controller")
	assert.Equal(t, StateAwaitingScan, ctrl.State("tenant-1"))

	stored, ok := repo.get(inst.ID)
	require.True(t, ok)
	plain, err := crypto.DecryptString(stored.Token, testTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "token-plano", plain)
}

func TestGenerateFailureLeavesNothingBehind(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{createErr: gateway.ErrGatewayUnavailable}
	ctrl := newTestController(repo, gw)

	_, err := ctrl.Generate(context.Background(), "tenant-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrGatewayUnavailable)
	assert.Equal(t, StateIdle, ctrl.State("tenant-1"))

	rows, err := repo.ListByTenant(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPollKeepsRetryingOnTransientFailure(t *testing.T) {
	repo := newFakeRepo()
	inst := seedInstance(t, repo, "tenant-1")
	gw := &fakeGateway{
		statusQueue: []statusStep{
			{err: gateway.ErrGatewayUnavailable},
			{err: gateway.ErrGatewayUnavailable},
			{result: gateway.StatusResult{Connected: true, Number: "5511988887777@s.whatsapp.net"}},
		},
	}
	ctrl := newTestController(repo, gw)
	defer ctrl.Shutdown()

	connected := make(chan model.Instance, 1)
	ctrl.SetOnConnected(func(i model.Instance) { connected <- i })
	ctrl.StartPolling(inst, "token-plano")

	select {
	case got := <-connected:
		assert.Equal(t, model.InstanceStatusConnected, got.Status)
		assert.Equal(t, "5511988887777", got.Number)
	case <-time.After(2 * time.Second):
		t.Fatal("poll não sobreviveu às falhas transitórias")
	}
	assert.GreaterOrEqual(t, gw.calls(), 3)
}

func TestPollStopsWhenInstanceDisappears(t *testing.T) {
	repo := newFakeRepo()
	inst := seedInstance(t, repo, "tenant-1")
	gw := &fakeGateway{
		statusQueue: []statusStep{{err: gateway.ErrInstanceNotFound}},
	}
	ctrl := newTestController(repo, gw)
	defer ctrl.Shutdown()

	handle := ctrl.StartPolling(inst, "token-plano")

	select {
	case <-handle.done:
	case <-time.After(2 * time.Second):
		t.Fatal("poll deveria parar quando a instância some no gateway")
	}

	assert.Equal(t, StateIdle, ctrl.State(inst.InstanceName))
	// A linha local fica; só a reconciliação decide removê-la.
	_, ok := repo.get(inst.ID)
	assert.True(t, ok)

	// O handle encerrado não fica esquecido no mapa de pollers.
	ctrl.mu.Lock()
	assert.Empty(t, ctrl.pollers)
	ctrl.mu.Unlock()
}

func TestConnectedCallbackFiresExactlyOnce(t *testing.T) {
	repo := newFakeRepo()
	inst := seedInstance(t, repo, "tenant-1")
	gw := &fakeGateway{
		statusQueue: []statusStep{{result: gateway.StatusResult{Connected: true}}},
	}
	ctrl := newTestController(repo, gw)
	defer ctrl.Shutdown()

	var mu sync.Mutex
	calls := 0
	done := make(chan struct{}, 1)
	ctrl.SetOnConnected(func(model.Instance) {
		mu.Lock()
		calls++
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	})

	handle := ctrl.StartPolling(inst, "token-plano")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback de conexão não disparou")
	}
	<-handle.done

	// Espera alguns intervalos a mais para um segundo disparo aparecer.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()

	ctrl.mu.Lock()
	assert.Empty(t, ctrl.pollers, "poller conectado sai do mapa sozinho")
	ctrl.mu.Unlock()
}

func TestStartPollingReplacesPreviousPoller(t *testing.T) {
	repo := newFakeRepo()
	inst := seedInstance(t, repo, "tenant-1")
	gw := &fakeGateway{}
	ctrl := newTestController(repo, gw)
	defer ctrl.Shutdown()

	first := ctrl.StartPolling(inst, "token-plano")
	second := ctrl.StartPolling(inst, "token-plano")

	select {
	case <-first.done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller anterior deveria ter sido parado")
	}

	ctrl.mu.Lock()
	assert.Same(t, second, ctrl.pollers[inst.InstanceName])
	assert.Len(t, ctrl.pollers, 1)
	ctrl.mu.Unlock()
}

func TestQRClearedAfterConnection(t *testing.T) {
	repo := newFakeRepo()
	enc, err := crypto.EncryptString("token-plano", testTokenKey)
	require.NoError(t, err)
	inst, err := repo.Upsert(context.Background(), model.Instance{
		TenantID:     "tenant-1",
		InstanceName: "tenant-1",
		Status:       model.InstanceStatusAwaiting,
		Token:        enc,
		QRCodeBase64: "data:image/png;base64,abc",
		PairingCode:  "ABCD-1234",
	})
	require.NoError(t, err)

	gw := &fakeGateway{
		statusQueue: []statusStep{{result: gateway.StatusResult{Connected: true}}},
	}
	ctrl := newTestController(repo, gw)
	defer ctrl.Shutdown()

	handle := ctrl.StartPolling(inst, "token-plano")
	<-handle.done

	assert.Eventually(t, func() bool {
		stored, ok := repo.get(inst.ID)
		return ok && stored.QRCodeBase64 == "" && stored.PairingCode == ""
	}, 2*time.Second, 10*time.Millisecond, "QR deveria ser limpo após a conexão")

	stored, _ := repo.get(inst.ID)
	assert.Equal(t, model.InstanceStatusConnected, stored.Status)
}

func TestDisconnectRemovesRowEvenWhenLogoutFails(t *testing.T) {
	repo := newFakeRepo()
	inst := seedInstance(t, repo, "tenant-1")
	gw := &fakeGateway{logoutErr: errors.New("timeout no gateway")}
	ctrl := newTestController(repo, gw)

	err := ctrl.Disconnect(context.Background(), "tenant-1", inst.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, gw.logoutCalls)
	_, ok := repo.get(inst.ID)
	assert.False(t, ok, "linha local some mesmo com logout falhando")
	assert.Equal(t, StateIdle, ctrl.State(inst.InstanceName))
}

func TestDisconnectCancelsActivePoller(t *testing.T) {
	repo := newFakeRepo()
	inst := seedInstance(t, repo, "tenant-1")
	gw := &fakeGateway{}
	ctrl := newTestController(repo, gw)

	fired := false
	ctrl.SetOnConnected(func(model.Instance) { fired = true })
	handle := ctrl.StartPolling(inst, "token-plano")

	err := ctrl.Disconnect(context.Background(), "tenant-1", inst.ID)
	require.NoError(t, err)

	select {
	case <-handle.done:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect deveria cancelar o poller")
	}
	assert.False(t, fired)
}

func TestDisconnectUnknownInstance(t *testing.T) {
	ctrl := newTestController(newFakeRepo(), &fakeGateway{})
	err := ctrl.Disconnect(context.Background(), "tenant-1", uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSyncAllRemovesTokenlessAndDeadInstances(t *testing.T) {
	repo := newFakeRepo()
	ctx := context.Background()

	orphan, err := repo.Upsert(ctx, model.Instance{
		TenantID:     "tenant-1",
		InstanceName: "orphan",
		Status:       model.InstanceStatusAwaiting,
	})
	require.NoError(t, err)

	dead := seedInstance(t, repo, "tenant-1")

	gw := &fakeGateway{
		statusQueue: []statusStep{{err: gateway.ErrInstanceNotFound}},
	}
	ctrl := newTestController(repo, gw)
	rec := NewReconciler(ctrl, nil, zap.NewNop())

	result, err := rec.SyncAll(ctx, "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 2, result.Removed)
	_, ok := repo.get(orphan.ID)
	assert.False(t, ok)
	_, ok = repo.get(dead.ID)
	assert.False(t, ok)
}

func TestRunPeriodicReconcilesTenantsWithInstances(t *testing.T) {
	repo := newFakeRepo()
	inst := seedInstance(t, repo, "tenant-1")

	gw := &fakeGateway{
		statusQueue: []statusStep{
			{result: gateway.StatusResult{Connected: true, Number: "5511977776666@s.whatsapp.net"}},
		},
	}
	ctrl := newTestController(repo, gw)
	rec := NewReconciler(ctrl, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.RunPeriodic(ctx, 10*time.Millisecond, repo.ListTenantIDs)

	assert.Eventually(t, func() bool {
		stored, ok := repo.get(inst.ID)
		return ok && stored.Status == model.InstanceStatusConnected
	}, 2*time.Second, 10*time.Millisecond, "a varredura periódica deveria reconciliar a instância")
}

func TestSyncAllUpdatesStatusFromGateway(t *testing.T) {
	repo := newFakeRepo()
	inst := seedInstance(t, repo, "tenant-1")

	gw := &fakeGateway{
		statusQueue: []statusStep{
			{result: gateway.StatusResult{Connected: true, Number: "5511977776666@s.whatsapp.net"}},
		},
	}
	ctrl := newTestController(repo, gw)
	rec := NewReconciler(ctrl, nil, zap.NewNop())

	result, err := rec.SyncAll(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	stored, _ := repo.get(inst.ID)
	assert.Equal(t, model.InstanceStatusConnected, stored.Status)
	assert.Equal(t, "5511977776666", stored.Number)
}
