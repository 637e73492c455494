package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/gateway"
	"github.com/roni12291832/nexus-car/internal/pkg/crypto"
	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
)

// State é o estado explícito do ciclo de vida de uma conexão. Substitui
// a combinação solta de flags loading/connected/response.
type State string

const (
	StateIdle         State = "idle"
	StateCreating     State = "creating"
	StateAwaitingScan State = "awaiting_scan"
	StateConnected    State = "connected"
)

// Gateway é o subconjunto do cliente do gateway que o controller usa.
type Gateway interface {
	CreateInstance(ctx context.Context, instanceName string) (gateway.CreateResult, error)
	FetchQR(ctx context.Context, instanceName, token string) (gateway.QR, error)
	FetchStatus(ctx context.Context, token string) (gateway.StatusResult, error)
	Logout(ctx context.Context, instanceName, token string) error
}

// PollHandle é o recurso dono do timer de polling. Quem inicia o poll
// recebe o handle e é responsável por pará-lo; nada fica em escopo
// global.
type PollHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancela o polling e espera o loop encerrar.
func (h *PollHandle) Stop() {
	if h == nil {
		return
	}
	h.cancel()
	<-h.done
}

type Controller struct {
	repo         storage.InstanceRepository
	gw           Gateway
	log          *zap.Logger
	pollInterval time.Duration
	qrClearDelay time.Duration
	tokenKey     string

	onConnected func(inst model.Instance)

	mu      sync.Mutex
	pollers map[string]*PollHandle
	states  map[string]State
}

type Options struct {
	Repo         storage.InstanceRepository
	Gateway      Gateway
	Logger       *zap.Logger
	PollInterval time.Duration
	QRClearDelay time.Duration
	TokenKey     string
}

func NewController(opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 4 * time.Second
	}
	if opts.QRClearDelay <= 0 {
		opts.QRClearDelay = 1500 * time.Millisecond
	}
	return &Controller{
		repo:         opts.Repo,
		gw:           opts.Gateway,
		log:          opts.Logger,
		pollInterval: opts.PollInterval,
		qrClearDelay: opts.QRClearDelay,
		tokenKey:     opts.TokenKey,
		pollers:      make(map[string]*PollHandle),
		states:       make(map[string]State),
	}
}

// SetOnConnected registra o callback disparado uma única vez quando o
// poll detecta a conexão.
func (c *Controller) SetOnConnected(fn func(inst model.Instance)) {
	c.onConnected = fn
}

func (c *Controller) State(instanceName string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.states[instanceName]; ok {
		return s
	}
	return StateIdle
}

func (c *Controller) setState(instanceName string, s State) {
	c.mu.Lock()
	c.states[instanceName] = s
	c.mu.Unlock()
}

// Generate cria a instância no gateway, persiste a linha em aguardando
// e inicia o polling. Em falha nada é persistido e o estado volta a
// idle.
func (c *Controller) Generate(ctx context.Context, tenantID string) (model.Instance, error) {
	// O nome da instância é o próprio id do tenant, como no fluxo da UI.
	instanceName := tenantID
	c.setState(instanceName, StateCreating)

	created, err := c.gw.CreateInstance(ctx, instanceName)
	if err != nil {
		c.setState(instanceName, StateIdle)
		return model.Instance{}, fmt.Errorf("connection: criar instância: %w", err)
	}

	qr := created.QR
	if qr.Empty() {
		// A resposta de criação veio sem QR; tenta buscar em seguida.
		fetched, err := c.gw.FetchQR(ctx, instanceName, created.Token)
		if err != nil {
			c.log.Warn("connection: falha ao buscar QR após criação",
				zap.String("instance", instanceName), zap.Error(err))
		} else if !fetched.Empty() {
			qr = fetched
		}
	}

	encToken, err := crypto.EncryptString(created.Token, c.tokenKey)
	if err != nil {
		c.setState(instanceName, StateIdle)
		return model.Instance{}, fmt.Errorf("connection: cifrar token: %w", err)
	}

	inst := model.Instance{
		TenantID:     tenantID,
		InstanceName: instanceName,
		Status:       model.InstanceStatusAwaiting,
		Token:        encToken,
		Number:       stripJIDSuffix(created.Number),
		PairingCode:  qr.PairingCode,
		QRCodeBase64: qr.ImageBase64,
	}

	saved, err := c.repo.Upsert(ctx, inst)
	if err != nil {
		c.setState(instanceName, StateIdle)
		return model.Instance{}, fmt.Errorf("connection: persistir instância: %w", err)
	}

	c.setState(instanceName, StateAwaitingScan)
	c.StartPolling(saved, created.Token)

	saved.Token = ""
	return saved, nil
}

// RefreshQR busca um novo QR para uma instância existente e atualiza a
// linha. QR ausente na resposta não altera nada.
func (c *Controller) RefreshQR(ctx context.Context, tenantID, id string) (model.Instance, error) {
	inst, err := c.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return model.Instance{}, err
	}
	token, err := crypto.DecryptString(inst.Token, c.tokenKey)
	if err != nil {
		return model.Instance{}, fmt.Errorf("connection: decifrar token: %w", err)
	}

	qr, err := c.gw.FetchQR(ctx, inst.InstanceName, token)
	if err != nil {
		return model.Instance{}, err
	}
	if qr.Empty() {
		inst.Token = ""
		return inst, nil
	}

	inst.QRCodeBase64 = qr.ImageBase64
	inst.PairingCode = qr.PairingCode
	updated, err := c.repo.Update(ctx, inst)
	if err != nil {
		return model.Instance{}, err
	}
	updated.Token = ""
	return updated, nil
}

// StartPolling inicia o timer de verificação de status. Um poller
// anterior da mesma instância é sempre parado antes: no máximo um timer
// ativo por conexão.
func (c *Controller) StartPolling(inst model.Instance, plainToken string) *PollHandle {
	c.mu.Lock()
	if prev, ok := c.pollers[inst.InstanceName]; ok {
		c.mu.Unlock()
		prev.Stop()
		c.mu.Lock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	handle := &PollHandle{cancel: cancel, done: make(chan struct{})}
	c.pollers[inst.InstanceName] = handle
	c.mu.Unlock()

	go c.pollLoop(ctx, handle, inst, plainToken)
	return handle
}

func (c *Controller) removePoller(instanceName string, handle *PollHandle) {
	c.mu.Lock()
	if c.pollers[instanceName] == handle {
		delete(c.pollers, instanceName)
	}
	c.mu.Unlock()
}

// StopPolling cancela o poller ativo da instância, se houver.
func (c *Controller) StopPolling(instanceName string) {
	c.mu.Lock()
	handle, ok := c.pollers[instanceName]
	if ok {
		delete(c.pollers, instanceName)
	}
	c.mu.Unlock()
	if ok {
		handle.Stop()
	}
}

func (c *Controller) pollLoop(ctx context.Context, handle *PollHandle, inst model.Instance, token string) {
	defer close(handle.done)
	// Loop que termina sozinho (conectou ou a instância sumiu) tira o
	// próprio handle do mapa; um handle mais novo da mesma instância fica.
	defer c.removePoller(inst.InstanceName, handle)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := c.gw.FetchStatus(ctx, token)
			switch {
			case errors.Is(err, gateway.ErrInstanceNotFound):
				// Sessão removida no servidor: para sem mexer na linha.
				c.log.Warn("connection: instância sumiu no gateway, parando poll",
					zap.String("instance", inst.InstanceName))
				c.setState(inst.InstanceName, StateIdle)
				return
			case err != nil:
				// Falha transitória: tenta de novo no próximo tick.
				c.log.Debug("connection: falha transitória no poll",
					zap.String("instance", inst.InstanceName), zap.Error(err))
				continue
			}

			if !status.Connected {
				continue
			}

			if ctx.Err() != nil {
				return
			}
			c.markConnected(inst, status)
			return
		}
	}
}

func (c *Controller) markConnected(inst model.Instance, status gateway.StatusResult) {
	ctx := context.Background()

	inst.Status = model.InstanceStatusConnected
	if status.Number != "" {
		inst.Number = stripJIDSuffix(status.Number)
	}
	updated, err := c.repo.Update(ctx, inst)
	if err != nil {
		c.log.Error("connection: falha ao persistir status conectado",
			zap.String("instance", inst.InstanceName), zap.Error(err))
		return
	}

	c.setState(inst.InstanceName, StateConnected)
	c.log.Info("connection: instância conectada",
		zap.String("instance", inst.InstanceName), zap.String("number", updated.Number))

	if c.onConnected != nil {
		c.onConnected(updated)
	}

	// O QR é estado transitório de exibição; some logo após a conexão.
	time.AfterFunc(c.qrClearDelay, func() {
		cleared := updated
		cleared.QRCodeBase64 = ""
		cleared.PairingCode = ""
		if _, err := c.repo.Update(context.Background(), cleared); err != nil && !errors.Is(err, storage.ErrNotFound) {
			c.log.Warn("connection: falha ao limpar QR",
				zap.String("instance", inst.InstanceName), zap.Error(err))
		}
	})
}

// Disconnect faz logout best-effort no gateway e remove a linha local
// incondicionalmente. Qualquer poller em andamento é cancelado antes,
// para nenhum callback atrasado disparar depois da desconexão.
func (c *Controller) Disconnect(ctx context.Context, tenantID, id string) error {
	inst, err := c.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	c.StopPolling(inst.InstanceName)

	token, err := crypto.DecryptString(inst.Token, c.tokenKey)
	if err != nil {
		c.log.Warn("connection: token ilegível no disconnect",
			zap.String("instance", inst.InstanceName), zap.Error(err))
	} else if token != "" {
		if err := c.gw.Logout(ctx, inst.InstanceName, token); err != nil {
			c.log.Warn("connection: logout no gateway falhou, removendo registro local mesmo assim",
				zap.String("instance", inst.InstanceName), zap.Error(err))
		}
	}

	if err := c.repo.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("connection: remover instância: %w", err)
	}

	c.setState(inst.InstanceName, StateIdle)
	return nil
}

// Shutdown para todos os pollers ativos.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	handles := make([]*PollHandle, 0, len(c.pollers))
	for name, h := range c.pollers {
		handles = append(handles, h)
		delete(c.pollers, name)
	}
	c.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

func stripJIDSuffix(number string) string {
	if i := strings.IndexByte(number, '@'); i >= 0 {
		return number[:i]
	}
	return number
}
