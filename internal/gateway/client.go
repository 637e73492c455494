package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Erros tipados para o controller distinguir "instância sumiu" de falha
// transitória de rede. O poller ao vivo trata os dois de forma diferente.
var (
	ErrInstanceNotFound   = errors.New("gateway: instância não encontrada")
	ErrGatewayUnavailable = errors.New("gateway: indisponível")
	ErrMissingToken       = errors.New("gateway: resposta sem token")
)

// Client encapsula as chamadas ao gateway de mensagens (uazapi) e ao
// webhook de automação que provisiona a sessão.
type Client struct {
	http              *http.Client
	baseURL           string
	adminToken        string
	workflowURL       string
	receiptWebhookURL string
	createTimeout     time.Duration
	log               *zap.Logger
}

type Options struct {
	BaseURL           string
	AdminToken        string
	WorkflowURL       string
	ReceiptWebhookURL string
	CreateTimeout     time.Duration
	RequestTimeout    time.Duration
	Logger            *zap.Logger
}

func NewClient(opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.CreateTimeout <= 0 {
		opts.CreateTimeout = 55 * time.Second
	}
	return &Client{
		http:              &http.Client{Timeout: opts.RequestTimeout},
		baseURL:           opts.BaseURL,
		adminToken:        opts.AdminToken,
		workflowURL:       opts.WorkflowURL,
		receiptWebhookURL: opts.ReceiptWebhookURL,
		createTimeout:     opts.CreateTimeout,
		log:               opts.Logger,
	}
}

type CreateResult struct {
	Token  string
	Number string
	QR     QR
}

// CreateInstance provisiona a sessão via webhook de automação. Token
// ausente é falha dura: sem token não há polling possível.
func (c *Client) CreateInstance(ctx context.Context, instanceName string) (CreateResult, error) {
	body, _ := json.Marshal(map[string]string{
		"instance_name":       instanceName,
		"user_id":             instanceName,
		"receipt_webhook_url": c.receiptWebhookURL,
	})

	ctx, cancel := context.WithTimeout(ctx, c.createTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.workflowURL, bytes.NewReader(body))
	if err != nil {
		return CreateResult{}, fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return CreateResult{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return CreateResult{}, fmt.Errorf("%w: criar instância: status %d: %s", ErrGatewayUnavailable, resp.StatusCode, string(raw))
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return CreateResult{}, fmt.Errorf("gateway: decode create: %w", err)
	}

	token, ok := stringField(raw, "token")
	if !ok {
		return CreateResult{}, ErrMissingToken
	}

	result := CreateResult{Token: token, QR: normalizeQR(raw)}
	if number, ok := stringField(raw, "number"); ok {
		result.Number = number
	} else if jid, ok := stringField(raw, "ownerJid"); ok {
		result.Number = jid
	}
	return result, nil
}

// FetchQR pede um novo QR ao gateway. Ausência de QR na resposta não é
// erro; o chamador simplesmente não atualiza a exibição.
func (c *Client) FetchQR(ctx context.Context, instanceName, token string) (QR, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/instance/connect", bytes.NewReader([]byte("{}")))
	if err != nil {
		return QR{Kind: QRKindNone}, fmt.Errorf("gateway: qr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("token", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return QR{Kind: QRKindNone}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return QR{Kind: QRKindNone}, fmt.Errorf("%w: conectar: status %d: %s", ErrGatewayUnavailable, resp.StatusCode, string(raw))
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return QR{Kind: QRKindNone}, fmt.Errorf("gateway: decode qr: %w", err)
	}

	return normalizeQR(raw), nil
}

type StatusResult struct {
	Connected bool
	Number    string
}

// FetchStatus consulta o estado da sessão. Resposta não-2xx significa
// token inválido ou sessão removida no servidor (ErrInstanceNotFound);
// falha de transporte vira ErrGatewayUnavailable.
func (c *Client) FetchStatus(ctx context.Context, token string) (StatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/instance/status", nil)
	if err != nil {
		return StatusResult{}, fmt.Errorf("gateway: status request: %w", err)
	}
	req.Header.Set("token", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return StatusResult{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StatusResult{}, fmt.Errorf("%w: status %d", ErrInstanceNotFound, resp.StatusCode)
	}

	var raw struct {
		Status struct {
			Connected bool   `json:"connected"`
			LoggedIn  bool   `json:"loggedIn"`
			JID       string `json:"jid"`
		} `json:"status"`
		Instance struct {
			Status string `json:"status"`
			Owner  string `json:"owner"`
		} `json:"instance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return StatusResult{}, fmt.Errorf("gateway: decode status: %w", err)
	}

	result := StatusResult{
		Connected: raw.Status.Connected || raw.Instance.Status == "connected",
	}
	if raw.Status.JID != "" {
		result.Number = raw.Status.JID
	} else if raw.Instance.Owner != "" {
		result.Number = raw.Instance.Owner
	}
	return result, nil
}

// Logout encerra a sessão remota. Falha aqui é rebaixada para warning:
// a limpeza local nunca fica bloqueada por um terceiro instável.
func (c *Client) Logout(ctx context.Context, instanceName, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/instance/logout", nil)
	if err != nil {
		return fmt.Errorf("gateway: logout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("token", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: logout %s: status %d: %s", ErrGatewayUnavailable, instanceName, resp.StatusCode, string(raw))
	}
	return nil
}

type RemoteInstance struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Token  string `json:"token"`
	Status string `json:"status"`
}

// ListAll lista todas as instâncias do gateway (token administrativo).
func (c *Client) ListAll(ctx context.Context) ([]RemoteInstance, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/instance/all", nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: list request: %w", err)
	}
	req.Header.Set("admintoken", c.adminToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: listar: status %d: %s", ErrGatewayUnavailable, resp.StatusCode, string(raw))
	}

	var instances []RemoteInstance
	if err := json.NewDecoder(resp.Body).Decode(&instances); err != nil {
		return nil, fmt.Errorf("gateway: decode list: %w", err)
	}
	return instances, nil
}
