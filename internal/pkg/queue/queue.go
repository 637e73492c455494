package queue

import (
	"context"
	"time"
)

// Event é um evento de domínio (task movida por regra, lead criado,
// instância conectada) a ser entregue ao webhook de automação do tenant.
type Event struct {
	ID        string                 `json:"id"`
	TenantID  string                 `json:"tenantId"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"createdAt"`
}

type Queue interface {
	Enqueue(ctx context.Context, event Event) error
	Dequeue(ctx context.Context, timeout time.Duration) (*Event, error)
	Size(ctx context.Context) (int64, error)
	Close() error
}
