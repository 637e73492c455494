package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/pkg/queue"
)

// Emitter publica eventos de domínio na fila. Falha de enfileiramento é
// rebaixada para log: automação é best-effort, nunca bloqueia a
// operação que gerou o evento.
type Emitter struct {
	queue queue.Queue
	log   *zap.Logger
}

func NewEmitter(q queue.Queue, log *zap.Logger) *Emitter {
	return &Emitter{queue: q, log: log}
}

func (e *Emitter) Emit(ctx context.Context, tenantID, eventType string, payload map[string]interface{}) {
	event := queue.Event{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	if err := e.queue.Enqueue(ctx, event); err != nil {
		e.log.Warn("webhook: falha ao enfileirar evento",
			zap.String("type", eventType),
			zap.String("tenant_id", tenantID),
			zap.Error(err))
	}
}
