package webhook

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/pkg/queue"
	"github.com/roni12291832/nexus-car/internal/webhook/delivery"
)

// Tipos de evento de domínio publicados para o fluxo de automação.
const (
	EventInstanceConnected = "instance.connected"
	EventLeadCreated       = "lead.created"
	EventLeadStageChanged  = "lead.stage_changed"
	EventTaskMoved         = "task.moved"
	EventVehicleSold       = "vehicle.sold"
)

// Pool consome a fila de eventos e entrega ao webhook de automação com
// um conjunto fixo de workers.
type Pool struct {
	queue    queue.Queue
	delivery *delivery.Delivery
	log      *zap.Logger

	eventURL string
	secret   string

	numWorkers int
	taskChan   chan *queue.Event
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewPool(
	q queue.Queue,
	d *delivery.Delivery,
	eventURL, secret string,
	log *zap.Logger,
	numWorkers int,
) *Pool {
	if numWorkers <= 0 {
		numWorkers = 4
	}

	return &Pool{
		queue:      q,
		delivery:   d,
		log:        log,
		eventURL:   eventURL,
		secret:     secret,
		numWorkers: numWorkers,
		taskChan:   make(chan *queue.Event, numWorkers*2),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.log.Info("webhook pool: iniciando", zap.Int("workers", p.numWorkers))

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}

	p.wg.Add(1)
	go p.runDispatcher()
}

func (p *Pool) Stop() {
	p.log.Info("webhook pool: encerrando")
	p.cancel()
	p.wg.Wait()
	close(p.taskChan)
	p.log.Info("webhook pool: encerrada")
}

func (p *Pool) runDispatcher() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
			event, err := p.queue.Dequeue(p.ctx, 1*time.Second)
			if err != nil {
				p.log.Error("webhook pool: erro ao desenfileirar", zap.Error(err))
				continue
			}
			if event == nil {
				continue
			}

			select {
			case p.taskChan <- event:
			case <-p.ctx.Done():
				return
			case <-time.After(5 * time.Second):
				p.log.Warn("webhook pool: taskChan cheio, descartando evento", zap.String("eventId", event.ID))
			}
		}
	}
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case event := <-p.taskChan:
			if event == nil {
				return
			}
			p.processEvent(id, event)
		}
	}
}

func (p *Pool) processEvent(workerID int, event *queue.Event) {
	if p.eventURL == "" {
		p.log.Debug("webhook pool: sem URL de eventos configurada, descartando",
			zap.String("eventId", event.ID))
		return
	}

	payload := map[string]interface{}{
		"id":        event.ID,
		"tenantId":  event.TenantID,
		"type":      event.Type,
		"payload":   event.Payload,
		"createdAt": event.CreatedAt,
	}

	if err := p.delivery.Deliver(p.ctx, p.eventURL, p.secret, payload); err != nil {
		p.log.Error("webhook pool: falha na entrega",
			zap.Int("workerId", workerID),
			zap.String("eventId", event.ID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		return
	}

	p.log.Info("webhook pool: evento entregue",
		zap.Int("workerId", workerID),
		zap.String("eventId", event.ID),
		zap.String("type", event.Type),
	)
}
