package connection

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/pkg/crypto"
	"github.com/roni12291832/nexus-car/internal/storage/model"
)

// Locker é o lock distribuído usado para a reconciliação não rodar em
// duas réplicas ao mesmo tempo. Em deployments de réplica única um
// no-op serve.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context) (bool, error) { return true, nil }
func (noopLocker) Release(context.Context) error         { return nil }

// SyncResult resume uma passada de reconciliação.
type SyncResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// Reconciler corrige o estado local das instâncias contra o gateway. O
// gateway é a fonte de verdade: linha sem token ou cuja consulta de
// status falha é removida, não marcada como erro.
type Reconciler struct {
	ctrl *Controller
	lock Locker
	log  *zap.Logger
}

func NewReconciler(ctrl *Controller, lock Locker, log *zap.Logger) *Reconciler {
	if lock == nil {
		lock = noopLocker{}
	}
	return &Reconciler{ctrl: ctrl, lock: lock, log: log}
}

// SyncAll reconcilia todas as instâncias do tenant com o gateway.
func (r *Reconciler) SyncAll(ctx context.Context, tenantID string) (SyncResult, error) {
	acquired, err := r.lock.Acquire(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	if !acquired {
		r.log.Debug("connection: reconciliação já em andamento em outra réplica")
		return SyncResult{}, nil
	}
	defer func() {
		if err := r.lock.Release(context.Background()); err != nil {
			r.log.Warn("connection: falha ao liberar lock de reconciliação", zap.Error(err))
		}
	}()

	instances, err := r.ctrl.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return SyncResult{}, err
	}

	var result SyncResult
	for _, inst := range instances {
		result.Checked++

		if inst.Token == "" {
			// Linha órfã de migrações antigas; sem token não há como
			// consultar nem reconectar.
			if err := r.ctrl.repo.Delete(ctx, tenantID, inst.ID); err != nil {
				r.log.Warn("connection: falha ao remover instância sem token",
					zap.String("instance", inst.InstanceName), zap.Error(err))
				continue
			}
			result.Removed++
			continue
		}

		token, err := crypto.DecryptString(inst.Token, r.ctrl.tokenKey)
		if err != nil {
			r.log.Warn("connection: token ilegível na reconciliação, removendo",
				zap.String("instance", inst.InstanceName), zap.Error(err))
			if err := r.ctrl.repo.Delete(ctx, tenantID, inst.ID); err == nil {
				result.Removed++
			}
			continue
		}

		status, err := r.ctrl.gw.FetchStatus(ctx, token)
		if err != nil {
			// Qualquer falha de status conta como sessão morta. A linha
			// some; o usuário gera uma conexão nova quando quiser.
			r.log.Info("connection: sessão inválida no gateway, removendo registro",
				zap.String("instance", inst.InstanceName), zap.Error(err))
			if err := r.ctrl.repo.Delete(ctx, tenantID, inst.ID); err != nil {
				r.log.Warn("connection: falha ao remover instância morta",
					zap.String("instance", inst.InstanceName), zap.Error(err))
				continue
			}
			result.Removed++
			continue
		}

		want := model.InstanceStatusDisconnected
		if status.Connected {
			want = model.InstanceStatusConnected
		}
		number := stripJIDSuffix(status.Number)

		if inst.Status == want && (number == "" || inst.Number == number) {
			continue
		}

		inst.Status = want
		if number != "" {
			inst.Number = number
		}
		if _, err := r.ctrl.repo.Update(ctx, inst); err != nil {
			r.log.Warn("connection: falha ao atualizar status na reconciliação",
				zap.String("instance", inst.InstanceName), zap.Error(err))
			continue
		}
		result.Updated++
	}

	r.log.Info("connection: reconciliação concluída",
		zap.String("tenant_id", tenantID),
		zap.Int("checked", result.Checked),
		zap.Int("updated", result.Updated),
		zap.Int("removed", result.Removed))
	return result, nil
}

// RunPeriodic roda a reconciliação de todos os tenants com instâncias em
// intervalo fixo até o contexto encerrar.
func (r *Reconciler) RunPeriodic(ctx context.Context, interval time.Duration, tenantIDs func(context.Context) ([]string, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := tenantIDs(ctx)
			if err != nil {
				r.log.Warn("connection: falha ao listar tenants para reconciliação", zap.Error(err))
				continue
			}
			for _, id := range ids {
				if _, err := r.SyncAll(ctx, id); err != nil {
					r.log.Warn("connection: reconciliação falhou",
						zap.String("tenant_id", id), zap.Error(err))
				}
			}
		}
	}
}
