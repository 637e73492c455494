package vehicle

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
)

type Service struct {
	repo storage.VehicleRepository
	log  *zap.Logger
}

func NewService(repo storage.VehicleRepository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Filter restringe a listagem do estoque.
type Filter struct {
	Status model.VehicleStatus
	Type   string
	Query  string
}

func (s *Service) Create(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	if strings.TrimSpace(v.Name) == "" {
		return model.Vehicle{}, fmt.Errorf("vehicle: nome é obrigatório")
	}
	if v.Status == "" {
		v.Status = model.VehicleAvailable
	}

	created, err := s.repo.Create(ctx, v)
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("vehicle: criar: %w", err)
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (model.Vehicle, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// List aplica os filtros em memória sobre o estoque do tenant; o volume
// por loja é pequeno o bastante para não valer SQL dinâmico.
func (s *Service) List(ctx context.Context, tenantID string, filter Filter) ([]model.Vehicle, error) {
	vehicles, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("vehicle: listar: %w", err)
	}

	out := vehicles[:0]
	for _, v := range vehicles {
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		if filter.Type != "" && !strings.EqualFold(v.Type, filter.Type) {
			continue
		}
		if filter.Query != "" {
			q := strings.ToLower(filter.Query)
			if !strings.Contains(strings.ToLower(v.Name), q) && !strings.Contains(strings.ToLower(v.Model), q) {
				continue
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	updated, err := s.repo.Update(ctx, v)
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("vehicle: atualizar: %w", err)
	}
	return updated, nil
}

// MarkSold muda o status e serve de gancho para as automações do funil.
func (s *Service) MarkSold(ctx context.Context, tenantID, id string) (model.Vehicle, error) {
	v, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return model.Vehicle{}, err
	}
	v.Status = model.VehicleSold
	return s.Update(ctx, v)
}

func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("vehicle: remover: %w", err)
	}
	return nil
}

// RegisterView incrementa o contador de visualizações do anúncio.
func (s *Service) RegisterView(ctx context.Context, tenantID, id string) error {
	v, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	v.Views++
	if _, err := s.repo.Update(ctx, v); err != nil {
		return fmt.Errorf("vehicle: registrar visualização: %w", err)
	}
	return nil
}
